package model

type ContentType string

const (
	ContentTypePost    ContentType = "post"
	ContentTypeArticle ContentType = "article"
)

// Content is a post inside a Room. Permalink stores only the slug; the public
// link is slug + base58 id, assembled by pkg/permalink.
type Content struct {
	Base
	SoftDelete
	Audit
	Type      ContentType `gorm:"size:20;index" json:"type"`
	Title     *string     `gorm:"size:500" json:"title,omitempty"`
	Body      *string     `gorm:"type:text" json:"body,omitempty"`
	Format    string      `gorm:"size:50" json:"format"`
	Permalink string      `gorm:"size:120;index" json:"permalink"`
	RoomID    uint        `gorm:"index;not null" json:"room_id"`
	Room      *Room       `json:"room,omitempty"`

	Tags   []ContentTag `gorm:"many2many:content_tag_assocs" json:"tags,omitempty"`
	Images []Image      `gorm:"many2many:content_images" json:"images,omitempty"`
}

type Comment struct {
	Base
	SoftDelete
	Audit
	ContentID uint     `gorm:"index;not null" json:"content_id"`
	Content   *Content `json:"-"`
	ParentID  *uint    `gorm:"index" json:"parent_id,omitempty"`
	Parent    *Comment `gorm:"foreignKey:ParentID" json:"-"`
	Body      string   `gorm:"type:text;not null" json:"body"`
}
