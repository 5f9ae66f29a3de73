package model

// Room is a community. Categories classify it; membership goes through
// UserRoom rows.
type Room struct {
	Base
	SoftDelete
	Audit
	NameField
	Description      string `gorm:"type:text" json:"description"`
	ShortDescription string `gorm:"size:500" json:"short_description"`
	BannerImage      string `gorm:"type:text" json:"banner_image"`
	DisplayPhoto     string `gorm:"type:text" json:"display_photo"`

	Categories []RoomCategory `gorm:"many2many:room_category_assocs" json:"categories,omitempty"`
}

type RoomCategory struct {
	Base
	SoftDelete
	Audit
	NameField
}
