package model

import "time"

// UserContentAction is the per-(user, content) reaction row: like and save
// timestamps, nil when the action is not currently held.
type UserContentAction struct {
	Base
	SoftDelete
	Audit
	ContentID uint       `gorm:"index;not null" json:"content_id"`
	Content   *Content   `json:"-"`
	LikedAt   *time.Time `json:"liked_at,omitempty"`
	SavedAt   *time.Time `json:"saved_at,omitempty"`
}

type UserCommentAction struct {
	Base
	SoftDelete
	Audit
	CommentID uint       `gorm:"index;not null" json:"comment_id"`
	Comment   *Comment   `json:"-"`
	LikedAt   *time.Time `json:"liked_at,omitempty"`
}
