package model

import (
	"time"

	"gorm.io/datatypes"
)

type NotificationType string

const (
	NotifCommentOnContent  NotificationType = "COMMENT_ON_CONTENT"
	NotifCommentOnComment  NotificationType = "COMMENT_ON_COMMENT"
	NotifLikeOnContent     NotificationType = "LIKE_ON_CONTENT"
	NotifLikeOnComment     NotificationType = "LIKE_ON_COMMENT"
	NotifNewConnectionReq  NotificationType = "NEW_CONNECTION_REQ"
	NotifConnectionAccept  NotificationType = "CONNECTION_REQ_ACCEPT"
)

// Grouped reports whether repeat events of this type on the same entity are
// collapsed into one slot with a capped actor list.
func (t NotificationType) Grouped() bool {
	switch t {
	case NotifCommentOnContent, NotifCommentOnComment, NotifLikeOnContent, NotifLikeOnComment:
		return true
	}
	return false
}

// MaxGroupActors caps the visible actor list; UsersCount keeps the true total.
const MaxGroupActors = 3

// NotificationActor is the denormalized public identity of an acting user,
// stored inside the meta payload.
type NotificationActor struct {
	UID         string `json:"uid"`
	DisplayName string `json:"display_name"`
	PhotoURL    string `json:"photo_url,omitempty"`
}

type ContentRef struct {
	ID        uint   `json:"id"`
	Permalink string `json:"permalink,omitempty"`
}

type CommentRef struct {
	ID        uint `json:"id"`
	ContentID uint `json:"content_id,omitempty"`
}

type ConnectionRef struct {
	ID        uint `json:"id"`
	Connected bool `json:"connected"`
}

// NotificationMeta is the structured payload. For grouped types Users holds
// the most recent distinct actors, newest first, capped at MaxGroupActors;
// UsersCount is the uncapped distinct-actor total. Exactly one of the target
// refs is set, in lock-step with the notification type.
type NotificationMeta struct {
	Users      []NotificationActor `json:"users,omitempty"`
	UsersCount int                 `json:"users_count,omitempty"`
	Content    *ContentRef         `json:"content,omitempty"`
	Comment    *CommentRef         `json:"comment,omitempty"`
	Connection *ConnectionRef      `json:"connection,omitempty"`
}

// Notification is one feed slot per (user, type, entity). EntityID is the
// string-encoded id of the target named by Type.
type Notification struct {
	Base
	SoftDelete
	UserID     string                                    `gorm:"size:128;index;not null" json:"user_id"`
	Type       NotificationType                          `gorm:"size:40;index;not null" json:"type"`
	EntityID   string                                    `gorm:"size:64;index" json:"entity_id"`
	Meta       datatypes.JSONType[NotificationMeta]      `json:"meta"`
	NotifiedAt time.Time                                 `gorm:"index" json:"notified_at"`
	ReadAt     *time.Time                                `json:"read_at,omitempty"`
}
