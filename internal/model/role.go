package model

type Role struct {
	Base
	SoftDelete
	NameField
	Description string       `gorm:"type:text" json:"description"`
	Permissions []Permission `gorm:"many2many:role_permissions" json:"permissions,omitempty"`
}

type Permission struct {
	Base
	SoftDelete
	NameField
	Description string `gorm:"type:text" json:"description"`
}

// Room role names seeded at startup.
const (
	RoleRoomUser  = "ROOM_USER"
	RoleRoomAdmin = "ROOM_ADMIN"
)
