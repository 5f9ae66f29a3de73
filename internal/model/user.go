package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is the local projection of an identity managed by the external auth
// subsystem. UID is the opaque identity handle; rows here are never used to
// authenticate anyone.
type User struct {
	Base
	SoftDelete
	UID           string     `gorm:"size:128;uniqueIndex;not null" json:"uid"`
	Email         string     `gorm:"size:255;uniqueIndex;not null" json:"email"`
	UserName      string     `gorm:"size:100" json:"user_name"`
	EmailVerified bool       `json:"email_verified"`
	Provider      string     `gorm:"size:50" json:"provider"`
	ReferralCode  string     `gorm:"size:16;uniqueIndex" json:"referral_code"`
	ReferredByID  *uint      `json:"referred_by_id,omitempty"`
	ReferredBy    *User      `gorm:"foreignKey:ReferredByID" json:"-"`
	DeactivatedAt *time.Time `json:"deactivated_at,omitempty"`

	Profile *Profile   `gorm:"foreignKey:UserID" json:"profile,omitempty"`
	Roles   []Role     `gorm:"many2many:user_roles" json:"roles,omitempty"`
	Rooms   []UserRoom `gorm:"foreignKey:UserID" json:"rooms,omitempty"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.UID == "" {
		u.UID = uuid.NewString()
	}
	return u.SoftDelete.BeforeCreate(tx)
}

// IsLive reports whether the account is neither deactivated nor soft-deleted.
// Counterparts in connection listings and counters must be live.
func (u *User) IsLive() bool {
	return u.DeactivatedAt == nil && !u.IsDeleted()
}

type Profile struct {
	Base
	SoftDelete
	UserID              uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	DisplayName         string    `gorm:"size:255" json:"display_name"`
	FirstName           string    `gorm:"size:100" json:"first_name"`
	LastName            string    `gorm:"size:100" json:"last_name"`
	PhotoURL            string    `gorm:"type:text" json:"photo_url"`
	Public              bool      `json:"public"`
	PhoneNumber         string    `gorm:"size:32" json:"phone_number"`
	CountryCode         string    `gorm:"size:8" json:"country_code"`
	PhoneNumberVerified bool      `json:"phone_number_verified"`
	Address             string    `gorm:"type:text" json:"address"`
	HasExperience       bool      `json:"has_experience"`
	CurrentlyEmployed   bool      `json:"currently_employed"`
	LatestCompanyID     *uint     `json:"latest_company_id,omitempty"`
	LatestCompany       *Company  `gorm:"foreignKey:LatestCompanyID" json:"latest_company,omitempty"`
	LatestJobTitleID    *uint     `json:"latest_jobtitle_id,omitempty"`
	LatestJobTitle      *JobTitle `gorm:"foreignKey:LatestJobTitleID" json:"latest_jobtitle,omitempty"`
}

// UserLink is an external profile link (portfolio, social handle).
type UserLink struct {
	Base
	SoftDelete
	Audit
	Label string `gorm:"size:100" json:"label"`
	URL   string `gorm:"type:text" json:"url"`
}

// UserRoom is the room membership row. A user holds one row per role, so
// multiple roles in the same room are multiple rows.
type UserRoom struct {
	Base
	UserID uint  `gorm:"index;not null" json:"user_id"`
	User   *User `json:"-"`
	RoomID uint  `gorm:"index;not null" json:"room_id"`
	Room   *Room `json:"room,omitempty"`
	RoleID uint  `gorm:"not null" json:"role_id"`
	Role   *Role `json:"role,omitempty"`
}
