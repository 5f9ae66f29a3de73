package model

import (
	"time"

	"gorm.io/gorm"
)

// Epoch is the sentinel "not deleted" timestamp. A sentinel is used instead of
// a nullable column so soft-delete filtering is always a plain equality check.
var Epoch = time.Unix(0, 0).UTC()

type Base struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// SoftDelete marks rows logically removed. Default reads filter on
// deleted_at = Epoch; bypass paths read the column directly.
type SoftDelete struct {
	DeletedAt time.Time `gorm:"index" json:"-"`
}

func (s *SoftDelete) BeforeCreate(tx *gorm.DB) error {
	if s.DeletedAt.IsZero() {
		s.DeletedAt = Epoch
	}
	return nil
}

func (s *SoftDelete) SetDeletedAt(t time.Time) { s.DeletedAt = t }

func (s *SoftDelete) IsDeleted() bool {
	return !s.DeletedAt.IsZero() && !s.DeletedAt.Equal(Epoch)
}

// Audit records which user created and last touched a row.
type Audit struct {
	CreatedByID *uint `gorm:"index" json:"created_by_id,omitempty"`
	CreatedBy   *User `gorm:"foreignKey:CreatedByID" json:"created_by,omitempty"`
	UpdatedByID *uint `json:"updated_by_id,omitempty"`
	UpdatedBy   *User `gorm:"foreignKey:UpdatedByID" json:"-"`
}

func (a *Audit) SetCreatedBy(id uint) { a.CreatedByID = &id }
func (a *Audit) SetUpdatedBy(id uint) { a.UpdatedByID = &id }

// SoftDeletable and Auditable are the capability contracts the generic
// repository probes once at construction time.
type SoftDeletable interface {
	SetDeletedAt(time.Time)
	IsDeleted() bool
}

type Auditable interface {
	SetCreatedBy(uint)
	SetUpdatedBy(uint)
}

// NameField is embedded by the name-keyed lookup entities.
type NameField struct {
	Name string `gorm:"size:255;index" json:"name"`
}

func (n *NameField) GetName() string  { return n.Name }
func (n *NameField) SetName(s string) { n.Name = s }

type Named interface {
	GetName() string
	SetName(string)
}
