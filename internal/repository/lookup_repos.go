package repository

import (
	"github.com/linkloop/linkloop-backend/internal/model"
	"gorm.io/gorm"
)

// LookupCreate is the shared create shape for the name-keyed lookup entities.
// A non-zero ID short-circuits get-or-create to a fetch.
type LookupCreate struct {
	ID   uint   `json:"id,omitempty"`
	Name string `json:"name" validate:"required"`
}

type LookupUpdate struct {
	Name *string `json:"name,omitempty"`
}

// NewLookupRepository instantiates the generic repository for any entity that
// embeds model.NameField. This is the whole implementation for the ~15 simple
// lookup tables.
func NewLookupRepository[T any](db *gorm.DB) *Repository[T, LookupCreate, LookupUpdate] {
	return NewRepository(db, Descriptor[T, LookupCreate, LookupUpdate]{
		FromCreate: func(in LookupCreate) T {
			var obj T
			any(&obj).(model.Named).SetName(in.Name)
			return obj
		},
		ApplyUpdate: func(obj *T, in LookupUpdate) {
			if in.Name != nil {
				any(obj).(model.Named).SetName(*in.Name)
			}
		},
		IDOf:     func(in LookupCreate) uint { return in.ID },
		FilterOf: func(in LookupCreate) map[string]any { return map[string]any{"name": in.Name} },
	})
}

// LocationCreate keys locations on the city/state/country triple.
type LocationCreate struct {
	ID      uint   `json:"id,omitempty"`
	City    string `json:"city"`
	State   string `json:"state"`
	Country string `json:"country"`
}

type LocationUpdate struct {
	City    *string `json:"city,omitempty"`
	State   *string `json:"state,omitempty"`
	Country *string `json:"country,omitempty"`
}

func NewLocationRepository(db *gorm.DB) *Repository[model.Location, LocationCreate, LocationUpdate] {
	return NewRepository(db, Descriptor[model.Location, LocationCreate, LocationUpdate]{
		FromCreate: func(in LocationCreate) model.Location {
			return model.Location{City: in.City, State: in.State, Country: in.Country}
		},
		ApplyUpdate: func(obj *model.Location, in LocationUpdate) {
			if in.City != nil {
				obj.City = *in.City
			}
			if in.State != nil {
				obj.State = *in.State
			}
			if in.Country != nil {
				obj.Country = *in.Country
			}
		},
		IDOf: func(in LocationCreate) uint { return in.ID },
		FilterOf: func(in LocationCreate) map[string]any {
			return map[string]any{"city": in.City, "state": in.State, "country": in.Country}
		},
	})
}

// CertificateCreate keys certificates on (name, organization).
type CertificateCreate struct {
	ID             uint   `json:"id,omitempty"`
	Name           string `json:"name"`
	OrganizationID uint   `json:"organization_id"`
}

type CertificateUpdate struct {
	Name *string `json:"name,omitempty"`
}

func NewCertificateRepository(db *gorm.DB) *Repository[model.Certificate, CertificateCreate, CertificateUpdate] {
	return NewRepository(db, Descriptor[model.Certificate, CertificateCreate, CertificateUpdate]{
		FromCreate: func(in CertificateCreate) model.Certificate {
			c := model.Certificate{OrganizationID: in.OrganizationID}
			c.Name = in.Name
			return c
		},
		ApplyUpdate: func(obj *model.Certificate, in CertificateUpdate) {
			if in.Name != nil {
				obj.Name = *in.Name
			}
		},
		IDOf: func(in CertificateCreate) uint { return in.ID },
		FilterOf: func(in CertificateCreate) map[string]any {
			return map[string]any{"name": in.Name, "organization_id": in.OrganizationID}
		},
	})
}
