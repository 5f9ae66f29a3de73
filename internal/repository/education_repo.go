package repository

import (
	"context"
	"time"

	"github.com/linkloop/linkloop-backend/internal/model"
	"gorm.io/gorm"
)

type EducationCreate struct {
	Grade             string        `json:"grade"`
	Description       string        `json:"description"`
	CurrentlyStudying bool          `json:"currently_studying"`
	StartDate         *time.Time    `json:"start_date,omitempty"`
	EndDate           *time.Time    `json:"end_date,omitempty"`
	Degree            *LookupCreate `json:"degree,omitempty"`
	Specialization    *LookupCreate `json:"specialization,omitempty"`
	School            *LookupCreate `json:"school,omitempty"`
}

type EducationUpdate struct {
	Grade             *string       `json:"grade,omitempty"`
	Description       *string       `json:"description,omitempty"`
	CurrentlyStudying *bool         `json:"currently_studying,omitempty"`
	StartDate         *time.Time    `json:"start_date,omitempty"`
	EndDate           *time.Time    `json:"end_date,omitempty"`
	Degree            *LookupCreate `json:"degree,omitempty"`
	Specialization    *LookupCreate `json:"specialization,omitempty"`
	School            *LookupCreate `json:"school,omitempty"`
}

// EducationRepository resolves the referenced lookups by get-or-create before
// touching the owned row.
type EducationRepository struct {
	base    *Repository[model.UserEducation, EducationCreate, EducationUpdate]
	degrees *Repository[model.Degree, LookupCreate, LookupUpdate]
	specs   *Repository[model.Specialization, LookupCreate, LookupUpdate]
	schools *Repository[model.School, LookupCreate, LookupUpdate]
}

func NewEducationRepository(db *gorm.DB) *EducationRepository {
	base := NewRepository(db, Descriptor[model.UserEducation, EducationCreate, EducationUpdate]{
		FromCreate: func(in EducationCreate) model.UserEducation {
			end := in.EndDate
			if in.CurrentlyStudying {
				end = nil
			}
			return model.UserEducation{
				Grade:             in.Grade,
				Description:       in.Description,
				CurrentlyStudying: in.CurrentlyStudying,
				StartDate:         in.StartDate,
				EndDate:           end,
			}
		},
		ApplyUpdate: func(obj *model.UserEducation, in EducationUpdate) {
			if in.Grade != nil {
				obj.Grade = *in.Grade
			}
			if in.Description != nil {
				obj.Description = *in.Description
			}
			if in.CurrentlyStudying != nil {
				obj.CurrentlyStudying = *in.CurrentlyStudying
			}
			if in.StartDate != nil {
				obj.StartDate = in.StartDate
			}
			if in.EndDate != nil {
				obj.EndDate = in.EndDate
			}
			if obj.CurrentlyStudying {
				obj.EndDate = nil
			}
		},
	})
	return &EducationRepository{
		base:    base,
		degrees: NewLookupRepository[model.Degree](db),
		specs:   NewLookupRepository[model.Specialization](db),
		schools: NewLookupRepository[model.School](db),
	}
}

func (r *EducationRepository) Base() *Repository[model.UserEducation, EducationCreate, EducationUpdate] {
	return r.base
}

func (r *EducationRepository) resolve(ctx context.Context, obj *model.UserEducation, degree, spec, school *LookupCreate, actor *model.User) error {
	if degree != nil {
		row, err := r.degrees.GetOrCreate(ctx, *degree, actor)
		if err != nil {
			return err
		}
		if row != nil {
			obj.DegreeID = &row.ID
			obj.Degree = row
		}
	}
	if spec != nil {
		row, err := r.specs.GetOrCreate(ctx, *spec, actor)
		if err != nil {
			return err
		}
		if row != nil {
			obj.SpecializationID = &row.ID
			obj.Specialization = row
		}
	}
	if school != nil {
		row, err := r.schools.GetOrCreate(ctx, *school, actor)
		if err != nil {
			return err
		}
		if row != nil {
			obj.SchoolID = &row.ID
			obj.School = row
		}
	}
	return nil
}

func (r *EducationRepository) Create(ctx context.Context, in EducationCreate, actor *model.User) (*model.UserEducation, error) {
	obj, err := r.base.Create(ctx, in, actor)
	if err != nil {
		return nil, err
	}
	if err := r.resolve(ctx, obj, in.Degree, in.Specialization, in.School, actor); err != nil {
		return nil, err
	}
	if err := r.base.db.WithContext(ctx).Save(obj).Error; err != nil {
		return nil, err
	}
	return obj, nil
}

func (r *EducationRepository) Update(ctx context.Context, row *model.UserEducation, in EducationUpdate, actor *model.User) (*model.UserEducation, error) {
	if err := r.resolve(ctx, row, in.Degree, in.Specialization, in.School, actor); err != nil {
		return nil, err
	}
	return r.base.Update(ctx, row, in, actor)
}
