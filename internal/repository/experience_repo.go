package repository

import (
	"context"
	"errors"
	"time"

	"github.com/linkloop/linkloop-backend/internal/model"
	"gorm.io/gorm"
)

type ExperienceCreate struct {
	JobType          string          `json:"jobtype"`
	Description      string          `json:"description"`
	CurrentlyWorking bool            `json:"currently_working"`
	StartDate        *time.Time      `json:"start_date,omitempty"`
	EndDate          *time.Time      `json:"end_date,omitempty"`
	Company          *LookupCreate   `json:"company,omitempty"`
	JobTitle         *LookupCreate   `json:"jobtitle,omitempty"`
	Location         *LocationCreate `json:"location,omitempty"`
}

type ExperienceUpdate struct {
	JobType          *string         `json:"jobtype,omitempty"`
	Description      *string         `json:"description,omitempty"`
	CurrentlyWorking *bool           `json:"currently_working,omitempty"`
	StartDate        *time.Time      `json:"start_date,omitempty"`
	EndDate          *time.Time      `json:"end_date,omitempty"`
	Company          *LookupCreate   `json:"company,omitempty"`
	JobTitle         *LookupCreate   `json:"jobtitle,omitempty"`
	Location         *LocationCreate `json:"location,omitempty"`
}

// ExperienceRepository keeps the owner's profile summary (latest company and
// title, employment flags) in sync with the experience rows.
type ExperienceRepository struct {
	base      *Repository[model.UserExperience, ExperienceCreate, ExperienceUpdate]
	companies *Repository[model.Company, LookupCreate, LookupUpdate]
	titles    *Repository[model.JobTitle, LookupCreate, LookupUpdate]
	locations *Repository[model.Location, LocationCreate, LocationUpdate]
}

func NewExperienceRepository(db *gorm.DB) *ExperienceRepository {
	base := NewRepository(db, Descriptor[model.UserExperience, ExperienceCreate, ExperienceUpdate]{
		FromCreate: func(in ExperienceCreate) model.UserExperience {
			end := in.EndDate
			if in.CurrentlyWorking {
				end = nil
			}
			return model.UserExperience{
				JobType:          in.JobType,
				Description:      in.Description,
				CurrentlyWorking: in.CurrentlyWorking,
				StartDate:        in.StartDate,
				EndDate:          end,
			}
		},
		ApplyUpdate: func(obj *model.UserExperience, in ExperienceUpdate) {
			if in.JobType != nil {
				obj.JobType = *in.JobType
			}
			if in.Description != nil {
				obj.Description = *in.Description
			}
			if in.CurrentlyWorking != nil {
				obj.CurrentlyWorking = *in.CurrentlyWorking
			}
			if in.StartDate != nil {
				obj.StartDate = in.StartDate
			}
			if in.EndDate != nil {
				obj.EndDate = in.EndDate
			}
			if obj.CurrentlyWorking {
				obj.EndDate = nil
			}
		},
	})
	return &ExperienceRepository{
		base:      base,
		companies: NewLookupRepository[model.Company](db),
		titles:    NewLookupRepository[model.JobTitle](db),
		locations: NewLocationRepository(db),
	}
}

func (r *ExperienceRepository) Base() *Repository[model.UserExperience, ExperienceCreate, ExperienceUpdate] {
	return r.base
}

func (r *ExperienceRepository) resolve(ctx context.Context, obj *model.UserExperience, company, title *LookupCreate, loc *LocationCreate, actor *model.User) error {
	if company != nil {
		row, err := r.companies.GetOrCreate(ctx, *company, actor)
		if err != nil {
			return err
		}
		if row != nil {
			obj.CompanyID = &row.ID
			obj.Company = row
		}
	}
	if title != nil {
		row, err := r.titles.GetOrCreate(ctx, *title, actor)
		if err != nil {
			return err
		}
		if row != nil {
			obj.JobTitleID = &row.ID
			obj.JobTitle = row
		}
	}
	if loc != nil {
		row, err := r.locations.GetOrCreate(ctx, *loc, actor)
		if err != nil {
			return err
		}
		if row != nil {
			obj.LocationID = &row.ID
			obj.Location = row
		}
	}
	return nil
}

func (r *ExperienceRepository) Create(ctx context.Context, in ExperienceCreate, actor *model.User) (*model.UserExperience, error) {
	obj, err := r.base.Create(ctx, in, actor)
	if err != nil {
		return nil, err
	}
	if err := r.resolve(ctx, obj, in.Company, in.JobTitle, in.Location, actor); err != nil {
		return nil, err
	}
	if err := r.base.db.WithContext(ctx).Save(obj).Error; err != nil {
		return nil, err
	}
	if err := r.SyncProfile(ctx, actor); err != nil {
		return nil, err
	}
	return obj, nil
}

func (r *ExperienceRepository) Update(ctx context.Context, row *model.UserExperience, in ExperienceUpdate, actor *model.User) (*model.UserExperience, error) {
	if err := r.resolve(ctx, row, in.Company, in.JobTitle, in.Location, actor); err != nil {
		return nil, err
	}
	updated, err := r.base.Update(ctx, row, in, actor)
	if err != nil {
		return nil, err
	}
	if err := r.SyncProfile(ctx, actor); err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *ExperienceRepository) Delete(ctx context.Context, id uint, actor *model.User) (*model.UserExperience, error) {
	row, err := r.base.Delete(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	if err := r.SyncProfile(ctx, actor); err != nil {
		return nil, err
	}
	return row, nil
}

// SyncProfile recomputes the profile summary from the owner's live experience
// rows. The latest row is a current one if any exists, otherwise the one with
// the most recent start date.
func (r *ExperienceRepository) SyncProfile(ctx context.Context, owner *model.User) error {
	if owner == nil {
		return nil
	}
	var latest model.UserExperience
	err := r.base.Query(ctx).
		Where("created_by_id = ?", owner.ID).
		Order("currently_working DESC, start_date DESC, id DESC").
		First(&latest).Error
	hasAny := true
	if errors.Is(err, gorm.ErrRecordNotFound) {
		hasAny = false
	} else if err != nil {
		return err
	}

	updates := map[string]any{
		"has_experience":      hasAny,
		"currently_employed":  hasAny && latest.CurrentlyWorking,
		"latest_company_id":   nil,
		"latest_job_title_id": nil,
	}
	if hasAny {
		updates["latest_company_id"] = latest.CompanyID
		updates["latest_job_title_id"] = latest.JobTitleID
	}
	return r.base.db.WithContext(ctx).Model(&model.Profile{}).
		Where("user_id = ?", owner.ID).
		Updates(updates).Error
}
