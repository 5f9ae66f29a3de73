package repository

import (
	"context"
	"errors"

	"github.com/linkloop/linkloop-backend/internal/model"
	"github.com/linkloop/linkloop-backend/pkg/apperror"
	"gorm.io/gorm"
)

type ProfileUpdate struct {
	DisplayName         *string `json:"display_name,omitempty"`
	FirstName           *string `json:"first_name,omitempty"`
	LastName            *string `json:"last_name,omitempty"`
	PhotoURL            *string `json:"photo_url,omitempty"`
	Public              *bool   `json:"public,omitempty"`
	PhoneNumber         *string `json:"phone_number,omitempty"`
	CountryCode         *string `json:"country_code,omitempty"`
	PhoneNumberVerified *bool   `json:"phone_number_verified,omitempty"`
	Address             *string `json:"address,omitempty"`
}

type ProfileRepository struct {
	db *gorm.DB
}

func NewProfileRepository(db *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

func (r *ProfileRepository) GetByUserID(ctx context.Context, userID uint) (*model.Profile, error) {
	var profile model.Profile
	err := r.db.WithContext(ctx).
		Where("deleted_at = ? AND user_id = ?", model.Epoch, userID).
		Preload("LatestCompany").Preload("LatestJobTitle").
		First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *ProfileRepository) Update(ctx context.Context, userID uint, in ProfileUpdate) (*model.Profile, error) {
	profile, err := r.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, apperror.NotFoundField("user_id", userID)
	}
	if in.DisplayName != nil {
		profile.DisplayName = *in.DisplayName
	}
	if in.FirstName != nil {
		profile.FirstName = *in.FirstName
	}
	if in.LastName != nil {
		profile.LastName = *in.LastName
	}
	if in.PhotoURL != nil {
		profile.PhotoURL = *in.PhotoURL
	}
	if in.Public != nil {
		profile.Public = *in.Public
	}
	if in.PhoneNumber != nil {
		profile.PhoneNumber = *in.PhoneNumber
		profile.PhoneNumberVerified = false
	}
	if in.CountryCode != nil {
		profile.CountryCode = *in.CountryCode
	}
	if in.PhoneNumberVerified != nil {
		profile.PhoneNumberVerified = *in.PhoneNumberVerified
	}
	if in.Address != nil {
		profile.Address = *in.Address
	}
	if err := r.db.WithContext(ctx).Save(profile).Error; err != nil {
		return nil, err
	}
	return profile, nil
}
