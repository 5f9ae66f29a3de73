package repository

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/linkloop/linkloop-backend/internal/model"
	"github.com/linkloop/linkloop-backend/pkg/apperror"
	"github.com/linkloop/linkloop-backend/pkg/cache"
	"github.com/linkloop/linkloop-backend/pkg/permalink"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Referral codes are base58 renderings of a random draw from this range,
// which keeps every code between 5 and 6 characters.
const (
	referralCodeMin = 11_316_496     // 58^4
	referralCodeMax = 38_068_692_544 // 58^6
)

const maxReferralDraws = 10

type UserCreate struct {
	UID           string `json:"uid"`
	Email         string `json:"email" validate:"required,email"`
	UserName      string `json:"user_name"`
	Provider      string `json:"provider"`
	EmailVerified bool   `json:"email_verified"`
	// ReferredByCode is the referrer's code, not the new user's own.
	ReferredByCode string `json:"referred_by_code,omitempty"`

	DisplayName string `json:"display_name"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	PhotoURL    string `json:"photo_url"`
}

type UserUpdate struct {
	UserName      *string `json:"user_name,omitempty"`
	EmailVerified *bool   `json:"email_verified,omitempty"`
}

type UserRepository struct {
	db     *gorm.DB
	bloom  cache.Bloom
	logger zerolog.Logger
}

func NewUserRepository(db *gorm.DB, bloom cache.Bloom, logger zerolog.Logger) *UserRepository {
	return &UserRepository{db: db, bloom: bloom, logger: logger}
}

func (r *UserRepository) query(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&model.User{}).Where("users.deleted_at = ?", model.Epoch)
}

func (r *UserRepository) first(q *gorm.DB) (*model.User, error) {
	var user model.User
	err := q.Preload("Profile").First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) Get(ctx context.Context, id uint) (*model.User, error) {
	return r.first(r.query(ctx).Where("users.id = ?", id))
}

func (r *UserRepository) GetByUID(ctx context.Context, uid string) (*model.User, error) {
	return r.first(r.query(ctx).Where("uid = ?", uid))
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.first(r.query(ctx).Where("email = ?", email))
}

func (r *UserRepository) GetByReferralCode(ctx context.Context, code string) (*model.User, error) {
	return r.first(r.query(ctx).Where("referral_code = ?", code))
}

func (r *UserRepository) GetByIDs(ctx context.Context, ids []uint) ([]model.User, error) {
	var users []model.User
	err := r.query(ctx).Where("users.id IN ?", ids).Preload("Profile").Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

// GenerateReferralCode draws random codes until the bloom filter reports the
// candidate unseen. A false positive just costs one more draw.
func (r *UserRepository) GenerateReferralCode(ctx context.Context) (string, error) {
	for i := 0; i < maxReferralDraws; i++ {
		n := referralCodeMin + rand.Int64N(referralCodeMax-referralCodeMin)
		code := permalink.EncodeID(uint(n))
		seen, err := r.bloom.Contains(ctx, code)
		if err != nil {
			return "", err
		}
		if !seen {
			return code, nil
		}
	}
	return "", fmt.Errorf("%w: referral code space exhausted after %d draws", apperror.ErrInternal, maxReferralDraws)
}

// CreateWithProfile creates the user and its profile atomically, resolving the
// referrer and minting the new user's own referral code. The bloom filter is
// updated only after the transaction commits.
func (r *UserRepository) CreateWithProfile(ctx context.Context, in UserCreate) (*model.User, error) {
	code, err := r.GenerateReferralCode(ctx)
	if err != nil {
		return nil, err
	}

	user := model.User{
		UID:           in.UID,
		Email:         in.Email,
		UserName:      in.UserName,
		Provider:      in.Provider,
		EmailVerified: in.EmailVerified,
		ReferralCode:  code,
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if in.ReferredByCode != "" {
			var referrer model.User
			err := tx.Where("deleted_at = ? AND referral_code = ?", model.Epoch, in.ReferredByCode).
				First(&referrer).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperror.NotFoundField("referred_by_code", in.ReferredByCode)
			}
			if err != nil {
				return err
			}
			user.ReferredByID = &referrer.ID
		}
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		profile := model.Profile{
			UserID:      user.ID,
			DisplayName: in.DisplayName,
			FirstName:   in.FirstName,
			LastName:    in.LastName,
			PhotoURL:    in.PhotoURL,
		}
		profile.SetDeletedAt(model.Epoch)
		if err := tx.Create(&profile).Error; err != nil {
			return err
		}
		user.Profile = &profile
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := r.bloom.Add(ctx, code); err != nil {
		r.logger.Warn().Err(err).Str("code", code).Msg("record referral code in bloom filter")
	}
	return &user, nil
}

func (r *UserRepository) Update(ctx context.Context, user *model.User, in UserUpdate) (*model.User, error) {
	if in.UserName != nil {
		user.UserName = *in.UserName
	}
	if in.EmailVerified != nil {
		user.EmailVerified = *in.EmailVerified
	}
	if err := r.db.WithContext(ctx).Save(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// Deactivate hides the account without destroying anything; Reactivate undoes
// it.
func (r *UserRepository) Deactivate(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()
	user.DeactivatedAt = &now
	return r.db.WithContext(ctx).Save(user).Error
}

func (r *UserRepository) Reactivate(ctx context.Context, user *model.User) error {
	user.DeactivatedAt = nil
	return r.db.WithContext(ctx).Save(user).Error
}

// DeleteByUID soft-deletes the user and its profile together.
func (r *UserRepository) DeleteByUID(ctx context.Context, uid string) (*model.User, error) {
	user, err := r.GetByUID(ctx, uid)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperror.NotFoundField("uid", uid)
	}
	now := time.Now().UTC()
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user.SetDeletedAt(now)
		if err := tx.Save(user).Error; err != nil {
			return err
		}
		if user.Profile != nil {
			user.Profile.SetDeletedAt(now)
			return tx.Save(user.Profile).Error
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// AddRole grants a role by name, idempotently.
func (r *UserRepository) AddRole(ctx context.Context, user *model.User, roleName string) error {
	var role model.Role
	err := r.db.WithContext(ctx).Where("deleted_at = ? AND name = ?", model.Epoch, roleName).
		First(&role).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.NotFoundField("role", roleName)
	}
	if err != nil {
		return err
	}
	for _, existing := range user.Roles {
		if existing.ID == role.ID {
			return nil
		}
	}
	return r.db.WithContext(ctx).Model(user).Association("Roles").Append(&role)
}
