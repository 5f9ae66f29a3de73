package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/linkloop/linkloop-backend/internal/model"
	"github.com/linkloop/linkloop-backend/pkg/apperror"
	"github.com/linkloop/linkloop-backend/pkg/cache"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// --- skills ---

type UserSkillCreate struct {
	Level        string        `json:"level"`
	LearningYear int           `json:"learning_year"`
	Skill        *LookupCreate `json:"skill,omitempty"`
}

type UserSkillUpdate struct {
	Level        *string       `json:"level,omitempty"`
	LearningYear *int          `json:"learning_year,omitempty"`
	Skill        *LookupCreate `json:"skill,omitempty"`
}

type SkillRepository struct {
	base   *Repository[model.UserSkill, UserSkillCreate, UserSkillUpdate]
	skills *Repository[model.Skill, LookupCreate, LookupUpdate]
}

func NewSkillRepository(db *gorm.DB) *SkillRepository {
	base := NewRepository(db, Descriptor[model.UserSkill, UserSkillCreate, UserSkillUpdate]{
		FromCreate: func(in UserSkillCreate) model.UserSkill {
			return model.UserSkill{Level: in.Level, LearningYear: in.LearningYear}
		},
		ApplyUpdate: func(obj *model.UserSkill, in UserSkillUpdate) {
			if in.Level != nil {
				obj.Level = *in.Level
			}
			if in.LearningYear != nil {
				obj.LearningYear = *in.LearningYear
			}
		},
	})
	return &SkillRepository{base: base, skills: NewLookupRepository[model.Skill](db)}
}

func (r *SkillRepository) Base() *Repository[model.UserSkill, UserSkillCreate, UserSkillUpdate] {
	return r.base
}

func (r *SkillRepository) Create(ctx context.Context, in UserSkillCreate, actor *model.User) (*model.UserSkill, error) {
	obj, err := r.base.Create(ctx, in, actor)
	if err != nil {
		return nil, err
	}
	if in.Skill != nil {
		skill, err := r.skills.GetOrCreate(ctx, *in.Skill, actor)
		if err != nil {
			return nil, err
		}
		if skill != nil {
			obj.SkillID = &skill.ID
			obj.Skill = skill
			if err := r.base.db.WithContext(ctx).Save(obj).Error; err != nil {
				return nil, err
			}
		}
	}
	return obj, nil
}

// --- interests ---

const interestsCacheField = "interests"

type UserInterestCreate struct {
	StartDate *time.Time    `json:"start_date,omitempty"`
	Interest  *LookupCreate `json:"interest,omitempty"`
}

type UserInterestUpdate struct {
	StartDate *time.Time `json:"start_date,omitempty"`
}

// InterestRepository caches the owner's interest names under their uid; the
// cache is dropped on every write and rebuilt on the next read.
type InterestRepository struct {
	base      *Repository[model.UserInterest, UserInterestCreate, UserInterestUpdate]
	interests *Repository[model.Interest, LookupCreate, LookupUpdate]
	kv        cache.Store
	ttl       time.Duration
	logger    zerolog.Logger
}

func NewInterestRepository(db *gorm.DB, kv cache.Store, ttl time.Duration, logger zerolog.Logger) *InterestRepository {
	base := NewRepository(db, Descriptor[model.UserInterest, UserInterestCreate, UserInterestUpdate]{
		FromCreate: func(in UserInterestCreate) model.UserInterest {
			return model.UserInterest{StartDate: in.StartDate}
		},
		ApplyUpdate: func(obj *model.UserInterest, in UserInterestUpdate) {
			if in.StartDate != nil {
				obj.StartDate = in.StartDate
			}
		},
	})
	return &InterestRepository{
		base:      base,
		interests: NewLookupRepository[model.Interest](db),
		kv:        kv,
		ttl:       ttl,
		logger:    logger,
	}
}

func (r *InterestRepository) Base() *Repository[model.UserInterest, UserInterestCreate, UserInterestUpdate] {
	return r.base
}

func (r *InterestRepository) Create(ctx context.Context, in UserInterestCreate, actor *model.User) (*model.UserInterest, error) {
	obj, err := r.base.Create(ctx, in, actor)
	if err != nil {
		return nil, err
	}
	if in.Interest != nil {
		interest, err := r.interests.GetOrCreate(ctx, *in.Interest, actor)
		if err != nil {
			return nil, err
		}
		if interest != nil {
			obj.InterestID = &interest.ID
			obj.Interest = interest
			if err := r.base.db.WithContext(ctx).Save(obj).Error; err != nil {
				return nil, err
			}
		}
	}
	r.dropCache(ctx, actor)
	return obj, nil
}

func (r *InterestRepository) Delete(ctx context.Context, id uint, actor *model.User) (*model.UserInterest, error) {
	obj, err := r.base.Delete(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	r.dropCache(ctx, actor)
	return obj, nil
}

func (r *InterestRepository) dropCache(ctx context.Context, owner *model.User) {
	if owner == nil {
		return
	}
	if err := r.kv.Invalidate(ctx, cache.UIDKey(owner.UID)); err != nil {
		r.logger.Warn().Err(err).Str("uid", owner.UID).Msg("invalidate interests cache")
	}
}

// GetNames returns the owner's interest names, read through the cache.
func (r *InterestRepository) GetNames(ctx context.Context, owner *model.User) ([]string, error) {
	key := cache.UIDKey(owner.UID)
	if raw, ok, err := r.kv.GetField(ctx, key, interestsCacheField); err == nil && ok {
		var names []string
		if json.Unmarshal([]byte(raw), &names) == nil {
			return names, nil
		}
	} else if err != nil {
		r.logger.Warn().Err(err).Str("uid", owner.UID).Msg("read interests cache")
	}

	// Both tables carry deleted_at, so the sentinel filter must be qualified.
	var names []string
	err := r.base.db.WithContext(ctx).Model(&model.UserInterest{}).
		Joins("JOIN interests ON interests.id = user_interests.interest_id").
		Where("user_interests.deleted_at = ? AND user_interests.created_by_id = ?", model.Epoch, owner.ID).
		Pluck("interests.name", &names).Error
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(names); err == nil {
		if err := r.kv.PutField(ctx, key, interestsCacheField, string(raw), r.ttl); err != nil {
			r.logger.Warn().Err(err).Str("uid", owner.UID).Msg("write interests cache")
		}
	}
	return names, nil
}

// --- languages ---

// LanguageRef resolves in priority order: id, then iso code, then name
// get-or-create.
type LanguageRef struct {
	ID   uint   `json:"id,omitempty"`
	Code string `json:"code,omitempty"`
	Name string `json:"name,omitempty"`
}

type UserLanguageCreate struct {
	Level    string       `json:"level"`
	Language *LanguageRef `json:"language,omitempty"`
}

type UserLanguageUpdate struct {
	Level *string `json:"level,omitempty"`
}

type LanguageRepository struct {
	base *Repository[model.UserLanguage, UserLanguageCreate, UserLanguageUpdate]
	db   *gorm.DB
}

func NewLanguageRepository(db *gorm.DB) *LanguageRepository {
	base := NewRepository(db, Descriptor[model.UserLanguage, UserLanguageCreate, UserLanguageUpdate]{
		FromCreate: func(in UserLanguageCreate) model.UserLanguage {
			return model.UserLanguage{Level: in.Level}
		},
		ApplyUpdate: func(obj *model.UserLanguage, in UserLanguageUpdate) {
			if in.Level != nil {
				obj.Level = *in.Level
			}
		},
	})
	return &LanguageRepository{base: base, db: db}
}

func (r *LanguageRepository) Base() *Repository[model.UserLanguage, UserLanguageCreate, UserLanguageUpdate] {
	return r.base
}

func (r *LanguageRepository) resolveLanguage(ctx context.Context, ref LanguageRef, actor *model.User) (*model.Language, error) {
	q := r.db.WithContext(ctx).Where("deleted_at = ?", model.Epoch)
	var lang model.Language
	switch {
	case ref.ID != 0:
		err := q.Where("id = ?", ref.ID).First(&lang).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFoundField("language_id", ref.ID)
		}
		return &lang, err
	case ref.Code != "":
		err := q.Where("code = ?", ref.Code).First(&lang).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFoundField("language_code", ref.Code)
		}
		return &lang, err
	case ref.Name != "":
		err := q.Where("name = ?", ref.Name).First(&lang).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			lang = model.Language{}
			lang.SetName(ref.Name)
			lang.SetDeletedAt(model.Epoch)
			if actor != nil {
				lang.SetCreatedBy(actor.ID)
			}
			err = r.db.WithContext(ctx).Create(&lang).Error
		}
		return &lang, err
	}
	return nil, fmt.Errorf("%w: empty language reference", apperror.ErrInvalidInput)
}

func (r *LanguageRepository) Create(ctx context.Context, in UserLanguageCreate, actor *model.User) (*model.UserLanguage, error) {
	obj, err := r.base.Create(ctx, in, actor)
	if err != nil {
		return nil, err
	}
	if in.Language != nil {
		lang, err := r.resolveLanguage(ctx, *in.Language, actor)
		if err != nil {
			return nil, err
		}
		obj.LanguageID = &lang.ID
		obj.Language = lang
		if err := r.db.WithContext(ctx).Save(obj).Error; err != nil {
			return nil, err
		}
	}
	return obj, nil
}

// --- certificates ---

type UserCertificateCreate struct {
	CredentialID  string        `json:"credential_id"`
	CredentialURL string        `json:"credential_url"`
	CanExpire     bool          `json:"can_expire"`
	IssuedDate    *time.Time    `json:"issued_date,omitempty"`
	ExpiryDate    *time.Time    `json:"expiry_date,omitempty"`
	Certificate   *LookupCreate `json:"certificate,omitempty"`
	Organization  *LookupCreate `json:"organization,omitempty"`
}

type UserCertificateUpdate struct {
	CredentialID  *string    `json:"credential_id,omitempty"`
	CredentialURL *string    `json:"credential_url,omitempty"`
	CanExpire     *bool      `json:"can_expire,omitempty"`
	IssuedDate    *time.Time `json:"issued_date,omitempty"`
	ExpiryDate    *time.Time `json:"expiry_date,omitempty"`
}

// UserCertificateRepository resolves the issuing organization first, then the
// certificate keyed by (name, organization).
type UserCertificateRepository struct {
	base  *Repository[model.UserCertificate, UserCertificateCreate, UserCertificateUpdate]
	orgs  *Repository[model.Organization, LookupCreate, LookupUpdate]
	certs *Repository[model.Certificate, CertificateCreate, CertificateUpdate]
}

func NewUserCertificateRepository(db *gorm.DB) *UserCertificateRepository {
	base := NewRepository(db, Descriptor[model.UserCertificate, UserCertificateCreate, UserCertificateUpdate]{
		FromCreate: func(in UserCertificateCreate) model.UserCertificate {
			end := in.ExpiryDate
			if !in.CanExpire {
				end = nil
			}
			return model.UserCertificate{
				CredentialID:  in.CredentialID,
				CredentialURL: in.CredentialURL,
				CanExpire:     in.CanExpire,
				IssuedDate:    in.IssuedDate,
				ExpiryDate:    end,
			}
		},
		ApplyUpdate: func(obj *model.UserCertificate, in UserCertificateUpdate) {
			if in.CredentialID != nil {
				obj.CredentialID = *in.CredentialID
			}
			if in.CredentialURL != nil {
				obj.CredentialURL = *in.CredentialURL
			}
			if in.CanExpire != nil {
				obj.CanExpire = *in.CanExpire
			}
			if in.IssuedDate != nil {
				obj.IssuedDate = in.IssuedDate
			}
			if in.ExpiryDate != nil {
				obj.ExpiryDate = in.ExpiryDate
			}
			if !obj.CanExpire {
				obj.ExpiryDate = nil
			}
		},
	})
	return &UserCertificateRepository{
		base:  base,
		orgs:  NewLookupRepository[model.Organization](db),
		certs: NewCertificateRepository(db),
	}
}

func (r *UserCertificateRepository) Base() *Repository[model.UserCertificate, UserCertificateCreate, UserCertificateUpdate] {
	return r.base
}

func (r *UserCertificateRepository) Create(ctx context.Context, in UserCertificateCreate, actor *model.User) (*model.UserCertificate, error) {
	obj, err := r.base.Create(ctx, in, actor)
	if err != nil {
		return nil, err
	}
	if in.Certificate != nil {
		certIn := CertificateCreate{ID: in.Certificate.ID, Name: in.Certificate.Name}
		if in.Organization != nil {
			org, err := r.orgs.GetOrCreate(ctx, *in.Organization, actor)
			if err != nil {
				return nil, err
			}
			if org != nil {
				certIn.OrganizationID = org.ID
			}
		}
		cert, err := r.certs.GetOrCreate(ctx, certIn, actor)
		if err != nil {
			return nil, err
		}
		if cert != nil {
			obj.CertificateID = &cert.ID
			obj.Certificate = cert
			if err := r.base.db.WithContext(ctx).Save(obj).Error; err != nil {
				return nil, err
			}
		}
	}
	return obj, nil
}
