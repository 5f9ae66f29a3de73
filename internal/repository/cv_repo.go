package repository

import (
	"context"

	"github.com/linkloop/linkloop-backend/internal/model"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

type CVUploadCreate struct {
	URL string `json:"url" validate:"required,url"`
}

type CVUploadUpdate struct {
	URL *string `json:"url,omitempty"`
}

// CVBatch is one parsed CV: every child-entity section at once.
type CVBatch struct {
	Educations   []EducationCreate       `json:"educations,omitempty"`
	Experiences  []ExperienceCreate      `json:"experiences,omitempty"`
	Skills       []UserSkillCreate       `json:"skills,omitempty"`
	Interests    []UserInterestCreate    `json:"interests,omitempty"`
	Languages    []UserLanguageCreate    `json:"languages,omitempty"`
	Certificates []UserCertificateCreate `json:"certificates,omitempty"`
}

// CVBatchResult reports what survived. Sections are independent; one bad
// entry never rolls back the rest of the CV.
type CVBatchResult struct {
	Created int `json:"created"`
	Failed  int `json:"failed"`
}

// CVRepository stores upload records and fans a parsed CV out to the
// child-entity repositories.
type CVRepository struct {
	uploads     *Repository[model.CVUpload, CVUploadCreate, CVUploadUpdate]
	educations  *EducationRepository
	experiences *ExperienceRepository
	skills      *SkillRepository
	interests   *InterestRepository
	languages   *LanguageRepository
	certs       *UserCertificateRepository
	logger      zerolog.Logger
}

func NewCVRepository(
	db *gorm.DB,
	educations *EducationRepository,
	experiences *ExperienceRepository,
	skills *SkillRepository,
	interests *InterestRepository,
	languages *LanguageRepository,
	certs *UserCertificateRepository,
	logger zerolog.Logger,
) *CVRepository {
	uploads := NewRepository(db, Descriptor[model.CVUpload, CVUploadCreate, CVUploadUpdate]{
		FromCreate: func(in CVUploadCreate) model.CVUpload {
			return model.CVUpload{URL: in.URL}
		},
		ApplyUpdate: func(obj *model.CVUpload, in CVUploadUpdate) {
			if in.URL != nil {
				obj.URL = *in.URL
			}
		},
	})
	return &CVRepository{
		uploads:     uploads,
		educations:  educations,
		experiences: experiences,
		skills:      skills,
		interests:   interests,
		languages:   languages,
		certs:       certs,
		logger:      logger,
	}
}

func (r *CVRepository) Uploads() *Repository[model.CVUpload, CVUploadCreate, CVUploadUpdate] {
	return r.uploads
}

// CreateBatch applies a parsed CV best-effort: failures are logged and
// counted, successes stand.
func (r *CVRepository) CreateBatch(ctx context.Context, batch CVBatch, owner *model.User) CVBatchResult {
	var res CVBatchResult
	record := func(section string, err error) {
		if err != nil {
			res.Failed++
			r.logger.Warn().Err(err).Str("section", section).Uint("user_id", owner.ID).
				Msg("cv batch entry failed")
			return
		}
		res.Created++
	}

	for _, in := range batch.Educations {
		_, err := r.educations.Create(ctx, in, owner)
		record("education", err)
	}
	for _, in := range batch.Experiences {
		_, err := r.experiences.Create(ctx, in, owner)
		record("experience", err)
	}
	for _, in := range batch.Skills {
		_, err := r.skills.Create(ctx, in, owner)
		record("skill", err)
	}
	for _, in := range batch.Interests {
		_, err := r.interests.Create(ctx, in, owner)
		record("interest", err)
	}
	for _, in := range batch.Languages {
		_, err := r.languages.Create(ctx, in, owner)
		record("language", err)
	}
	for _, in := range batch.Certificates {
		_, err := r.certs.Create(ctx, in, owner)
		record("certificate", err)
	}
	return res
}
