package repository

import (
	"time"

	"github.com/linkloop/linkloop-backend/internal/model"
	"github.com/linkloop/linkloop-backend/pkg/cache"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

type ImageCreate struct {
	Title string `json:"title"`
	URL   string `json:"url" validate:"required,url"`
}

type ImageUpdate struct {
	Title *string `json:"title,omitempty"`
	URL   *string `json:"url,omitempty"`
}

// Options carries the tunables the repositories need beyond their stores.
type Options struct {
	ConnCountTTL time.Duration
	InterestTTL  time.Duration
	InviteSalt   string
}

// Repositories bundles every repository over one database handle and one
// cache, wired once at startup.
type Repositories struct {
	Users         *UserRepository
	Profiles      *ProfileRepository
	Rooms         *RoomRepository
	Contents      *ContentRepository
	Comments      *CommentRepository
	Actions       *ActionRepository
	Connections   *ConnectionRepository
	Notifications *NotificationRepository
	Educations    *EducationRepository
	Experiences   *ExperienceRepository
	Skills        *SkillRepository
	Interests     *InterestRepository
	Languages     *LanguageRepository
	Certificates  *UserCertificateRepository
	CVs           *CVRepository
	Invitations   *InvitationRepository

	Images *Repository[model.Image, ImageCreate, ImageUpdate]
	Links  *Repository[model.UserLink, UserLinkCreate, UserLinkUpdate]
}

type UserLinkCreate struct {
	Label string `json:"label"`
	URL   string `json:"url" validate:"required,url"`
}

type UserLinkUpdate struct {
	Label *string `json:"label,omitempty"`
	URL   *string `json:"url,omitempty"`
}

func NewRepositories(db *gorm.DB, kv cache.Store, bloom cache.Bloom, rdb *redis.Client, logger zerolog.Logger, opts Options) *Repositories {
	educations := NewEducationRepository(db)
	experiences := NewExperienceRepository(db)
	skills := NewSkillRepository(db)
	interests := NewInterestRepository(db, kv, opts.InterestTTL, logger)
	languages := NewLanguageRepository(db)
	certs := NewUserCertificateRepository(db)

	images := NewRepository(db, Descriptor[model.Image, ImageCreate, ImageUpdate]{
		FromCreate: func(in ImageCreate) model.Image {
			return model.Image{Title: in.Title, URL: in.URL}
		},
		ApplyUpdate: func(obj *model.Image, in ImageUpdate) {
			if in.Title != nil {
				obj.Title = *in.Title
			}
			if in.URL != nil {
				obj.URL = *in.URL
			}
		},
	})
	links := NewRepository(db, Descriptor[model.UserLink, UserLinkCreate, UserLinkUpdate]{
		FromCreate: func(in UserLinkCreate) model.UserLink {
			return model.UserLink{Label: in.Label, URL: in.URL}
		},
		ApplyUpdate: func(obj *model.UserLink, in UserLinkUpdate) {
			if in.Label != nil {
				obj.Label = *in.Label
			}
			if in.URL != nil {
				obj.URL = *in.URL
			}
		},
	})

	return &Repositories{
		Users:         NewUserRepository(db, bloom, logger),
		Profiles:      NewProfileRepository(db),
		Rooms:         NewRoomRepository(db),
		Contents:      NewContentRepository(db),
		Comments:      NewCommentRepository(db),
		Actions:       NewActionRepository(db),
		Connections:   NewConnectionRepository(db, kv, opts.ConnCountTTL, logger),
		Notifications: NewNotificationRepository(db, rdb, logger),
		Educations:    educations,
		Experiences:   experiences,
		Skills:        skills,
		Interests:     interests,
		Languages:     languages,
		Certificates:  certs,
		CVs:           NewCVRepository(db, educations, experiences, skills, interests, languages, certs, logger),
		Invitations:   NewInvitationRepository(db, opts.InviteSalt),
		Images:        images,
		Links:         links,
	}
}
