package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/linkloop/linkloop-backend/internal/model"
	"github.com/linkloop/linkloop-backend/pkg/apperror"
	"github.com/linkloop/linkloop-backend/pkg/permalink"
	"gorm.io/gorm"
)

const MaxContentCount = 100

// Post permalinks derive their slug from the first words of the body.
const postSlugWords = 8

type ContentCreate struct {
	Type     model.ContentType `json:"type" validate:"required,oneof=post article"`
	Title    *string           `json:"title,omitempty"`
	Body     *string           `json:"body,omitempty"`
	Format   string            `json:"format"`
	RoomID   uint              `json:"room_id" validate:"required"`
	Tags     []string          `json:"tags,omitempty"`
	ImageIDs []uint            `json:"image_ids,omitempty"`
}

type ContentUpdate struct {
	Title    *string  `json:"title,omitempty"`
	Body     *string  `json:"body,omitempty"`
	Format   *string  `json:"format,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	ImageIDs []uint   `json:"image_ids,omitempty"`
}

// ContentFilter narrows the feed. SavedBy and LikedBy are viewer-relative;
// ConnectionsOf keeps only content authored by the user's active connections.
type ContentFilter struct {
	RoomID        uint
	Type          model.ContentType
	Format        string
	AuthorID      uint
	Search        string
	Tag           string
	SavedBy       *model.User
	LikedBy       *model.User
	CommentedBy   *model.User
	ConnectionsOf *model.User
	LastID        uint
	Count         int
}

type ContentRepository struct {
	db *gorm.DB
}

func NewContentRepository(db *gorm.DB) *ContentRepository {
	return &ContentRepository{db: db}
}

func (r *ContentRepository) query(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&model.Content{}).Where("contents.deleted_at = ?", model.Epoch)
}

// slugSource picks what the permalink slug is derived from: the title for
// articles, a body excerpt for posts.
func slugSource(title, body *string) string {
	if title != nil && *title != "" {
		return *title
	}
	if body != nil && *body != "" {
		words := strings.Fields(*body)
		if len(words) > postSlugWords {
			words = words[:postSlugWords]
		}
		return strings.Join(words, " ")
	}
	return "post"
}

// CreateOrUpdate persists content. A row needs at least a title, a body, or
// an image; the room must exist; tags are get-or-created by name.
func (r *ContentRepository) CreateOrUpdate(ctx context.Context, in ContentCreate, existing *model.Content, actor *model.User) (*model.Content, error) {
	hasTitle := in.Title != nil && *in.Title != ""
	hasBody := in.Body != nil && *in.Body != ""
	if !hasTitle && !hasBody && len(in.ImageIDs) == 0 {
		return nil, apperror.MissingField("title, body or image")
	}

	var content *model.Content
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if existing == nil {
			var room model.Room
			err := tx.Where("deleted_at = ? AND id = ?", model.Epoch, in.RoomID).First(&room).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperror.NotFoundField("room_id", in.RoomID)
			}
			if err != nil {
				return err
			}
			content = &model.Content{
				Type:      in.Type,
				Title:     in.Title,
				Body:      in.Body,
				Format:    in.Format,
				RoomID:    in.RoomID,
				Permalink: permalink.Slug(slugSource(in.Title, in.Body)),
			}
			content.SetDeletedAt(model.Epoch)
			if actor != nil {
				content.SetCreatedBy(actor.ID)
			}
			if err := tx.Create(content).Error; err != nil {
				return err
			}
		} else {
			content = existing
			content.Title = in.Title
			content.Body = in.Body
			content.Format = in.Format
			if actor != nil {
				content.SetUpdatedBy(actor.ID)
			}
			if err := tx.Save(content).Error; err != nil {
				return err
			}
		}

		if in.Tags != nil {
			tags := make([]model.ContentTag, 0, len(in.Tags))
			for _, name := range in.Tags {
				var tag model.ContentTag
				err := tx.Where("deleted_at = ? AND name = ?", model.Epoch, name).First(&tag).Error
				if errors.Is(err, gorm.ErrRecordNotFound) {
					tag = model.ContentTag{}
					tag.SetName(name)
					tag.SetDeletedAt(model.Epoch)
					if actor != nil {
						tag.SetCreatedBy(actor.ID)
					}
					err = tx.Create(&tag).Error
				}
				if err != nil {
					return err
				}
				tags = append(tags, tag)
			}
			if err := tx.Model(content).Association("Tags").Replace(tags); err != nil {
				return err
			}
			content.Tags = tags
		}

		if in.ImageIDs != nil {
			var images []model.Image
			if err := tx.Where("deleted_at = ? AND id IN ?", model.Epoch, in.ImageIDs).Find(&images).Error; err != nil {
				return err
			}
			if len(images) != len(in.ImageIDs) {
				return apperror.NotFoundField("image_ids", in.ImageIDs)
			}
			if err := tx.Model(content).Association("Images").Replace(images); err != nil {
				return err
			}
			content.Images = images
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return content, nil
}

func (r *ContentRepository) Get(ctx context.Context, id uint) (*model.Content, error) {
	var content model.Content
	err := r.query(ctx).Where("contents.id = ?", id).
		Preload("Tags").Preload("Images").Preload("Room").
		First(&content).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &content, nil
}

// GetByPermalink resolves "<slug>-<base58 id>": the id segment drives the
// lookup, the stored slug must match what the link claims.
func (r *ContentRepository) GetByPermalink(ctx context.Context, raw string) (*model.Content, error) {
	parsed := permalink.Parse(raw)
	if !parsed.Valid || parsed.ID == 0 {
		return nil, apperror.NotFoundField("permalink", raw)
	}
	content, err := r.Get(ctx, parsed.ID)
	if err != nil {
		return nil, err
	}
	if content == nil || content.Permalink != parsed.Slug {
		return nil, apperror.NotFoundField("permalink", raw)
	}
	return content, nil
}

// GetAll pages the feed newest first under the given filter.
func (r *ContentRepository) GetAll(ctx context.Context, f ContentFilter) ([]model.Content, error) {
	count := clampCount(f.Count, MaxContentCount)

	q := r.query(ctx)
	if f.RoomID != 0 {
		q = q.Where("contents.room_id = ?", f.RoomID)
	}
	if f.Type != "" {
		q = q.Where("contents.type = ?", f.Type)
	}
	if f.Format != "" {
		q = q.Where("contents.format = ?", f.Format)
	}
	if f.AuthorID != 0 {
		q = q.Where("contents.created_by_id = ?", f.AuthorID)
	}
	if f.Search != "" {
		pattern := "%" + strings.ToLower(f.Search) + "%"
		q = q.Where("LOWER(contents.title) LIKE ? OR LOWER(contents.body) LIKE ?", pattern, pattern)
	}
	if f.Tag != "" {
		q = q.Where(`contents.id IN (SELECT cta.content_id FROM content_tag_assocs cta
			JOIN content_tags t ON t.id = cta.content_tag_id
			WHERE t.deleted_at = ? AND t.name = ?)`, model.Epoch, f.Tag)
	}
	if f.SavedBy != nil {
		q = q.Where(`contents.id IN (SELECT content_id FROM user_content_actions
			WHERE deleted_at = ? AND created_by_id = ? AND saved_at IS NOT NULL)`,
			model.Epoch, f.SavedBy.ID)
	}
	if f.LikedBy != nil {
		q = q.Where(`contents.id IN (SELECT content_id FROM user_content_actions
			WHERE deleted_at = ? AND created_by_id = ? AND liked_at IS NOT NULL)`,
			model.Epoch, f.LikedBy.ID)
	}
	if f.CommentedBy != nil {
		q = q.Where(`contents.id IN (SELECT content_id FROM comments
			WHERE deleted_at = ? AND created_by_id = ?)`,
			model.Epoch, f.CommentedBy.ID)
	}
	if f.ConnectionsOf != nil {
		q = q.Where(`contents.created_by_id IN (
			SELECT CASE WHEN created_by_id = ? THEN receiver_id ELSE created_by_id END
			FROM user_connections
			WHERE deleted_at = ? AND connected = ?
			  AND (created_by_id = ? OR receiver_id = ?))`,
			f.ConnectionsOf.ID, model.Epoch, true, f.ConnectionsOf.ID, f.ConnectionsOf.ID)
	}
	if f.LastID > 0 {
		q = q.Where("contents.id < ?", f.LastID)
	}

	var contents []model.Content
	err := q.Order("contents.id DESC").Limit(count).
		Preload("Tags").Preload("Images").Preload("Room").
		Find(&contents).Error
	if err != nil {
		return nil, err
	}
	return contents, nil
}

// Delete soft-removes the content.
func (r *ContentRepository) Delete(ctx context.Context, id uint, actor *model.User) (*model.Content, error) {
	content, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if content == nil {
		return nil, apperror.ErrNotFound
	}
	content.SetDeletedAt(time.Now().UTC())
	if actor != nil {
		content.SetUpdatedBy(actor.ID)
	}
	if err := r.db.WithContext(ctx).Save(content).Error; err != nil {
		return nil, err
	}
	return content, nil
}

// ContentView is a feed item: the row plus author identity, viewer reactions
// and engagement totals.
type ContentView struct {
	Content       *model.Content `json:"content"`
	Author        CommentAuthor  `json:"author"`
	Link          string         `json:"link"`
	Liked         bool           `json:"liked"`
	Saved         bool           `json:"saved"`
	LikesTotal    int64          `json:"likes_total"`
	CommentsTotal int64          `json:"comments_total"`
}

type contentCountRow struct {
	ContentID uint  `gorm:"column:content_id"`
	Total     int64 `gorm:"column:total"`
}

// AttachAuthors enriches a page in three batched queries: authors, viewer
// actions, and engagement totals.
func (r *ContentRepository) AttachAuthors(ctx context.Context, contents []model.Content, viewer *model.User) ([]ContentView, error) {
	views := make([]ContentView, 0, len(contents))
	if len(contents) == 0 {
		return views, nil
	}

	contentIDs := make([]uint, 0, len(contents))
	authorIDs := make([]uint, 0, len(contents))
	seen := map[uint]bool{}
	for i := range contents {
		contentIDs = append(contentIDs, contents[i].ID)
		if contents[i].CreatedByID != nil && !seen[*contents[i].CreatedByID] {
			seen[*contents[i].CreatedByID] = true
			authorIDs = append(authorIDs, *contents[i].CreatedByID)
		}
	}

	authors := map[uint]*model.User{}
	if len(authorIDs) > 0 {
		var users []model.User
		if err := r.db.WithContext(ctx).Preload("Profile").
			Where("id IN ?", authorIDs).Find(&users).Error; err != nil {
			return nil, err
		}
		for i := range users {
			authors[users[i].ID] = &users[i]
		}
	}

	liked, saved := map[uint]bool{}, map[uint]bool{}
	if viewer != nil {
		var actions []model.UserContentAction
		err := r.db.WithContext(ctx).
			Where("deleted_at = ? AND created_by_id = ? AND content_id IN ?", model.Epoch, viewer.ID, contentIDs).
			Find(&actions).Error
		if err != nil {
			return nil, err
		}
		for _, a := range actions {
			if a.LikedAt != nil {
				liked[a.ContentID] = true
			}
			if a.SavedAt != nil {
				saved[a.ContentID] = true
			}
		}
	}

	likeTotals := map[uint]int64{}
	var likeRows []contentCountRow
	err := r.db.WithContext(ctx).Model(&model.UserContentAction{}).
		Select("content_id, COUNT(*) AS total").
		Where("deleted_at = ? AND content_id IN ? AND liked_at IS NOT NULL", model.Epoch, contentIDs).
		Group("content_id").Scan(&likeRows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range likeRows {
		likeTotals[row.ContentID] = row.Total
	}

	commentTotals := map[uint]int64{}
	var commentRows []contentCountRow
	err = r.db.WithContext(ctx).Model(&model.Comment{}).
		Select("content_id, COUNT(*) AS total").
		Where("deleted_at = ? AND content_id IN ?", model.Epoch, contentIDs).
		Group("content_id").Scan(&commentRows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range commentRows {
		commentTotals[row.ContentID] = row.Total
	}

	for i := range contents {
		c := &contents[i]
		var author CommentAuthor
		if c.CreatedByID != nil {
			author = commentAuthor(authors[*c.CreatedByID])
		} else {
			author = CommentAuthor{Deleted: true}
		}
		views = append(views, ContentView{
			Content:       c,
			Author:        author,
			Link:          permalink.Build(c.Permalink, c.ID),
			Liked:         liked[c.ID],
			Saved:         saved[c.ID],
			LikesTotal:    likeTotals[c.ID],
			CommentsTotal: commentTotals[c.ID],
		})
	}
	return views, nil
}
