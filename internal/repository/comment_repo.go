package repository

import (
	"context"
	"time"

	"github.com/linkloop/linkloop-backend/internal/model"
	"github.com/linkloop/linkloop-backend/pkg/apperror"
	"gorm.io/gorm"
)

// Per-request ceilings for comment pagination. Clamped server-side no matter
// what the client asked for.
const (
	MaxCommentCount    = 25
	MaxSubCommentCount = 10
)

type CommentCreate struct {
	Body      string `json:"body" validate:"required"`
	ContentID uint   `json:"content_id" validate:"required"`
	ParentID  *uint  `json:"parent_id,omitempty"`
}

type CommentUpdate struct {
	Body *string `json:"body,omitempty"`
}

// CommentRepository stores comments as a tree: every row points at its
// content and optionally a parent comment. Depth is unbounded in the schema
// but traversal is capped at 3 levels per request.
type CommentRepository struct {
	db   *gorm.DB
	base *Repository[model.Comment, CommentCreate, CommentUpdate]
}

func NewCommentRepository(db *gorm.DB) *CommentRepository {
	base := NewRepository(db, Descriptor[model.Comment, CommentCreate, CommentUpdate]{
		FromCreate: func(in CommentCreate) model.Comment {
			return model.Comment{Body: in.Body, ContentID: in.ContentID, ParentID: in.ParentID}
		},
		ApplyUpdate: func(obj *model.Comment, in CommentUpdate) {
			if in.Body != nil {
				obj.Body = *in.Body
			}
		},
	})
	return &CommentRepository{db: db, base: base}
}

func (r *CommentRepository) Base() *Repository[model.Comment, CommentCreate, CommentUpdate] {
	return r.base
}

func clampCount(count, max int) int {
	if count > max {
		return max
	}
	if count < 1 {
		return 1
	}
	return count
}

// CommentQuery selects one level of the tree: top level when ParentID is nil,
// replies of that comment otherwise.
type CommentQuery struct {
	ContentID     uint
	ParentID      *uint
	LastID        uint
	Count         int
	CheckComments bool
	TotalOnly     bool
}

type CommentPage struct {
	Comments []model.Comment
	Total    int64
}

// GetAll fetches a single level, newest first, with the level's true total.
func (r *CommentRepository) GetAll(ctx context.Context, q CommentQuery) (*CommentPage, error) {
	count := clampCount(q.Count, MaxCommentCount)

	query := r.base.Query(ctx).Where("content_id = ?", q.ContentID)
	if !q.TotalOnly {
		if q.ParentID == nil {
			query = query.Where("parent_id IS NULL")
		} else {
			query = query.Where("parent_id = ?", *q.ParentID)
		}
	}

	total, err := r.base.Count(query.Session(&gorm.Session{}))
	if err != nil {
		return nil, err
	}
	if q.CheckComments && total > 1 {
		total = 1
	}

	page := &CommentPage{Total: total}
	if q.TotalOnly || q.CheckComments {
		return page, nil
	}

	query = query.Order("created_at DESC, id DESC")
	if q.LastID > 0 {
		query = query.Where("id < ?", q.LastID)
	}
	query = query.Limit(count)

	if err := query.Find(&page.Comments).Error; err != nil {
		return nil, err
	}
	return page, nil
}

// FlatComment is one output row of the 3-level fetch: columns for all levels
// at once, deeper levels nil when absent. One row per deepest populated leaf.
type FlatComment struct {
	L1Total       int64      `gorm:"column:l1_total"`
	L1ID          uint       `gorm:"column:l1_id"`
	L1ParentID    *uint      `gorm:"column:l1_parent_id"`
	L1Body        string     `gorm:"column:l1_body"`
	L1CreatedByID uint       `gorm:"column:l1_created_by_id"`
	L1CreatedAt   time.Time  `gorm:"column:l1_created_at"`
	L1UpdatedAt   time.Time  `gorm:"column:l1_updated_at"`

	L2Total       *int64     `gorm:"column:l2_total"`
	L2ID          *uint      `gorm:"column:l2_id"`
	L2ParentID    *uint      `gorm:"column:l2_parent_id"`
	L2Body        *string    `gorm:"column:l2_body"`
	L2CreatedByID *uint      `gorm:"column:l2_created_by_id"`
	L2CreatedAt   *time.Time `gorm:"column:l2_created_at"`
	L2UpdatedAt   *time.Time `gorm:"column:l2_updated_at"`

	L3Total       *int64     `gorm:"column:l3_total"`
	L3ID          *uint      `gorm:"column:l3_id"`
	L3ParentID    *uint      `gorm:"column:l3_parent_id"`
	L3Body        *string    `gorm:"column:l3_body"`
	L3CreatedByID *uint      `gorm:"column:l3_created_by_id"`
	L3CreatedAt   *time.Time `gorm:"column:l3_created_at"`
	L3UpdatedAt   *time.Time `gorm:"column:l3_updated_at"`
}

// TreeQuery selects up to 3 levels under a content (ParentID nil) or under a
// specific comment. IncludeCID roots the result at the comment itself, used
// by single-comment permalinks.
type TreeQuery struct {
	ContentID  uint
	ParentID   *uint
	IncludeCID bool
	LastID     uint
	Count      int
	SubCount   int
}

// GetMultiLevels retrieves a whole 3-level page in one round trip. Each level
// is limited per parent with a window rank and carries the parent's true
// child count, so "view N more replies" never needs a second query shape.
func (r *CommentRepository) GetMultiLevels(ctx context.Context, q TreeQuery) ([]FlatComment, error) {
	count := clampCount(q.Count, MaxCommentCount)
	subCount := clampCount(q.SubCount, MaxSubCommentCount)

	rootPred := "parent_id IS NULL"
	totalPred := "parent_id IS NULL"
	rootArgs := []any{}
	totalArgs := []any{}
	if q.ParentID != nil {
		totalPred = "parent_id = ?"
		totalArgs = []any{*q.ParentID}
		if q.IncludeCID {
			rootPred = "id = ?"
			rootArgs = []any{*q.ParentID}
		} else {
			rootPred = "parent_id = ?"
			rootArgs = []any{*q.ParentID}
		}
	}
	cursorPred := ""
	if q.LastID > 0 && !q.IncludeCID {
		cursorPred = " AND id < ?"
		rootArgs = append(rootArgs, q.LastID)
	}

	sql := `
WITH l1 AS (
	SELECT id, content_id, parent_id, body, created_by_id, created_at, updated_at,
	       ROW_NUMBER() OVER (ORDER BY created_at DESC, id DESC) AS rn
	FROM comments
	WHERE deleted_at = ? AND content_id = ? AND ` + rootPred + cursorPred + `
),
l1p AS (SELECT * FROM l1 WHERE rn <= ?),
l1t AS (
	SELECT COUNT(*) AS total FROM comments
	WHERE deleted_at = ? AND content_id = ? AND ` + totalPred + `
),
l2 AS (
	SELECT c.id, c.parent_id, c.body, c.created_by_id, c.created_at, c.updated_at,
	       ROW_NUMBER() OVER (PARTITION BY c.parent_id ORDER BY c.created_at DESC, c.id DESC) AS rn,
	       COUNT(*) OVER (PARTITION BY c.parent_id) AS total
	FROM comments c JOIN l1p ON c.parent_id = l1p.id
	WHERE c.deleted_at = ?
),
l2p AS (SELECT * FROM l2 WHERE rn <= ?),
l3 AS (
	SELECT c.id, c.parent_id, c.body, c.created_by_id, c.created_at, c.updated_at,
	       ROW_NUMBER() OVER (PARTITION BY c.parent_id ORDER BY c.created_at DESC, c.id DESC) AS rn,
	       COUNT(*) OVER (PARTITION BY c.parent_id) AS total
	FROM comments c JOIN l2p ON c.parent_id = l2p.id
	WHERE c.deleted_at = ?
),
l3p AS (SELECT * FROM l3 WHERE rn <= ?)
SELECT l1t.total AS l1_total,
       l1p.id AS l1_id, l1p.parent_id AS l1_parent_id, l1p.body AS l1_body,
       l1p.created_by_id AS l1_created_by_id, l1p.created_at AS l1_created_at, l1p.updated_at AS l1_updated_at,
       l2p.total AS l2_total, l2p.id AS l2_id, l2p.parent_id AS l2_parent_id, l2p.body AS l2_body,
       l2p.created_by_id AS l2_created_by_id, l2p.created_at AS l2_created_at, l2p.updated_at AS l2_updated_at,
       l3p.total AS l3_total, l3p.id AS l3_id, l3p.parent_id AS l3_parent_id, l3p.body AS l3_body,
       l3p.created_by_id AS l3_created_by_id, l3p.created_at AS l3_created_at, l3p.updated_at AS l3_updated_at
FROM l1p
CROSS JOIN l1t
LEFT JOIN l2p ON l2p.parent_id = l1p.id
LEFT JOIN l3p ON l3p.parent_id = l2p.id
ORDER BY l1p.rn, l2p.rn, l3p.rn`

	args := []any{model.Epoch, q.ContentID}
	args = append(args, rootArgs...)
	args = append(args, count, model.Epoch, q.ContentID)
	args = append(args, totalArgs...)
	args = append(args, model.Epoch, subCount, model.Epoch, subCount)

	var rows []FlatComment
	if err := r.db.WithContext(ctx).Raw(sql, args...).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// CreateOrUpdate persists a comment, stamping the audit pair.
func (r *CommentRepository) CreateOrUpdate(ctx context.Context, in CommentCreate, existing *model.Comment, actor *model.User) (*model.Comment, error) {
	if existing == nil {
		return r.base.Create(ctx, in, actor)
	}
	return r.base.Update(ctx, existing, CommentUpdate{Body: &in.Body}, actor)
}

// DeleteTree soft-deletes a comment and everything under it (two levels down)
// as one transaction: gather the affected ids with a single set-producing
// query, then bulk-stamp deleted_at and updated_by. A parent must never end
// up deleted while its replies stay live.
func (r *CommentRepository) DeleteTree(ctx context.Context, id uint, actor *model.User) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []uint
		gather := `
SELECT id FROM comments
WHERE deleted_at = ?
  AND (id = ?
       OR parent_id = ?
       OR parent_id IN (SELECT id FROM comments WHERE deleted_at = ? AND parent_id = ?))`
		if err := tx.Raw(gather, model.Epoch, id, id, model.Epoch, id).Scan(&ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return apperror.ErrNotFound
		}

		updates := map[string]any{"deleted_at": time.Now().UTC()}
		if actor != nil {
			updates["updated_by_id"] = actor.ID
		}
		return tx.Model(&model.Comment{}).Where("id IN ?", ids).Updates(updates).Error
	})
}
