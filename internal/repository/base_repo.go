package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/linkloop/linkloop-backend/internal/model"
	"github.com/linkloop/linkloop-backend/pkg/apperror"
	"gorm.io/gorm"
)

// DefaultLimit bounds unpaginated multi-row reads.
const DefaultLimit = 100

// Descriptor holds the per-entity converters the generic repository needs.
// ApplyUpdate applies only the fields the update shape marks as supplied
// (pointer fields), keeping partial updates structurally typed.
type Descriptor[T any, C any, U any] struct {
	FromCreate  func(C) T
	ApplyUpdate func(*T, U)
	// IDOf extracts an id carried on a create shape; non-zero means
	// GetOrCreate resolves by id instead of filtering.
	IDOf func(C) uint
	// FilterOf turns a create shape into the exact-match natural-key filter
	// used by GetOrCreate. The id never belongs in this map.
	FilterOf func(C) map[string]any
}

// Repository is the uniform CRUD surface shared by every entity type.
// Capabilities (soft-delete, ownership audit) are probed once here rather
// than re-checked per call.
type Repository[T any, C any, U any] struct {
	db         *gorm.DB
	desc       Descriptor[T, C, U]
	softDelete bool
	audited    bool
}

func NewRepository[T any, C any, U any](db *gorm.DB, desc Descriptor[T, C, U]) *Repository[T, C, U] {
	var probe T
	_, soft := any(&probe).(model.SoftDeletable)
	_, audited := any(&probe).(model.Auditable)
	return &Repository[T, C, U]{db: db, desc: desc, softDelete: soft, audited: audited}
}

// Query is the base query for the entity, with the soft-delete filter already
// applied when the entity supports it.
func (r *Repository[T, C, U]) Query(ctx context.Context) *gorm.DB {
	q := r.db.WithContext(ctx).Model(new(T))
	if r.softDelete {
		q = q.Where("deleted_at = ?", model.Epoch)
	}
	return q
}

// Unfiltered bypasses the soft-delete filter. Not part of any default read
// path; used for irreversible cleanup and verification.
func (r *Repository[T, C, U]) Unfiltered(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(new(T))
}

// Get fetches by primary key. Absence is a nil result, not an error.
func (r *Repository[T, C, U]) Get(ctx context.Context, id uint) (*T, error) {
	var obj T
	err := r.Query(ctx).Where("id = ?", id).First(&obj).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &obj, nil
}

// GetAll returns every non-deleted row, restricted to the owner's rows when
// one is given and the entity carries ownership.
func (r *Repository[T, C, U]) GetAll(ctx context.Context, owner *model.User) ([]T, error) {
	q := r.Query(ctx)
	if owner != nil && r.audited {
		q = q.Where("created_by_id = ?", owner.ID)
	}
	var objs []T
	if err := q.Find(&objs).Error; err != nil {
		return nil, err
	}
	return objs, nil
}

// GetMulti builds a query satisfying all exact-match filters; the caller
// executes it.
func (r *Repository[T, C, U]) GetMulti(ctx context.Context, filters map[string]any) *gorm.DB {
	q := r.Query(ctx)
	if len(filters) > 0 {
		q = q.Where(filters)
	}
	return q
}

func (r *Repository[T, C, U]) GetMultiLimit(ctx context.Context, skip, limit int, filters map[string]any) *gorm.DB {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return r.GetMulti(ctx, filters).Offset(skip).Limit(limit)
}

// GetMultiSince cursor-paginates by "ids greater than the last seen id",
// which stays stable under concurrent inserts.
func (r *Repository[T, C, U]) GetMultiSince(ctx context.Context, sinceID uint, limit int, filters map[string]any) *gorm.DB {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return r.GetMulti(ctx, filters).Where("id > ?", sinceID).Limit(limit)
}

func (r *Repository[T, C, U]) Find(q *gorm.DB) ([]T, error) {
	var objs []T
	if err := q.Find(&objs).Error; err != nil {
		return nil, err
	}
	return objs, nil
}

func (r *Repository[T, C, U]) First(q *gorm.DB) (*T, error) {
	var obj T
	err := q.First(&obj).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &obj, nil
}

func (r *Repository[T, C, U]) Count(q *gorm.DB) (int64, error) {
	var count int64
	err := q.Count(&count).Error
	return count, err
}

func (r *Repository[T, C, U]) GetByName(ctx context.Context, name string) (*T, error) {
	return r.First(r.Query(ctx).Where("name = ?", name))
}

func (r *Repository[T, C, U]) GetByNames(ctx context.Context, names []string) ([]T, error) {
	return r.Find(r.Query(ctx).Where("name IN ?", names))
}

// Create instantiates the row from the create shape and persists it, stamping
// created_by when the entity carries ownership.
func (r *Repository[T, C, U]) Create(ctx context.Context, in C, actor *model.User) (*T, error) {
	obj := r.desc.FromCreate(in)
	if r.softDelete {
		any(&obj).(model.SoftDeletable).SetDeletedAt(model.Epoch)
	}
	if r.audited && actor != nil {
		any(&obj).(model.Auditable).SetCreatedBy(actor.ID)
	}
	if err := r.db.WithContext(ctx).Create(&obj).Error; err != nil {
		return nil, err
	}
	return &obj, nil
}

// GetOrCreate resolves the input to exactly one row: by id when the shape
// carries one, else by the natural-key filter. More than one match is a
// data-integrity failure, not a row to pick from.
func (r *Repository[T, C, U]) GetOrCreate(ctx context.Context, in C, actor *model.User) (*T, error) {
	if r.desc.IDOf != nil {
		if id := r.desc.IDOf(in); id != 0 {
			return r.Get(ctx, id)
		}
	}
	if r.desc.FilterOf == nil {
		return nil, fmt.Errorf("%w: entity has no natural-key filter", apperror.ErrInvalidInput)
	}
	filter := r.desc.FilterOf(in)

	q := r.GetMulti(ctx, filter)
	count, err := r.Count(q)
	if err != nil {
		return nil, err
	}
	switch {
	case count > 1:
		return nil, apperror.ErrAmbiguousResult
	case count == 1:
		return r.First(r.GetMulti(ctx, filter))
	default:
		return r.Create(ctx, in, actor)
	}
}

// Update overwrites the supplied fields on an existing row and stamps
// updated_by.
func (r *Repository[T, C, U]) Update(ctx context.Context, row *T, in U, actor *model.User) (*T, error) {
	r.desc.ApplyUpdate(row, in)
	if r.audited && actor != nil {
		any(row).(model.Auditable).SetUpdatedBy(actor.ID)
	}
	if err := r.db.WithContext(ctx).Save(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

// Delete soft-deletes when the entity supports it, otherwise removes the row.
// Absence here means state changed under the caller, so it is an error.
func (r *Repository[T, C, U]) Delete(ctx context.Context, id uint, actor *model.User) (*T, error) {
	obj, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, apperror.ErrNotFound
	}
	if r.softDelete {
		any(obj).(model.SoftDeletable).SetDeletedAt(time.Now().UTC())
		if r.audited && actor != nil {
			any(obj).(model.Auditable).SetUpdatedBy(actor.ID)
		}
		if err := r.db.WithContext(ctx).Save(obj).Error; err != nil {
			return nil, err
		}
		return obj, nil
	}
	if err := r.db.WithContext(ctx).Delete(obj).Error; err != nil {
		return nil, err
	}
	return obj, nil
}

// Purge removes the row unconditionally, soft-delete support or not.
func (r *Repository[T, C, U]) Purge(ctx context.Context, id uint) (*T, error) {
	var obj T
	err := r.Unfiltered(ctx).Where("id = ?", id).First(&obj).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Delete(&obj).Error; err != nil {
		return nil, err
	}
	return &obj, nil
}
