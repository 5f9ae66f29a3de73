package repository

import (
	"context"
	"errors"
	"time"

	"github.com/linkloop/linkloop-backend/internal/model"
	"gorm.io/gorm"
)

// ActionRepository holds the per-(user, entity) reaction rows. A row is
// created on the first action and toggled in place afterwards, so each pair
// has at most one live row.
type ActionRepository struct {
	db *gorm.DB
}

func NewActionRepository(db *gorm.DB) *ActionRepository {
	return &ActionRepository{db: db}
}

func (r *ActionRepository) getOrCreateContent(ctx context.Context, contentID uint, actor *model.User) (*model.UserContentAction, error) {
	var action model.UserContentAction
	err := r.db.WithContext(ctx).
		Where("deleted_at = ? AND content_id = ? AND created_by_id = ?", model.Epoch, contentID, actor.ID).
		First(&action).Error
	if err == nil {
		return &action, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	action = model.UserContentAction{ContentID: contentID}
	action.SetDeletedAt(model.Epoch)
	action.SetCreatedBy(actor.ID)
	if err := r.db.WithContext(ctx).Create(&action).Error; err != nil {
		return nil, err
	}
	return &action, nil
}

func (r *ActionRepository) getOrCreateComment(ctx context.Context, commentID uint, actor *model.User) (*model.UserCommentAction, error) {
	var action model.UserCommentAction
	err := r.db.WithContext(ctx).
		Where("deleted_at = ? AND comment_id = ? AND created_by_id = ?", model.Epoch, commentID, actor.ID).
		First(&action).Error
	if err == nil {
		return &action, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	action = model.UserCommentAction{CommentID: commentID}
	action.SetDeletedAt(model.Epoch)
	action.SetCreatedBy(actor.ID)
	if err := r.db.WithContext(ctx).Create(&action).Error; err != nil {
		return nil, err
	}
	return &action, nil
}

// SetContentLike turns the like on or off; turning it to its current state is
// a no-op.
func (r *ActionRepository) SetContentLike(ctx context.Context, contentID uint, actor *model.User, liked bool) (*model.UserContentAction, error) {
	action, err := r.getOrCreateContent(ctx, contentID, actor)
	if err != nil {
		return nil, err
	}
	if (action.LikedAt != nil) == liked {
		return action, nil
	}
	if liked {
		now := time.Now().UTC()
		action.LikedAt = &now
	} else {
		action.LikedAt = nil
	}
	action.SetUpdatedBy(actor.ID)
	if err := r.db.WithContext(ctx).Save(action).Error; err != nil {
		return nil, err
	}
	return action, nil
}

func (r *ActionRepository) SetContentSave(ctx context.Context, contentID uint, actor *model.User, saved bool) (*model.UserContentAction, error) {
	action, err := r.getOrCreateContent(ctx, contentID, actor)
	if err != nil {
		return nil, err
	}
	if (action.SavedAt != nil) == saved {
		return action, nil
	}
	if saved {
		now := time.Now().UTC()
		action.SavedAt = &now
	} else {
		action.SavedAt = nil
	}
	action.SetUpdatedBy(actor.ID)
	if err := r.db.WithContext(ctx).Save(action).Error; err != nil {
		return nil, err
	}
	return action, nil
}

func (r *ActionRepository) SetCommentLike(ctx context.Context, commentID uint, actor *model.User, liked bool) (*model.UserCommentAction, error) {
	action, err := r.getOrCreateComment(ctx, commentID, actor)
	if err != nil {
		return nil, err
	}
	if (action.LikedAt != nil) == liked {
		return action, nil
	}
	if liked {
		now := time.Now().UTC()
		action.LikedAt = &now
	} else {
		action.LikedAt = nil
	}
	action.SetUpdatedBy(actor.ID)
	if err := r.db.WithContext(ctx).Save(action).Error; err != nil {
		return nil, err
	}
	return action, nil
}

// CountContentLikes is the uncached like total for one content.
func (r *ActionRepository) CountContentLikes(ctx context.Context, contentID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.UserContentAction{}).
		Where("deleted_at = ? AND content_id = ? AND liked_at IS NOT NULL", model.Epoch, contentID).
		Count(&count).Error
	return count, err
}

func (r *ActionRepository) CountCommentLikes(ctx context.Context, commentID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.UserCommentAction{}).
		Where("deleted_at = ? AND comment_id = ? AND liked_at IS NOT NULL", model.Epoch, commentID).
		Count(&count).Error
	return count, err
}
