package repository

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/linkloop/linkloop-backend/internal/model"
	"github.com/linkloop/linkloop-backend/pkg/apperror"
	"gorm.io/gorm"
)

const MaxInvitationCount = 100

type InvitationCreate struct {
	Name  string `json:"name"`
	Email string `json:"email" validate:"required,email"`
}

// InvitationRepository issues salted invite codes and redeems them. A code is
// deterministic per (name, email, salt), so re-inviting the same person
// reuses the unused row instead of minting a second one.
type InvitationRepository struct {
	db   *gorm.DB
	salt string
}

func NewInvitationRepository(db *gorm.DB, salt string) *InvitationRepository {
	return &InvitationRepository{db: db, salt: salt}
}

func (r *InvitationRepository) query(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&model.Invitation{}).Where("deleted_at = ?", model.Epoch)
}

// InviteCode derives the code from name, email and the configured salt.
func (r *InvitationRepository) InviteCode(name, email string) string {
	sum := md5.Sum([]byte(fmt.Sprintf("%s$%s$%s", name, email, r.salt)))
	return hex.EncodeToString(sum[:])
}

// Create issues an invitation. At most one unused invitation may exist per
// email; an existing unused one is returned as-is.
func (r *InvitationRepository) Create(ctx context.Context, in InvitationCreate) (*model.Invitation, error) {
	var existing model.Invitation
	err := r.query(ctx).Where("email = ? AND used = ?", in.Email, false).First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	inv := model.Invitation{
		Name:  in.Name,
		Email: in.Email,
		Code:  r.InviteCode(in.Name, in.Email),
	}
	if err := r.db.WithContext(ctx).Create(&inv).Error; err != nil {
		return nil, err
	}
	return &inv, nil
}

// Redeem marks the invitation matching (email, code) as used. Unknown or
// already-used codes are rejected.
func (r *InvitationRepository) Redeem(ctx context.Context, email, code string) (*model.Invitation, error) {
	var inv model.Invitation
	err := r.query(ctx).Where("email = ? AND code = ? AND used = ?", email, code, false).
		First(&inv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.NotFoundField("invitation", code)
	}
	if err != nil {
		return nil, err
	}
	inv.Used = true
	if err := r.db.WithContext(ctx).Save(&inv).Error; err != nil {
		return nil, err
	}
	return &inv, nil
}

// GetList cursor-paginates invitations, newest first.
func (r *InvitationRepository) GetList(ctx context.Context, lastID uint, count int) ([]model.Invitation, error) {
	count = clampCount(count, MaxInvitationCount)
	q := r.query(ctx)
	if lastID > 0 {
		q = q.Where("id < ?", lastID)
	}
	var invs []model.Invitation
	err := q.Order("id DESC").Limit(count).Find(&invs).Error
	if err != nil {
		return nil, err
	}
	return invs, nil
}

// Delete soft-removes an invitation, revoking an unredeemed code.
func (r *InvitationRepository) Delete(ctx context.Context, id uint) error {
	res := r.query(ctx).Where("id = ?", id).Update("deleted_at", time.Now().UTC())
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperror.ErrNotFound
	}
	return nil
}
