package repository

import (
	"context"
	"errors"
	"time"

	"github.com/linkloop/linkloop-backend/internal/model"
	"github.com/linkloop/linkloop-backend/pkg/apperror"
	"gorm.io/gorm"
)

const MaxRoomCount = 50

type RoomCreate struct {
	Name             string   `json:"name" validate:"required"`
	Description      string   `json:"description"`
	ShortDescription string   `json:"short_description"`
	BannerImage      string   `json:"banner_image"`
	DisplayPhoto     string   `json:"display_photo"`
	Categories       []string `json:"categories,omitempty"`
}

type RoomUpdate struct {
	Name             *string  `json:"name,omitempty"`
	Description      *string  `json:"description,omitempty"`
	ShortDescription *string  `json:"short_description,omitempty"`
	BannerImage      *string  `json:"banner_image,omitempty"`
	DisplayPhoto     *string  `json:"display_photo,omitempty"`
	Categories       []string `json:"categories,omitempty"`
}

// RoomFilter narrows room listings. FollowedBy keeps rooms the user is a
// member of; Recommended inverts that, surfacing rooms the user has not
// joined, most members first.
type RoomFilter struct {
	Category    string
	FollowedBy  *model.User
	Recommended *model.User
	LastID      uint
	Count       int
}

type RoomRepository struct {
	db *gorm.DB
}

func NewRoomRepository(db *gorm.DB) *RoomRepository {
	return &RoomRepository{db: db}
}

func (r *RoomRepository) query(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&model.Room{}).Where("rooms.deleted_at = ?", model.Epoch)
}

func (r *RoomRepository) Get(ctx context.Context, id uint) (*model.Room, error) {
	var room model.Room
	err := r.query(ctx).Where("rooms.id = ?", id).Preload("Categories").First(&room).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (r *RoomRepository) GetByName(ctx context.Context, name string) (*model.Room, error) {
	var room model.Room
	err := r.query(ctx).Where("rooms.name = ?", name).Preload("Categories").First(&room).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

// GetAll lists rooms under the filter. Recommended ordering is by member
// count; everything else is newest first.
func (r *RoomRepository) GetAll(ctx context.Context, f RoomFilter) ([]model.Room, error) {
	count := clampCount(f.Count, MaxRoomCount)

	q := r.query(ctx)
	if f.Category != "" {
		q = q.Where(`rooms.id IN (SELECT rca.room_id FROM room_category_assocs rca
			JOIN room_categories rc ON rc.id = rca.room_category_id
			WHERE rc.deleted_at = ? AND rc.name = ?)`, model.Epoch, f.Category)
	}
	if f.FollowedBy != nil {
		q = q.Where("rooms.id IN (SELECT room_id FROM user_rooms WHERE user_id = ?)", f.FollowedBy.ID)
	}

	if f.Recommended != nil {
		q = q.Where("rooms.id NOT IN (SELECT room_id FROM user_rooms WHERE user_id = ?)", f.Recommended.ID).
			Joins("LEFT JOIN user_rooms ur ON ur.room_id = rooms.id").
			Group("rooms.id").
			Order("COUNT(ur.id) DESC, rooms.id DESC")
	} else {
		q = q.Order("rooms.id DESC")
	}
	if f.LastID > 0 && f.Recommended == nil {
		q = q.Where("rooms.id < ?", f.LastID)
	}

	var rooms []model.Room
	err := q.Limit(count).Preload("Categories").Find(&rooms).Error
	if err != nil {
		return nil, err
	}
	return rooms, nil
}

// RoomUsersMode selects how much of the member list to materialize.
type RoomUsersMode int

const (
	RoomUsersTotal RoomUsersMode = iota
	RoomUsersIDs
	RoomUsersFull
)

type RoomUsers struct {
	Total   int64
	UserIDs []uint
	Users   []model.User
}

// GetAllUsers returns the membership of a room at the requested granularity;
// Total is always populated.
func (r *RoomRepository) GetAllUsers(ctx context.Context, roomID uint, mode RoomUsersMode) (*RoomUsers, error) {
	out := &RoomUsers{}

	memberQ := r.db.WithContext(ctx).Model(&model.UserRoom{}).
		Distinct("user_rooms.user_id").
		Joins("JOIN users ON users.id = user_rooms.user_id").
		Where("user_rooms.room_id = ? AND users.deleted_at = ? AND users.deactivated_at IS NULL",
			roomID, model.Epoch)

	if err := memberQ.Session(&gorm.Session{}).Count(&out.Total).Error; err != nil {
		return nil, err
	}
	if mode == RoomUsersTotal {
		return out, nil
	}
	if err := memberQ.Pluck("user_rooms.user_id", &out.UserIDs).Error; err != nil {
		return nil, err
	}
	if mode == RoomUsersIDs {
		return out, nil
	}
	err := r.db.WithContext(ctx).Preload("Profile").
		Where("id IN ?", out.UserIDs).Find(&out.Users).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetUserRoom fetches the membership row for (user, room, role name).
func (r *RoomRepository) GetUserRoom(ctx context.Context, userID, roomID uint, roleName string) (*model.UserRoom, error) {
	var ur model.UserRoom
	err := r.db.WithContext(ctx).Model(&model.UserRoom{}).
		Joins("JOIN roles ON roles.id = user_rooms.role_id").
		Where("user_rooms.user_id = ? AND user_rooms.room_id = ? AND roles.name = ?", userID, roomID, roleName).
		First(&ur).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ur, nil
}

// GetUserRoomRoles lists the role names the user holds in a room.
func (r *RoomRepository) GetUserRoomRoles(ctx context.Context, userID, roomID uint) ([]string, error) {
	var names []string
	err := r.db.WithContext(ctx).Model(&model.UserRoom{}).
		Joins("JOIN roles ON roles.id = user_rooms.role_id").
		Where("user_rooms.user_id = ? AND user_rooms.room_id = ?", userID, roomID).
		Pluck("roles.name", &names).Error
	if err != nil {
		return nil, err
	}
	return names, nil
}

// GetRoomsFromUser lists rooms the user belongs to.
func (r *RoomRepository) GetRoomsFromUser(ctx context.Context, userID uint) ([]model.Room, error) {
	var rooms []model.Room
	err := r.query(ctx).
		Where("rooms.id IN (SELECT room_id FROM user_rooms WHERE user_id = ?)", userID).
		Preload("Categories").Find(&rooms).Error
	if err != nil {
		return nil, err
	}
	return rooms, nil
}

// AddUserToRoom grants the user the named role in the room, idempotently.
// One membership row per (user, room, role).
func (r *RoomRepository) AddUserToRoom(ctx context.Context, userID, roomID uint, roleName string) (*model.UserRoom, error) {
	existing, err := r.GetUserRoom(ctx, userID, roomID, roleName)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}
	var role model.Role
	err = r.db.WithContext(ctx).Where("deleted_at = ? AND name = ?", model.Epoch, roleName).
		First(&role).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.NotFoundField("role", roleName)
	}
	if err != nil {
		return nil, err
	}
	ur := model.UserRoom{UserID: userID, RoomID: roomID, RoleID: role.ID}
	if err := r.db.WithContext(ctx).Create(&ur).Error; err != nil {
		return nil, err
	}
	return &ur, nil
}

// DeleteUserFromRoom removes one role row, or every role the user holds there
// when roleName is empty. Membership rows are hard-deleted.
func (r *RoomRepository) DeleteUserFromRoom(ctx context.Context, userID, roomID uint, roleName string) error {
	q := r.db.WithContext(ctx).Where("user_id = ? AND room_id = ?", userID, roomID)
	if roleName != "" {
		q = q.Where("role_id IN (SELECT id FROM roles WHERE name = ?)", roleName)
	}
	res := q.Delete(&model.UserRoom{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperror.ErrNotFound
	}
	return nil
}

// Create persists a room and resolves its categories by name.
func (r *RoomRepository) Create(ctx context.Context, in RoomCreate, actor *model.User) (*model.Room, error) {
	room := model.Room{
		Description:      in.Description,
		ShortDescription: in.ShortDescription,
		BannerImage:      in.BannerImage,
		DisplayPhoto:     in.DisplayPhoto,
	}
	room.SetName(in.Name)
	room.SetDeletedAt(model.Epoch)
	if actor != nil {
		room.SetCreatedBy(actor.ID)
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&room).Error; err != nil {
			return err
		}
		return r.replaceCategories(tx, &room, in.Categories, actor)
	})
	if err != nil {
		return nil, err
	}
	return &room, nil
}

// Update overwrites only the supplied fields.
func (r *RoomRepository) Update(ctx context.Context, room *model.Room, in RoomUpdate, actor *model.User) (*model.Room, error) {
	if in.Name != nil {
		room.SetName(*in.Name)
	}
	if in.Description != nil {
		room.Description = *in.Description
	}
	if in.ShortDescription != nil {
		room.ShortDescription = *in.ShortDescription
	}
	if in.BannerImage != nil {
		room.BannerImage = *in.BannerImage
	}
	if in.DisplayPhoto != nil {
		room.DisplayPhoto = *in.DisplayPhoto
	}
	if actor != nil {
		room.SetUpdatedBy(actor.ID)
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(room).Error; err != nil {
			return err
		}
		if in.Categories != nil {
			return r.replaceCategories(tx, room, in.Categories, actor)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return room, nil
}

func (r *RoomRepository) replaceCategories(tx *gorm.DB, room *model.Room, names []string, actor *model.User) error {
	if names == nil {
		return nil
	}
	cats := make([]model.RoomCategory, 0, len(names))
	for _, name := range names {
		var cat model.RoomCategory
		err := tx.Where("deleted_at = ? AND name = ?", model.Epoch, name).First(&cat).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			cat = model.RoomCategory{}
			cat.SetName(name)
			cat.SetDeletedAt(model.Epoch)
			if actor != nil {
				cat.SetCreatedBy(actor.ID)
			}
			err = tx.Create(&cat).Error
		}
		if err != nil {
			return err
		}
		cats = append(cats, cat)
	}
	if err := tx.Model(room).Association("Categories").Replace(cats); err != nil {
		return err
	}
	room.Categories = cats
	return nil
}

// Delete soft-removes the room; memberships stay but resolve to nothing.
func (r *RoomRepository) Delete(ctx context.Context, id uint, actor *model.User) (*model.Room, error) {
	room, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if room == nil {
		return nil, apperror.ErrNotFound
	}
	room.SetDeletedAt(time.Now().UTC())
	if actor != nil {
		room.SetUpdatedBy(actor.ID)
	}
	if err := r.db.WithContext(ctx).Save(room).Error; err != nil {
		return nil, err
	}
	return room, nil
}
