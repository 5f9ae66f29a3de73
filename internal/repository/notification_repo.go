package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/linkloop/linkloop-backend/internal/model"
	"github.com/linkloop/linkloop-backend/pkg/apperror"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const MaxNotificationCount = 30

// NotificationChannel is the pub/sub channel prefix for live delivery.
const NotificationChannel = "user_notifications:"

// NotificationInput describes one event to surface. Actor is the user who
// acted; Meta carries the target ref matching Type. ForceUpdate rewrites the
// meta of an existing slot in place without bumping it in the feed.
// DeleteOnly retracts the actor's earlier event instead of adding one.
type NotificationInput struct {
	UserUID     string
	Type        model.NotificationType
	Actor       model.NotificationActor
	Meta        model.NotificationMeta
	ForceUpdate bool
	DeleteOnly  bool
}

type NotificationRepository struct {
	db     *gorm.DB
	rdb    *redis.Client
	logger zerolog.Logger
}

func NewNotificationRepository(db *gorm.DB, rdb *redis.Client, logger zerolog.Logger) *NotificationRepository {
	return &NotificationRepository{db: db, rdb: rdb, logger: logger}
}

func (r *NotificationRepository) query(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&model.Notification{}).Where("deleted_at = ?", model.Epoch)
}

// entityID pins the slot to the acted-on entity so repeat events land on the
// same row.
func entityID(in NotificationInput) (string, error) {
	switch in.Type {
	case model.NotifCommentOnContent, model.NotifLikeOnContent:
		if in.Meta.Content == nil {
			return "", fmt.Errorf("%w: notification meta missing content", apperror.ErrInvalidInput)
		}
		return strconv.FormatUint(uint64(in.Meta.Content.ID), 10), nil
	case model.NotifCommentOnComment, model.NotifLikeOnComment:
		if in.Meta.Comment == nil {
			return "", fmt.Errorf("%w: notification meta missing comment", apperror.ErrInvalidInput)
		}
		return strconv.FormatUint(uint64(in.Meta.Comment.ID), 10), nil
	case model.NotifNewConnectionReq, model.NotifConnectionAccept:
		if in.Meta.Connection == nil {
			return "", fmt.Errorf("%w: notification meta missing connection", apperror.ErrInvalidInput)
		}
		return strconv.FormatUint(uint64(in.Meta.Connection.ID), 10), nil
	}
	return "", fmt.Errorf("%w: unknown notification type %q", apperror.ErrInvalidInput, in.Type)
}

// mergeActor folds one more actor into a grouped meta. An actor already in
// the visible list moves to the front without touching the total; a new actor
// is prepended and counted, and the visible list is trimmed to the cap.
func mergeActor(meta *model.NotificationMeta, actor model.NotificationActor) {
	for i, u := range meta.Users {
		if u.UID == actor.UID {
			copy(meta.Users[1:i+1], meta.Users[:i])
			meta.Users[0] = actor
			return
		}
	}
	meta.Users = append([]model.NotificationActor{actor}, meta.Users...)
	if len(meta.Users) > model.MaxGroupActors {
		meta.Users = meta.Users[:model.MaxGroupActors]
	}
	meta.UsersCount++
}

// removeActor undoes one actor's contribution to a grouped meta.
func removeActor(meta *model.NotificationMeta, actor model.NotificationActor) {
	for i, u := range meta.Users {
		if u.UID == actor.UID {
			meta.Users = append(meta.Users[:i], meta.Users[i+1:]...)
			break
		}
	}
	if meta.UsersCount > 0 {
		meta.UsersCount--
	}
}

// CreateNew surfaces one event: it either merges into the recipient's slot
// for the same (type, entity) or opens a new one. Events from the recipient
// themselves are dropped by the caller, not here.
func (r *NotificationRepository) CreateNew(ctx context.Context, in NotificationInput) (*model.Notification, error) {
	eid, err := entityID(in)
	if err != nil {
		return nil, err
	}

	// Regular events only pile onto an unread slot; force-update and
	// retraction must reach the slot even after it was read.
	find := r.query(ctx).
		Where("user_id = ? AND type = ? AND entity_id = ?", in.UserUID, in.Type, eid)
	if !in.ForceUpdate && !in.DeleteOnly {
		find = find.Where("read_at IS NULL")
	}
	var existing model.Notification
	findErr := find.Order("notified_at DESC").First(&existing).Error

	if in.DeleteOnly {
		return r.retract(ctx, in, &existing, findErr)
	}

	var notif *model.Notification
	now := time.Now().UTC()
	switch {
	case findErr == nil:
		meta := existing.Meta.Data()
		if in.Type.Grouped() {
			mergeActor(&meta, in.Actor)
		} else {
			meta = in.Meta
			meta.Users = []model.NotificationActor{in.Actor}
			meta.UsersCount = 1
		}
		// Keep the target refs fresh (connection state can flip).
		if in.Meta.Content != nil {
			meta.Content = in.Meta.Content
		}
		if in.Meta.Comment != nil {
			meta.Comment = in.Meta.Comment
		}
		if in.Meta.Connection != nil {
			meta.Connection = in.Meta.Connection
		}
		existing.Meta = datatypes.NewJSONType(meta)
		if !(in.ForceUpdate && in.Type == model.NotifNewConnectionReq) {
			existing.NotifiedAt = now
		}
		if err := r.db.WithContext(ctx).Save(&existing).Error; err != nil {
			return nil, err
		}
		notif = &existing

	case errors.Is(findErr, gorm.ErrRecordNotFound):
		meta := in.Meta
		meta.Users = []model.NotificationActor{in.Actor}
		meta.UsersCount = 1
		fresh := model.Notification{
			UserID:     in.UserUID,
			Type:       in.Type,
			EntityID:   eid,
			Meta:       datatypes.NewJSONType(meta),
			NotifiedAt: now,
		}
		if err := r.db.WithContext(ctx).Create(&fresh).Error; err != nil {
			return nil, err
		}
		notif = &fresh

	default:
		return nil, findErr
	}

	r.publish(ctx, notif)
	return notif, nil
}

// retract takes the actor back out of the matched slot: a grouped slot with
// other actors left is demoted, anything else is removed. No slot, no-op.
func (r *NotificationRepository) retract(ctx context.Context, in NotificationInput, existing *model.Notification, findErr error) (*model.Notification, error) {
	if errors.Is(findErr, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if findErr != nil {
		return nil, findErr
	}

	meta := existing.Meta.Data()
	if in.Type.Grouped() && meta.UsersCount > 1 {
		removeActor(&meta, in.Actor)
		existing.Meta = datatypes.NewJSONType(meta)
		if err := r.db.WithContext(ctx).Save(existing).Error; err != nil {
			return nil, err
		}
		return existing, nil
	}

	existing.SetDeletedAt(time.Now().UTC())
	if err := r.db.WithContext(ctx).Save(existing).Error; err != nil {
		return nil, err
	}
	return existing, nil
}

// publish pushes the slot to the recipient's live channel. Delivery is
// best-effort; the row is already durable.
func (r *NotificationRepository) publish(ctx context.Context, n *model.Notification) {
	if r.rdb == nil {
		return
	}
	payload, err := json.Marshal(n)
	if err != nil {
		r.logger.Error().Err(err).Uint("notification_id", n.ID).Msg("marshal notification for publish")
		return
	}
	if err := r.rdb.Publish(ctx, NotificationChannel+n.UserID, payload).Err(); err != nil {
		r.logger.Warn().Err(err).Str("user_id", n.UserID).Msg("publish notification")
	}
}

// NotificationListQuery pages the feed. LastID walks backwards through
// history, SinceID picks up rows newer than the client's head, Unread drops
// everything already read.
type NotificationListQuery struct {
	LastID  uint
	SinceID uint
	Count   int
	Unread  bool
}

// GetList pages the feed newest first by notified_at, cursoring on id.
func (r *NotificationRepository) GetList(ctx context.Context, userUID string, q NotificationListQuery) ([]model.Notification, error) {
	count := clampCount(q.Count, MaxNotificationCount)
	db := r.query(ctx).Where("user_id = ?", userUID)
	if q.Unread {
		db = db.Where("read_at IS NULL")
	}
	if q.LastID > 0 {
		db = db.Where("id < ?", q.LastID)
	}
	if q.SinceID > 0 {
		db = db.Where("id > ?", q.SinceID)
	}
	var notifs []model.Notification
	err := db.Order("notified_at DESC, id DESC").Limit(count).Find(&notifs).Error
	if err != nil {
		return nil, err
	}
	return notifs, nil
}

// GetCount returns the unread total for the badge.
func (r *NotificationRepository) GetCount(ctx context.Context, userUID string) (int64, error) {
	var count int64
	err := r.query(ctx).
		Where("user_id = ? AND read_at IS NULL", userUID).
		Count(&count).Error
	return count, err
}

// MultiUpdate flips the read flag on the given slots. Marking read with no
// ids marks everything; marking unread always needs explicit ids.
func (r *NotificationRepository) MultiUpdate(ctx context.Context, userUID string, ids []uint, read bool) (int64, error) {
	q := r.query(ctx).Where("user_id = ?", userUID)
	var val any
	if read {
		q = q.Where("read_at IS NULL")
		val = time.Now().UTC()
	} else {
		if len(ids) == 0 {
			return 0, fmt.Errorf("%w: marking unread needs explicit ids", apperror.ErrInvalidInput)
		}
		q = q.Where("read_at IS NOT NULL")
	}
	if len(ids) > 0 {
		q = q.Where("id IN ?", ids)
	}
	res := q.Update("read_at", val)
	return res.RowsAffected, res.Error
}

// MultiDelete soft-deletes the given slots; with no ids it clears the feed.
func (r *NotificationRepository) MultiDelete(ctx context.Context, userUID string, ids []uint) (int64, error) {
	q := r.query(ctx).Where("user_id = ?", userUID)
	if len(ids) > 0 {
		q = q.Where("id IN ?", ids)
	}
	res := q.Update("deleted_at", time.Now().UTC())
	return res.RowsAffected, res.Error
}
