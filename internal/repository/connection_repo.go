package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/linkloop/linkloop-backend/internal/model"
	"github.com/linkloop/linkloop-backend/pkg/apperror"
	"github.com/linkloop/linkloop-backend/pkg/cache"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

const MaxConnectionCount = 50

// Cache key suffixes under user_conn:<id>:.
const (
	connSuffixCounts   = "counts"
	connSuffixActive   = "active"
	connSuffixSent     = "sent"
	connSuffixReceived = "received"
)

// ConnCounts are the per-user totals shown on a profile. Cached with a TTL
// and explicitly expired on every write to the pair.
type ConnCounts struct {
	Active   int64 `json:"active"`
	Sent     int64 `json:"sent"`
	Received int64 `json:"received"`
}

type ConnectionRepository struct {
	db       *gorm.DB
	kv       cache.Store
	countTTL time.Duration
	logger   zerolog.Logger
}

func NewConnectionRepository(db *gorm.DB, kv cache.Store, countTTL time.Duration, logger zerolog.Logger) *ConnectionRepository {
	return &ConnectionRepository{db: db, kv: kv, countTTL: countTTL, logger: logger}
}

func (r *ConnectionRepository) query(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&model.UserConnection{}).Where("user_connections.deleted_at = ?", model.Epoch)
}

// pairQuery restricts to rows touching the user on either side.
func (r *ConnectionRepository) pairQuery(ctx context.Context, userID uint) *gorm.DB {
	return r.query(ctx).Where("created_by_id = ? OR receiver_id = ?", userID, userID)
}

// GetAllForUser lists the user's connections newest first, skipping rows whose
// counterpart is deactivated or deleted. connectedOnly limits to ACTIVE.
func (r *ConnectionRepository) GetAllForUser(ctx context.Context, user *model.User, connectedOnly bool, lastID uint, count int) ([]model.UserConnection, error) {
	count = clampCount(count, MaxConnectionCount)

	q := r.pairQuery(ctx, user.ID).
		Joins(`JOIN users ON users.id = CASE
			WHEN user_connections.created_by_id = ? THEN user_connections.receiver_id
			ELSE user_connections.created_by_id END`, user.ID).
		Where("users.deleted_at = ? AND users.deactivated_at IS NULL", model.Epoch)
	if connectedOnly {
		q = q.Where("user_connections.connected = ?", true)
	}
	if lastID > 0 {
		q = q.Where("user_connections.id < ?", lastID)
	}

	var conns []model.UserConnection
	err := q.Order("user_connections.id DESC").Limit(count).
		Preload("Receiver.Profile").Preload("CreatedBy.Profile").
		Find(&conns).Error
	if err != nil {
		return nil, err
	}
	return conns, nil
}

// GetForUser fetches one connection row, but only if the user is on it.
func (r *ConnectionRepository) GetForUser(ctx context.Context, user *model.User, id uint) (*model.UserConnection, error) {
	var conn model.UserConnection
	err := r.pairQuery(ctx, user.ID).Where("user_connections.id = ?", id).
		Preload("Receiver.Profile").Preload("CreatedBy.Profile").
		First(&conn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &conn, nil
}

// GetBetween finds the live row for an undirected pair, either orientation.
func (r *ConnectionRepository) GetBetween(ctx context.Context, aID, bID uint) (*model.UserConnection, error) {
	var conn model.UserConnection
	err := r.query(ctx).
		Where("(created_by_id = ? AND receiver_id = ?) OR (created_by_id = ? AND receiver_id = ?)",
			aID, bID, bID, aID).
		First(&conn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &conn, nil
}

// Create opens a pending request from the requester to the user behind
// receiverUID. At most one live row may exist per pair.
func (r *ConnectionRepository) Create(ctx context.Context, requester *model.User, receiver *model.User) (*model.UserConnection, error) {
	if receiver == nil || !receiver.IsLive() {
		return nil, apperror.NotFoundField("receiver", "")
	}
	if receiver.ID == requester.ID {
		return nil, fmt.Errorf("%w: cannot connect to self", apperror.ErrInvalidInput)
	}
	existing, err := r.GetBetween(ctx, requester.ID, receiver.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: connection already exists", apperror.ErrInvalidInput)
	}

	conn := model.UserConnection{ReceiverID: receiver.ID}
	conn.SetDeletedAt(model.Epoch)
	conn.SetCreatedBy(requester.ID)
	if err := r.db.WithContext(ctx).Create(&conn).Error; err != nil {
		return nil, err
	}
	r.expirePair(ctx, &conn)
	return &conn, nil
}

// Accept flips a pending row to connected. Only the receiving side may accept.
func (r *ConnectionRepository) Accept(ctx context.Context, user *model.User, id uint) (*model.UserConnection, error) {
	conn, err := r.GetForUser(ctx, user, id)
	if err != nil {
		return nil, err
	}
	if conn == nil {
		return nil, apperror.ErrNotFound
	}
	if conn.Connected {
		return conn, nil
	}
	if conn.ReceiverID != user.ID {
		return nil, apperror.ErrForbidden
	}
	conn.Connected = true
	conn.SetUpdatedBy(user.ID)
	if err := r.db.WithContext(ctx).Save(conn).Error; err != nil {
		return nil, err
	}
	r.expirePair(ctx, conn)
	return conn, nil
}

// Delete soft-removes the row (decline, cancel, or disconnect) and expires
// both sides' cached counters.
func (r *ConnectionRepository) Delete(ctx context.Context, user *model.User, id uint) (*model.UserConnection, error) {
	conn, err := r.GetForUser(ctx, user, id)
	if err != nil {
		return nil, err
	}
	if conn == nil {
		return nil, apperror.ErrNotFound
	}
	conn.SetDeletedAt(time.Now().UTC())
	conn.SetUpdatedBy(user.ID)
	if err := r.db.WithContext(ctx).Save(conn).Error; err != nil {
		return nil, err
	}
	r.expirePair(ctx, conn)
	return conn, nil
}

func (r *ConnectionRepository) expirePair(ctx context.Context, conn *model.UserConnection) {
	ids := []uint{conn.ReceiverID}
	if conn.CreatedByID != nil {
		ids = append(ids, *conn.CreatedByID)
	}
	for _, id := range ids {
		if err := r.ExpireConnCounts(ctx, id); err != nil {
			r.logger.Warn().Err(err).Uint("user_id", id).Msg("expire connection counts")
		}
		if err := r.RefreshStatusSets(ctx, id); err != nil {
			r.logger.Warn().Err(err).Uint("user_id", id).Msg("refresh connection status sets")
		}
	}
}

// connRow is the classify-query output: one row per status bucket.
type connRow struct {
	Status string `gorm:"column:status"`
	Total  int64  `gorm:"column:total"`
}

func (r *ConnectionRepository) countByStatus(ctx context.Context, userID uint) (ConnCounts, error) {
	sql := `
SELECT CASE
         WHEN uc.connected THEN 'active'
         WHEN uc.created_by_id = ? THEN 'sent'
         ELSE 'received'
       END AS status,
       COUNT(*) AS total
FROM user_connections uc
JOIN users u ON u.id = CASE WHEN uc.created_by_id = ? THEN uc.receiver_id ELSE uc.created_by_id END
WHERE uc.deleted_at = ? AND (uc.created_by_id = ? OR uc.receiver_id = ?)
  AND u.deleted_at = ? AND u.deactivated_at IS NULL
GROUP BY 1`

	var rows []connRow
	err := r.db.WithContext(ctx).Raw(sql, userID, userID, model.Epoch, userID, userID, model.Epoch).Scan(&rows).Error
	if err != nil {
		return ConnCounts{}, err
	}
	var counts ConnCounts
	for _, row := range rows {
		switch row.Status {
		case connSuffixActive:
			counts.Active = row.Total
		case connSuffixSent:
			counts.Sent = row.Total
		case connSuffixReceived:
			counts.Received = row.Total
		}
	}
	return counts, nil
}

// GetConnCounts reads through the cache: a full hash hit serves directly, any
// miss recomputes from the database and rewrites the hash.
func (r *ConnectionRepository) GetConnCounts(ctx context.Context, userID uint) (ConnCounts, error) {
	key := cache.UserConnKey(userID, connSuffixCounts)
	fields, err := r.kv.GetAllFields(ctx, key)
	if err != nil {
		r.logger.Warn().Err(err).Uint("user_id", userID).Msg("read connection counts cache")
	} else if counts, ok := parseConnCounts(fields); ok {
		return counts, nil
	}
	return r.UpdateConnCounts(ctx, userID)
}

func parseConnCounts(fields map[string]string) (ConnCounts, bool) {
	var counts ConnCounts
	for _, f := range []struct {
		name string
		dst  *int64
	}{
		{connSuffixActive, &counts.Active},
		{connSuffixSent, &counts.Sent},
		{connSuffixReceived, &counts.Received},
	} {
		raw, ok := fields[f.name]
		if !ok {
			return ConnCounts{}, false
		}
		val, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return ConnCounts{}, false
		}
		*f.dst = val
	}
	return counts, true
}

// UpdateConnCounts recomputes the totals and rewrites the cached hash with the
// configured TTL. Cache write failures degrade to uncached reads.
func (r *ConnectionRepository) UpdateConnCounts(ctx context.Context, userID uint) (ConnCounts, error) {
	counts, err := r.countByStatus(ctx, userID)
	if err != nil {
		return ConnCounts{}, err
	}
	key := cache.UserConnKey(userID, connSuffixCounts)
	for _, f := range []struct {
		name string
		val  int64
	}{
		{connSuffixActive, counts.Active},
		{connSuffixSent, counts.Sent},
		{connSuffixReceived, counts.Received},
	} {
		if err := r.kv.PutField(ctx, key, f.name, strconv.FormatInt(f.val, 10), r.countTTL); err != nil {
			r.logger.Warn().Err(err).Uint("user_id", userID).Msg("write connection counts cache")
			break
		}
	}
	return counts, nil
}

// ExpireConnCounts drops the cached totals so the next read recomputes.
func (r *ConnectionRepository) ExpireConnCounts(ctx context.Context, userID uint) error {
	return r.kv.Invalidate(ctx, cache.UserConnKey(userID, connSuffixCounts))
}

// RefreshStatusSets rebuilds the three per-user membership sets (active, sent,
// received counterpart ids) from the relational rows.
func (r *ConnectionRepository) RefreshStatusSets(ctx context.Context, userID uint) error {
	conns, err := r.Find(r.pairQuery(ctx, userID))
	if err != nil {
		return err
	}
	members := map[string][]string{
		connSuffixActive:   {},
		connSuffixSent:     {},
		connSuffixReceived: {},
	}
	for i := range conns {
		other := strconv.FormatUint(uint64(conns[i].OtherSide(userID)), 10)
		switch conns[i].StatusFor(userID) {
		case model.ConnectionActive:
			members[connSuffixActive] = append(members[connSuffixActive], other)
		case model.ConnectionSent:
			members[connSuffixSent] = append(members[connSuffixSent], other)
		case model.ConnectionReceived:
			members[connSuffixReceived] = append(members[connSuffixReceived], other)
		}
	}
	for suffix, m := range members {
		if err := r.kv.ReplaceSet(ctx, cache.UserConnKey(userID, suffix), m); err != nil {
			return err
		}
	}
	return nil
}

// StatusBetween answers "how does otherID relate to userID" from the cached
// sets, checked in active, sent, received order. Empty means no relation.
func (r *ConnectionRepository) StatusBetween(ctx context.Context, userID, otherID uint) (model.ConnectionStatus, error) {
	member := strconv.FormatUint(uint64(otherID), 10)
	for _, probe := range []struct {
		suffix string
		status model.ConnectionStatus
	}{
		{connSuffixActive, model.ConnectionActive},
		{connSuffixSent, model.ConnectionSent},
		{connSuffixReceived, model.ConnectionReceived},
	} {
		ok, err := r.kv.IsSetMember(ctx, cache.UserConnKey(userID, probe.suffix), member)
		if err != nil {
			return "", err
		}
		if ok {
			return probe.status, nil
		}
	}
	return "", nil
}

func (r *ConnectionRepository) Find(q *gorm.DB) ([]model.UserConnection, error) {
	var conns []model.UserConnection
	if err := q.Find(&conns).Error; err != nil {
		return nil, err
	}
	return conns, nil
}
