package cache

import (
	"context"
	"fmt"
	"time"
)

// Store is the narrow cache contract the repositories depend on: hash fields
// with a per-key TTL, whole-key invalidation, and set membership. The cache is
// never authoritative; every value stored here can be recomputed from the
// relational store.
type Store interface {
	GetField(ctx context.Context, key, field string) (string, bool, error)
	PutField(ctx context.Context, key, field, value string, ttl time.Duration) error
	GetAllFields(ctx context.Context, key string) (map[string]string, error)
	Invalidate(ctx context.Context, key string) error

	IsSetMember(ctx context.Context, key, member string) (bool, error)
	ReplaceSet(ctx context.Context, key string, members []string) error
}

// Bloom is a probabilistic membership test, used only to keep generated
// referral codes unique. False positives cost one extra draw; false negatives
// do not occur.
type Bloom interface {
	Contains(ctx context.Context, item string) (bool, error)
	Add(ctx context.Context, item string) error
}

// UserConnKey addresses per-user connection data (status sets, counters).
func UserConnKey(userID uint, suffix string) string {
	return fmt.Sprintf("user_conn:%d:%s", userID, suffix)
}

// UIDKey addresses per-user cached projections keyed by the opaque uid.
func UIDKey(uid string) string {
	return fmt.Sprintf("uid:%s", uid)
}
