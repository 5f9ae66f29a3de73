package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisStore struct {
	client *redis.Client
}

// NewRedis wraps a go-redis client into the Store contract.
func NewRedis(client *redis.Client) Store {
	return &redisStore{client: client}
}

func (s *redisStore) GetField(ctx context.Context, key, field string) (string, bool, error) {
	val, err := s.client.HGet(ctx, key, field).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (s *redisStore) PutField(ctx context.Context, key, field, value string, ttl time.Duration) error {
	if err := s.client.HSet(ctx, key, field, value).Err(); err != nil {
		return err
	}
	if ttl > 0 {
		return s.client.Expire(ctx, key, ttl).Err()
	}
	return nil
}

func (s *redisStore) GetAllFields(ctx context.Context, key string) (map[string]string, error) {
	return s.client.HGetAll(ctx, key).Result()
}

func (s *redisStore) Invalidate(ctx context.Context, key string) error {
	return s.client.Unlink(ctx, key).Err()
}

func (s *redisStore) IsSetMember(ctx context.Context, key, member string) (bool, error) {
	return s.client.SIsMember(ctx, key, member).Result()
}

func (s *redisStore) ReplaceSet(ctx context.Context, key string, members []string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	if len(members) > 0 {
		args := make([]interface{}, len(members))
		for i, m := range members {
			args[i] = m
		}
		pipe.SAdd(ctx, key, args...)
	}
	_, err := pipe.Exec(ctx)
	return err
}

type redisBloom struct {
	client *redis.Client
	key    string
}

// NewRedisBloom uses the RedisBloom module commands on a single filter key.
func NewRedisBloom(client *redis.Client, key string) Bloom {
	return &redisBloom{client: client, key: key}
}

func (b *redisBloom) Contains(ctx context.Context, item string) (bool, error) {
	return b.client.BFExists(ctx, b.key, item).Result()
}

func (b *redisBloom) Add(ctx context.Context, item string) error {
	return b.client.BFAdd(ctx, b.key, item).Err()
}
