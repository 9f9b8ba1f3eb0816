package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fc-troll-detector/internal/model"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps entries as JSON strings with a Redis expiry equal to the TTL.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Get(ctx context.Context, key string) (model.CacheEntry, bool, error) {
	b, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.CacheEntry{}, false, nil
	}
	if err != nil {
		return model.CacheEntry{}, false, fmt.Errorf("redis get %s: %v: %w", key, err, model.ErrStorage)
	}
	var e model.CacheEntry
	if err := json.Unmarshal(b, &e); err != nil {
		return model.CacheEntry{}, false, fmt.Errorf("redis decode %s: %v: %w", key, err, model.ErrStorage)
	}
	return e, true, nil
}

func (s *RedisStore) Put(ctx context.Context, key string, e model.CacheEntry, ttl time.Duration) error {
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("redis encode %s: %v: %w", key, err, model.ErrStorage)
	}
	if err := s.rdb.Set(ctx, key, b, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %v: %w", key, err, model.ErrStorage)
	}
	return nil
}

// Purge deletes every key starting with prefix.
func (s *RedisStore) Purge(ctx context.Context, prefix string) (int64, error) {
	var n int64
	iter := s.rdb.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		deleted, err := s.rdb.Del(ctx, iter.Val()).Result()
		if err != nil {
			return n, fmt.Errorf("redis del %s: %w", iter.Val(), err)
		}
		n += deleted
	}
	if err := iter.Err(); err != nil {
		return n, fmt.Errorf("redis scan %s*: %w", prefix, err)
	}
	return n, nil
}
