package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mvamarnath1/interview/internal/models"
)

const redisKeyPrefix = "answer"

// RedisStore keeps cache entries in Redis with a server-side expiry equal to
// the cache TTL.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func redisKey(fingerprint, userID string) string {
	return fmt.Sprintf("%s:%s:%s", redisKeyPrefix, userID, fingerprint)
}

func (s *RedisStore) Get(ctx context.Context, fingerprint, userID string) (*models.CacheEntry, error) {
	data, err := s.rdb.Get(ctx, redisKey(fingerprint, userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get cache entry: %w", err)
	}

	var entry models.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("decode cache entry: %w", err)
	}
	return &entry, nil
}

func (s *RedisStore) Put(ctx context.Context, entry *models.CacheEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	if err := s.rdb.Set(ctx, redisKey(entry.Fingerprint, entry.UserID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis put cache entry: %w", err)
	}
	return nil
}
