package uploads

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisSessionPrefix  = "uploads:sid:"
	redisResourcePrefix = "uploads:rid:"
)

// RedisStore is a Redis-backed Store. Retention rides on native key TTLs,
// so batches survive process restarts but still age out.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed store. ttl <= 0 means keys never expire.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

// Put overwrites any earlier batch stored under the same identifiers.
func (s *RedisStore) Put(ctx context.Context, batch Batch) error {
	raw, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("marshal batch: %w", err)
	}
	if batch.SessionID != "" {
		if err := s.client.Set(ctx, redisSessionPrefix+batch.SessionID, raw, s.ttl).Err(); err != nil {
			return fmt.Errorf("set session key: %w", err)
		}
	}
	if batch.ResourceID != "" {
		if err := s.client.Set(ctx, redisResourcePrefix+batch.ResourceID, raw, s.ttl).Err(); err != nil {
			return fmt.Errorf("set resource key: %w", err)
		}
	}
	return nil
}

// GetBySessionID returns the most recent batch for the sid or ErrNotFound.
func (s *RedisStore) GetBySessionID(ctx context.Context, sid string) (*Batch, error) {
	return s.get(ctx, redisSessionPrefix+sid)
}

// GetByResourceID returns the most recent batch for the resource ID or ErrNotFound.
func (s *RedisStore) GetByResourceID(ctx context.Context, resourceID string) (*Batch, error) {
	return s.get(ctx, redisResourcePrefix+resourceID)
}

func (s *RedisStore) get(ctx context.Context, key string) (*Batch, error) {
	raw, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	var batch Batch
	if err := json.Unmarshal(raw, &batch); err != nil {
		return nil, fmt.Errorf("unmarshal batch: %w", err)
	}
	return &batch, nil
}

// Remove evicts the batch stored under sid, including its resource index entry.
func (s *RedisStore) Remove(ctx context.Context, sid string) error {
	batch, err := s.GetBySessionID(ctx, sid)
	if err == ErrNotFound {
		return nil
	}
	if err != nil {
		return err
	}
	keys := []string{redisSessionPrefix + sid}
	if batch.ResourceID != "" {
		keys = append(keys, redisResourcePrefix+batch.ResourceID)
	}
	return s.client.Del(ctx, keys...).Err()
}
