package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	id "presence/pkg/domain"
)

// Redis key prefix for applied event IDs.
const keyPrefix = "dedup:event:"

// RedisStore is the Redis-backed dedup set, required when more than one
// consumer instance shares the projection. Retention rides on Redis TTLs.
type RedisStore struct {
	client *redis.Client
}

// NewRedis constructs a Redis-backed dedup store.
func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Seen implements Store.
func (s *RedisStore) Seen(ctx context.Context, eventID id.EventID) (bool, error) {
	n, err := s.client.Exists(ctx, keyPrefix+eventID.String()).Result()
	if err != nil {
		return false, fmt.Errorf("check event applied: %w", err)
	}
	return n > 0, nil
}

// Mark implements Store.
func (s *RedisStore) Mark(ctx context.Context, eventID id.EventID, ttl time.Duration) error {
	if err := s.client.Set(ctx, keyPrefix+eventID.String(), "1", ttl).Err(); err != nil {
		return fmt.Errorf("mark event applied: %w", err)
	}
	return nil
}
