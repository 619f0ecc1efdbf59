package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// Redis key prefix for command outcomes.
	keyPrefix = "idem:cmd:"
	// pendingMarker distinguishes a reservation from a stored outcome.
	// Outcomes are JSON objects, so the marker cannot collide with one.
	pendingMarker = "pending"
)

// RedisStore is the Redis-backed idempotency store, recommended whenever
// more than one instance serves commands: retention rides on Redis TTLs and
// reservations are a single atomic SET NX EX.
type RedisStore struct {
	client *redis.Client
}

// NewRedis constructs a Redis-backed idempotency store.
func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// GetOrReserve implements Store.
func (s *RedisStore) GetOrReserve(ctx context.Context, key string, ttl time.Duration) (*Record, bool, error) {
	rkey := keyPrefix + key

	set, err := s.client.SetNX(ctx, rkey, pendingMarker, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("reserve idempotency key: %w", err)
	}
	if set {
		return nil, true, nil
	}

	val, err := s.client.Get(ctx, rkey).Result()
	if errors.Is(err, redis.Nil) {
		// Expired between SETNX and GET; retry the reservation once.
		set, err = s.client.SetNX(ctx, rkey, pendingMarker, ttl).Result()
		if err != nil {
			return nil, false, fmt.Errorf("reserve idempotency key: %w", err)
		}
		return nil, set, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load idempotency record: %w", err)
	}
	if val == pendingMarker {
		// Orphaned reservation from a crashed command; re-own it. Live
		// contention on one key cannot happen: execution is serialized per
		// person and keys are person-scoped.
		return nil, true, nil
	}
	return &Record{Key: key, Outcome: []byte(val)}, false, nil
}

// Complete implements Store. The outcome inherits the reservation's TTL so
// retention is measured from first processing, not from completion.
func (s *RedisStore) Complete(ctx context.Context, key string, outcome []byte) error {
	err := s.client.Set(ctx, keyPrefix+key, outcome, redis.KeepTTL).Err()
	if err != nil {
		return fmt.Errorf("store idempotency outcome: %w", err)
	}
	return nil
}

// Release implements Store.
func (s *RedisStore) Release(ctx context.Context, key string) error {
	rkey := keyPrefix + key
	val, err := s.client.Get(ctx, rkey).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load idempotency record: %w", err)
	}
	if val != pendingMarker {
		// A completed outcome is never released.
		return nil
	}
	if err := s.client.Del(ctx, rkey).Err(); err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}
