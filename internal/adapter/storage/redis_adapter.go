package storage

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	quantityKeyPrefix = "stockqty:"
	idempotencyKeyTTL = 24 * time.Hour
)

// RedisAdapter caches committed quantities and guards mutations with
// idempotency keys. The MySQL ledger stays the source of truth; a cache miss
// or stale entry only costs a database read.
type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func (r *RedisAdapter) SetIdempotency(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, key, 1, idempotencyKeyTTL).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

func (r *RedisAdapter) DeleteIdempotency(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

func (r *RedisAdapter) SetQuantity(ctx context.Context, stockID string, quantity int) error {
	return r.client.Set(ctx, quantityKeyPrefix+stockID, quantity, 0).Err()
}

func (r *RedisAdapter) GetQuantity(ctx context.Context, stockID string) (int, bool, error) {
	quantity, err := r.client.Get(ctx, quantityKeyPrefix+stockID).Int()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	return quantity, true, nil
}
