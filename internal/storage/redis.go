package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisSlots stores slots as plain string keys. A zero ttl keeps them forever.
type RedisSlots struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisSlots(client *redis.Client, prefix string, ttl time.Duration) *RedisSlots {
	return &RedisSlots{client: client, prefix: prefix, ttl: ttl}
}

var _ Slots = (*RedisSlots)(nil)

func (r *RedisSlots) key(k string) string {
	if r.prefix == "" {
		return k
	}
	return r.prefix + ":" + k
}

func (r *RedisSlots) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get slot %s: %w", key, err)
	}
	return data, nil
}

func (r *RedisSlots) Put(ctx context.Context, key string, data []byte) error {
	if err := r.client.Set(ctx, r.key(key), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to put slot %s: %w", key, err)
	}
	return nil
}

func (r *RedisSlots) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete slot %s: %w", key, err)
	}
	return nil
}
