package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore backs the KVStore contract with Redis hashes, one hash per
// logical table. This mirrors the persisted layout the rest of the system
// (webhooks, role lookups) reads.
type RedisStore struct {
	Client *redis.Client
}

// NewRedisStore connects a client for the given URL
// (e.g. redis://localhost:6379).
func NewRedisStore(url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return &RedisStore{Client: redis.NewClient(opts)}, nil
}

func (rs *RedisStore) HGet(ctx context.Context, table, key string) ([]byte, error) {
	val, err := rs.Client.HGet(ctx, table, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("hget %s/%s: %w", table, key, err)
	}
	return val, nil
}

func (rs *RedisStore) HSet(ctx context.Context, table, key string, value []byte) error {
	if err := rs.Client.HSet(ctx, table, key, value).Err(); err != nil {
		return fmt.Errorf("hset %s/%s: %w", table, key, err)
	}
	return nil
}

func (rs *RedisStore) HSetNX(ctx context.Context, table, key string, value []byte) error {
	ok, err := rs.Client.HSetNX(ctx, table, key, value).Result()
	if err != nil {
		return fmt.Errorf("hsetnx %s/%s: %w", table, key, err)
	}
	if !ok {
		return ErrKeyExists
	}
	return nil
}

func (rs *RedisStore) HDel(ctx context.Context, table, key string) error {
	if err := rs.Client.HDel(ctx, table, key).Err(); err != nil {
		return fmt.Errorf("hdel %s/%s: %w", table, key, err)
	}
	return nil
}

func (rs *RedisStore) HLen(ctx context.Context, table string) (int, error) {
	n, err := rs.Client.HLen(ctx, table).Result()
	if err != nil {
		return 0, fmt.Errorf("hlen %s: %w", table, err)
	}
	return int(n), nil
}

func (rs *RedisStore) HGetAll(ctx context.Context, table string) (map[string][]byte, error) {
	vals, err := rs.Client.HGetAll(ctx, table).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall %s: %w", table, err)
	}
	out := make(map[string][]byte, len(vals))
	for k, v := range vals {
		out[k] = []byte(v)
	}
	return out, nil
}
