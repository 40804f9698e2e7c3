package services

import (
	"context"
	"errors"
)

var (
	// ErrKeyNotFound is returned by HGet when no record exists for the key.
	ErrKeyNotFound = errors.New("key not found")
	// ErrKeyExists is returned by HSetNX when a record already exists.
	ErrKeyExists = errors.New("key already exists")
)

// KVStore is the shared-store contract: one logical hash table per concern,
// with atomic point operations and full enumeration. The matchmaking logic
// behaves identically whether the backing store is in-process or external.
type KVStore interface {
	// HGet returns the value stored under (table, key), or ErrKeyNotFound.
	HGet(ctx context.Context, table, key string) ([]byte, error)
	// HSet stores value under (table, key), overwriting any previous value.
	HSet(ctx context.Context, table, key string, value []byte) error
	// HSetNX stores value only if (table, key) is absent. Returns
	// ErrKeyExists otherwise. The insert-if-absent check is atomic.
	HSetNX(ctx context.Context, table, key string, value []byte) error
	// HDel removes (table, key). Removing an absent key is a no-op.
	HDel(ctx context.Context, table, key string) error
	// HLen returns the number of records in table.
	HLen(ctx context.Context, table string) (int, error)
	// HGetAll returns every record in table keyed by record key.
	HGetAll(ctx context.Context, table string) (map[string][]byte, error)
}
