// ABOUTME: KV interface and sentinel errors for assistant-admin persistence
// ABOUTME: Every backend stores string values under (namespace, key) pairs

package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a requested key does not exist
var ErrNotFound = errors.New("not found")

// KV is a durable namespaced key/value store.
// A namespace isolates one browser (or the CLI) from every other.
type KV interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, namespace, key string) (string, error)

	// Set stores value under key, overwriting any previous value.
	Set(ctx context.Context, namespace, key, value string) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, namespace, key string) error

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error

	Close() error
}

// Verify implementations satisfy the interface
var (
	_ KV = (*SQLiteStore)(nil)
	_ KV = (*RedisStore)(nil)
	_ KV = (*MockStore)(nil)
)
