// Package cache provides byte caches for commit details and rendered
// artifacts.
//
// Backends:
//   - [NullCache]: stores nothing, for tests and --no-cache runs
//   - [FileCache]: JSON entry files under a directory, for the CLI
//   - [RedisCache]: a shared redis instance, for the HTTP server
//
// Keys are built by a [Keyer] so that backends never see raw user input.
// Entries carry their own TTL; expired entries read as misses.
package cache

import (
	"context"
	"time"
)

// Cache is a byte store with per-entry expiration.
type Cache interface {
	// Get returns the value stored under key. A miss is (nil, false, nil).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl <= 0 never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}
