// Package store provides the durable key-value store backing verification
// state, identity links, and per-guild role configuration, with an optional
// in-process cache layered in front of the Redis client.
package store

import (
	"context"
	"time"
)

// Store is the key-value abstraction consumed by the rest of the system.
// The durable backend is authoritative; any cache in front of it is a
// latency optimization only.
type Store interface {
	// Get returns the value for key. The boolean reports whether the key
	// exists; a missing key is not an error.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set writes a value with no expiry.
	Set(ctx context.Context, key, value string) error

	// SetWithTTL writes a value that the backend expires after ttl.
	SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error

	// Delete removes the given keys. Deleting a missing key is a no-op.
	Delete(ctx context.Context, keys ...string) error

	// Keys returns keys matching a glob pattern. Best-effort only: used
	// for counting, never for correctness-critical reads.
	Keys(ctx context.Context, pattern string) ([]string, error)

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error

	// Close releases the backend connection.
	Close() error
}
