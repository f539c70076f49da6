// Package kvstore defines the expiring key-value and set store that backs
// sessions and the access registry.
package kvstore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when the key does not exist or has expired.
var ErrNotFound = errors.New("kvstore: key not found")

// Store is safe for concurrent use by independent request handlers. All
// operations are individually atomic; callers needing more than one step
// must tolerate partial completion.
type Store interface {
	// Get returns ErrNotFound when the key is missing.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set writes value with the given expiry. Zero ttl means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete reports whether the key existed.
	Delete(ctx context.Context, key string) (bool, error)

	// SetAdd reports whether member was newly added.
	SetAdd(ctx context.Context, key, member string) (bool, error)
	// SetRemove reports whether member was present.
	SetRemove(ctx context.Context, key, member string) (bool, error)
	SetIsMember(ctx context.Context, key, member string) (bool, error)
	SetMembers(ctx context.Context, key string) ([]string, error)
	SetSize(ctx context.Context, key string) (int64, error)

	Close() error
}
