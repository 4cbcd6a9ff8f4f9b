// Package cache implements the relay's two-tier key/value store: a shared
// remote tier (Redis) with per-key TTL, backed by an in-process tier that
// keeps serving when the remote tier is unreachable.
package cache

import (
	"context"
	"time"
)

// Entry is one cached value. A zero ExpiresAt never expires.
type Entry struct {
	Key       string
	Value     []byte
	StoredAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the entry must no longer be served at now.
func (e Entry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}

// Tier is one storage layer. Get reports absence with ok=false and a nil
// error; a non-nil error means the tier itself could not be reached.
// Set must keep whichever of the existing and new entry has the later
// StoredAt.
type Tier interface {
	Get(ctx context.Context, key string) (e Entry, ok bool, err error)
	Set(ctx context.Context, e Entry) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}
