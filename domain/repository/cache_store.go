package repository

import (
	"context"
	"time"
)

// ICacheStore is a generic byte store with per-entry TTL.
// A missing or expired entry is reported as (nil, false, nil).
type ICacheStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}
