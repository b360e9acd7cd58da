package ports

import (
	"context"
	"time"
)

// Cache is a key-value store with expiry used for hot-path lookups such as
// authorization verdicts. Get returns ("", nil) on a miss.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}
