// Package cache provides the first tier of place resolution: a TTL key/value
// store holding serialized search and detail payloads.
package cache

import (
	"context"
	"time"
)

const (
	// TypeRedis selects the Redis-backed cache
	TypeRedis = "redis"

	// TypeMemory selects the process-local cache
	TypeMemory = "memory"
)

//go:generate mockgen -destination=mocks/mock_cache.go -package=mocks -source=cache.go Cache

// Cache is a byte-oriented TTL cache. Get reports a miss with found=false and
// a nil error; errors are reserved for backend failures.
type Cache interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
