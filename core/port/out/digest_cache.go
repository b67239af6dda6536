package out

import (
	"context"
	"time"
)

// Cache defines the outbound port for caching JSON values.
type Cache interface {
	// GetJSON decodes the value at key into dest and reports whether it was present.
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error

	// Generation returns the invalidation counter of key, zero when unset.
	Generation(ctx context.Context, key string) (int64, error)
	// SetJSONIfGeneration stores value only while the generation of key
	// still equals gen, and reports whether it did.
	SetJSONIfGeneration(ctx context.Context, key string, gen int64, value any, ttl time.Duration) (bool, error)
	// Invalidate deletes key and bumps its generation so in-flight
	// SetJSONIfGeneration calls for it are dropped.
	Invalidate(ctx context.Context, key string, genTTL time.Duration) error
}
