package ports

import (
	"context"
	"time"
)

// RateLimitStore is a shared fixed-window counter. Hit must be atomic per key:
// it opens a window on the first hit, increments only while the count is below
// limit and reports the resulting count and window reset time. A rejected hit
// leaves the counter untouched.
type RateLimitStore interface {
	Hit(ctx context.Context, key string, limit int, window time.Duration) (count int, resetAt time.Time, allowed bool, err error)
}

// TouchThrottle grants at most one touch per key and interval.
type TouchThrottle interface {
	Acquire(ctx context.Context, key string, interval time.Duration) (bool, error)
}
