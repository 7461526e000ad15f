package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// TouchThrottle grants one session touch per key and interval across all
// instances. Key format: session:touch:<session_id>
type TouchThrottle struct {
	client *redis.Client
}

// NewTouchThrottle creates a TouchThrottle wrapping the given Redis client.
func NewTouchThrottle(client *redis.Client) *TouchThrottle {
	return &TouchThrottle{client: client}
}

// Acquire reports whether the caller won the slot for key. The slot expires
// after interval.
func (t *TouchThrottle) Acquire(ctx context.Context, key string, interval time.Duration) (bool, error) {
	ok, err := t.client.SetNX(ctx, key, "1", interval).Result()
	if err != nil {
		return false, fmt.Errorf("touch throttle: %w", err)
	}
	return ok, nil
}
