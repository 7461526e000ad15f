package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// hitScript opens a window on first use and increments only while below the
// limit, so rejected requests never extend or consume the budget.
// Returns {count, pttl_ms, allowed}.
var hitScript = redis.NewScript(`
local limit = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local count = tonumber(redis.call('GET', KEYS[1]) or '0')
local ttl = redis.call('PTTL', KEYS[1])
if count == 0 or ttl < 0 then
  redis.call('SET', KEYS[1], 1, 'PX', window)
  return {1, window, 1}
end
if count >= limit then
  return {count, ttl, 0}
end
count = redis.call('INCR', KEYS[1])
return {count, ttl, 1}
`)

// RateLimitStore is a fixed-window counter shared by every API instance.
type RateLimitStore struct {
	client redis.Scripter
	now    func() time.Time
}

func NewRateLimitStore(client redis.Scripter) *RateLimitStore {
	return &RateLimitStore{client: client, now: time.Now}
}

// Hit implements ports.RateLimitStore.
func (s *RateLimitStore) Hit(ctx context.Context, key string, limit int, window time.Duration) (int, time.Time, bool, error) {
	res, err := hitScript.Run(ctx, s.client, []string{key}, limit, window.Milliseconds()).Int64Slice()
	if err != nil {
		return 0, time.Time{}, false, fmt.Errorf("rate limit hit: %w", err)
	}
	if len(res) != 3 {
		return 0, time.Time{}, false, fmt.Errorf("rate limit hit: unexpected reply %v", res)
	}
	resetAt := s.now().Add(time.Duration(res[1]) * time.Millisecond)
	return int(res[0]), resetAt, res[2] == 1, nil
}
