package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// RateLimitPolicy is a fixed-window budget: at most Limit requests per Window.
type RateLimitPolicy struct {
	Limit  int
	Window time.Duration
}

// ParseRateLimitPolicy parses the "<limit>/<window>" form used in
// configuration, e.g. "5/1m" or "100/60s".
func ParseRateLimitPolicy(s string) (RateLimitPolicy, error) {
	limitStr, windowStr, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return RateLimitPolicy{}, fmt.Errorf("rate limit %q: expected <limit>/<window>", s)
	}
	limit, err := strconv.Atoi(strings.TrimSpace(limitStr))
	if err != nil || limit <= 0 {
		return RateLimitPolicy{}, fmt.Errorf("rate limit %q: invalid limit", s)
	}
	window, err := time.ParseDuration(strings.TrimSpace(windowStr))
	if err != nil || window <= 0 {
		return RateLimitPolicy{}, fmt.Errorf("rate limit %q: invalid window", s)
	}
	return RateLimitPolicy{Limit: limit, Window: window}, nil
}

// RateLimitResult is the outcome of a single rate limit check.
type RateLimitResult struct {
	Success   bool
	Limit     int
	Remaining int
	ResetTime time.Time
}

// RetryAfter returns the whole seconds until the window resets, never below one.
func (r RateLimitResult) RetryAfter(now time.Time) int {
	secs := int(math.Ceil(r.ResetTime.Sub(now).Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}
