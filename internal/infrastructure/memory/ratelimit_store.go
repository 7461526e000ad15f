// Package memory provides single-process implementations of the shared stores,
// for development and for deployments running one instance.
package memory

import (
	"context"
	"sync"
	"time"
)

type bucket struct {
	count   int
	resetAt time.Time
}

// RateLimitStore is an in-process fixed-window counter. Counts are not shared
// between instances.
type RateLimitStore struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
}

func NewRateLimitStore() *RateLimitStore {
	return &RateLimitStore{
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// Hit implements ports.RateLimitStore.
func (s *RateLimitStore) Hit(_ context.Context, key string, limit int, window time.Duration) (int, time.Time, bool, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[key]
	if !ok || !now.Before(b.resetAt) {
		b = &bucket{resetAt: now.Add(window)}
		s.buckets[key] = b
	}
	if b.count >= limit {
		return b.count, b.resetAt, false, nil
	}
	b.count++
	return b.count, b.resetAt, true, nil
}

// Sweep drops buckets whose window has closed and returns how many were removed.
func (s *RateLimitStore) Sweep() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for k, b := range s.buckets {
		if !now.Before(b.resetAt) {
			delete(s.buckets, k)
			n++
		}
	}
	return n
}

// TouchThrottle is the in-process counterpart of the Redis touch throttle.
type TouchThrottle struct {
	mu    sync.Mutex
	until map[string]time.Time
	now   func() time.Time
}

func NewTouchThrottle() *TouchThrottle {
	return &TouchThrottle{until: make(map[string]time.Time), now: time.Now}
}

// Acquire implements ports.TouchThrottle.
func (t *TouchThrottle) Acquire(_ context.Context, key string, interval time.Duration) (bool, error) {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	if until, ok := t.until[key]; ok && now.Before(until) {
		return false, nil
	}
	t.until[key] = now.Add(interval)
	if len(t.until) > 10000 {
		for k, u := range t.until {
			if !now.Before(u) {
				delete(t.until, k)
			}
		}
	}
	return true, nil
}
