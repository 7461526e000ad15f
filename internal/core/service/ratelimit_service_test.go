package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mediastudio/studio-api/internal/core/domain"
)

func newRateLimitFixture(t *testing.T, trusted ...string) (*RateLimitService, *fakeClock, *stubRateStore) {
	t.Helper()
	clock := newFakeClock()
	store := &stubRateStore{now: clock.now}
	svc, err := NewRateLimitService(store, trusted)
	if err != nil {
		t.Fatalf("NewRateLimitService returned error: %v", err)
	}
	svc.now = clock.now
	return svc, clock, store
}

func TestRateLimitService_ClientIdentifier(t *testing.T) {
	svc, _, _ := newRateLimitFixture(t, "10.0.0.0/8", "192.168.1.1")

	cases := []struct {
		name     string
		remote   string
		xff      string
		realIP   string
		endpoint string
		want     string
	}{
		{name: "direct peer", remote: "203.0.113.7:5555", endpoint: "login", want: "login:203.0.113.7"},
		{name: "default endpoint", remote: "203.0.113.7:5555", want: "api:203.0.113.7"},
		{name: "spoofed header from untrusted peer", remote: "203.0.113.7:5555", xff: "1.2.3.4", endpoint: "login", want: "login:203.0.113.7"},
		{name: "trusted hops skipped from the right", remote: "10.1.2.3:80", xff: "198.51.100.9, 10.1.2.3", endpoint: "login", want: "login:198.51.100.9"},
		{name: "forged left entry ignored", remote: "10.0.0.1:80", xff: "198.51.100.77, 203.0.113.50", endpoint: "login", want: "login:203.0.113.50"},
		{name: "every hop trusted", remote: "10.0.0.1:80", xff: "10.2.2.2, 10.3.3.3", endpoint: "api", want: "api:10.0.0.1"},
		{name: "garbage right of client", remote: "10.0.0.1:80", xff: "203.0.113.50, junk", endpoint: "api", want: "api:10.0.0.1"},
		{name: "trusted single ip", remote: "192.168.1.1:80", xff: "198.51.100.9", endpoint: "setup", want: "setup:198.51.100.9"},
		{name: "real ip fallback", remote: "10.1.2.3:80", realIP: "198.51.100.10", endpoint: "api", want: "api:198.51.100.10"},
		{name: "garbage header", remote: "10.1.2.3:80", xff: "not-an-ip", endpoint: "api", want: "api:10.1.2.3"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tc.remote
			if tc.xff != "" {
				r.Header.Set("X-Forwarded-For", tc.xff)
			}
			if tc.realIP != "" {
				r.Header.Set("X-Real-IP", tc.realIP)
			}
			if got := svc.ClientIdentifier(r, tc.endpoint); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestRateLimitService_ForgedForwardedForSharesBudget(t *testing.T) {
	svc, _, _ := newRateLimitFixture(t, "10.0.0.1")
	policy := domain.RateLimitPolicy{Limit: 5, Window: time.Minute}

	allowed := 0
	for i := 0; i < 50; i++ {
		r := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		r.RemoteAddr = "10.0.0.1:443"
		r.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d, 203.0.113.50", i))
		res, err := svc.CheckRateLimit(context.Background(), svc.ClientIdentifier(r, "login"), policy)
		if err != nil {
			t.Fatalf("CheckRateLimit returned error: %v", err)
		}
		if res.Success {
			allowed++
		}
	}
	if allowed != 5 {
		t.Fatalf("expected 5 allowed attempts for one client, got %d", allowed)
	}
}

func TestRateLimitService_InvalidTrustedProxy(t *testing.T) {
	if _, err := NewRateLimitService(&stubRateStore{now: time.Now}, []string{"nope"}); err == nil {
		t.Fatalf("expected error for invalid proxy")
	}
}

func TestRateLimitService_CheckRateLimit(t *testing.T) {
	svc, clock, _ := newRateLimitFixture(t)
	ctx := context.Background()
	policy := domain.RateLimitPolicy{Limit: 5, Window: time.Minute}

	for i := 1; i <= 5; i++ {
		res, err := svc.CheckRateLimit(ctx, "login:1.2.3.4", policy)
		if err != nil {
			t.Fatalf("CheckRateLimit returned error: %v", err)
		}
		if !res.Success || res.Remaining != 5-i || res.Limit != 5 {
			t.Fatalf("request %d: unexpected result %+v", i, res)
		}
	}

	res, _ := svc.CheckRateLimit(ctx, "login:1.2.3.4", policy)
	if res.Success || res.Remaining != 0 {
		t.Fatalf("sixth request must be rejected: %+v", res)
	}
	if got := res.RetryAfter(clock.t); got != 60 {
		t.Fatalf("expected retry after 60s, got %d", got)
	}

	other, _ := svc.CheckRateLimit(ctx, "login:5.6.7.8", policy)
	if !other.Success {
		t.Fatalf("identifiers must not share a budget")
	}

	clock.advance(time.Minute)
	res, _ = svc.CheckRateLimit(ctx, "login:1.2.3.4", policy)
	if !res.Success || res.Remaining != 4 {
		t.Fatalf("expected a fresh window, got %+v", res)
	}
}

func TestRateLimitService_StoreError(t *testing.T) {
	svc, _, store := newRateLimitFixture(t)
	store.err = errors.New("redis down")

	if _, err := svc.CheckRateLimit(context.Background(), "api:1.2.3.4", domain.RateLimitPolicy{Limit: 1, Window: time.Second}); err == nil {
		t.Fatalf("expected store error to propagate")
	}
}

func TestRateLimitHeaders(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	reset := now.Add(30 * time.Second)

	h := RateLimitHeaders(domain.RateLimitResult{Success: true, Limit: 10, Remaining: 3, ResetTime: reset}, now)
	if h[HeaderRateLimitLimit] != "10" || h[HeaderRateLimitRemaining] != "3" || h[HeaderRateLimitReset] != "1700000030" {
		t.Fatalf("unexpected headers: %v", h)
	}
	if _, ok := h[HeaderRetryAfter]; ok {
		t.Fatalf("Retry-After must only be set on rejection")
	}

	h = RateLimitHeaders(domain.RateLimitResult{Success: false, Limit: 10, ResetTime: reset}, now)
	if h[HeaderRetryAfter] != "30" {
		t.Fatalf("unexpected Retry-After: %q", h[HeaderRetryAfter])
	}
}
