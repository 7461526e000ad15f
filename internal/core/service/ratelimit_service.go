package service

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mediastudio/studio-api/internal/core/domain"
	"github.com/mediastudio/studio-api/internal/core/ports"
)

const (
	rateLimitKeyPrefix = "rl:"
	defaultEndpoint    = "api"
)

// Response headers describing the rate limit state.
const (
	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRateLimitReset     = "X-RateLimit-Reset"
	HeaderRetryAfter         = "Retry-After"
)

// RateLimitService counts requests per client identifier in fixed windows.
type RateLimitService struct {
	store   ports.RateLimitStore
	trusted []*net.IPNet
	now     func() time.Time
}

// NewRateLimitService returns a limiter over store. Forwarding headers are only
// honoured when the socket peer lies in one of trustedProxies (IPs or CIDRs).
func NewRateLimitService(store ports.RateLimitStore, trustedProxies []string) (*RateLimitService, error) {
	nets := make([]*net.IPNet, 0, len(trustedProxies))
	for _, p := range trustedProxies {
		if strings.TrimSpace(p) == "" {
			continue
		}
		n, err := parseCIDRorIP(p)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", p, err)
		}
		nets = append(nets, n)
	}
	return &RateLimitService{
		store:   store,
		trusted: nets,
		now:     time.Now,
	}, nil
}

// ClientIdentifier derives "<endpoint>:<ip>" for r. Forwarding headers are
// read only when the socket peer is a trusted proxy. X-Forwarded-For is walked
// from the right and the first address outside the trusted set wins; entries
// left of it were written by the client and are ignored.
func (s *RateLimitService) ClientIdentifier(r *http.Request, endpoint string) string {
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	return endpoint + ":" + s.clientIP(r)
}

func (s *RateLimitService) clientIP(r *http.Request) string {
	peer := remoteIP(r)
	if !s.isTrusted(peer) {
		return peer
	}
	if hops := forwardedFor(r); len(hops) > 0 {
		for i := len(hops) - 1; i >= 0; i-- {
			ip := net.ParseIP(hops[i])
			if ip == nil {
				// unparsable hop: nothing further left can be trusted
				return peer
			}
			if !s.isTrusted(ip.String()) {
				return ip.String()
			}
		}
		return peer
	}
	if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
		return ip.String()
	}
	return peer
}

// forwardedFor flattens every X-Forwarded-For header into hops, left to right.
func forwardedFor(r *http.Request) []string {
	var hops []string
	for _, v := range r.Header.Values("X-Forwarded-For") {
		for _, h := range strings.Split(v, ",") {
			if h = strings.TrimSpace(h); h != "" {
				hops = append(hops, h)
			}
		}
	}
	return hops
}

func (s *RateLimitService) isTrusted(ipStr string) bool {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}
	for _, n := range s.trusted {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// CheckRateLimit records one request for id under policy. A rejected request
// does not consume a slot.
func (s *RateLimitService) CheckRateLimit(ctx context.Context, id string, policy domain.RateLimitPolicy) (domain.RateLimitResult, error) {
	count, resetAt, allowed, err := s.store.Hit(ctx, rateLimitKeyPrefix+id, policy.Limit, policy.Window)
	if err != nil {
		return domain.RateLimitResult{}, fmt.Errorf("rate limit %s: %w", id, err)
	}
	remaining := policy.Limit - count
	if remaining < 0 {
		remaining = 0
	}
	return domain.RateLimitResult{
		Success:   allowed,
		Limit:     policy.Limit,
		Remaining: remaining,
		ResetTime: resetAt,
	}, nil
}

// RateLimitHeaders maps result onto conventional response headers. Retry-After
// is only present on rejection.
func RateLimitHeaders(result domain.RateLimitResult, now time.Time) map[string]string {
	h := map[string]string{
		HeaderRateLimitLimit:     strconv.Itoa(result.Limit),
		HeaderRateLimitRemaining: strconv.Itoa(result.Remaining),
		HeaderRateLimitReset:     strconv.FormatInt(result.ResetTime.Unix(), 10),
	}
	if !result.Success {
		h[HeaderRetryAfter] = strconv.Itoa(result.RetryAfter(now))
	}
	return h
}

// remoteIP extracts the socket peer address without the port.
func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}

// parseCIDRorIP parses either a CIDR string or a single IP address.
func parseCIDRorIP(s string) (*net.IPNet, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "/") {
		_, n, err := net.ParseCIDR(s)
		if err != nil {
			return nil, err
		}
		return n, nil
	}
	ip := net.ParseIP(s)
	if ip == nil {
		return nil, fmt.Errorf("invalid ip")
	}
	bits := 128
	if ip.To4() != nil {
		bits = 32
		ip = ip.To4()
	}
	return &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)}, nil
}
