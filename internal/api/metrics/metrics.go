// Package metrics defines and registers the custom Prometheus metrics of the
// studio API. It is the single source of truth for metric names, labels and
// help strings. HTTP request metrics come from echoprometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "studio"

// ── Auth metrics ──────────────────────────────────────────────────────────────

// LoginAttemptsTotal counts login attempts.
// Label:
//   - result: "success", "invalid_credentials" or "error"
var LoginAttemptsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "login_attempts_total",
		Help:      "Total number of login attempts, by result.",
	},
	[]string{"result"},
)

// SessionsCreatedTotal counts issued sessions.
// Label:
//   - source: "login" or "setup"
var SessionsCreatedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_created_total",
		Help:      "Total number of sessions issued.",
	},
	[]string{"source"},
)

// SessionsRevokedTotal counts sessions invalidated by logout or password change.
var SessionsRevokedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_revoked_total",
		Help:      "Total number of sessions invalidated before expiry.",
	},
)

// SessionsCleanedTotal counts session records removed by garbage collection.
var SessionsCleanedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_cleaned_total",
		Help:      "Total number of expired or invalidated session records deleted.",
	},
)

// CSRFRejectionsTotal counts requests refused by the CSRF guard.
var CSRFRejectionsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "csrf_rejections_total",
		Help:      "Total number of state-changing requests rejected for a missing or mismatched CSRF token.",
	},
)

// ── Rate limit metrics ────────────────────────────────────────────────────────

// RateLimitDecisionsTotal counts rate limiter decisions.
// Labels:
//   - endpoint: the budget name ("api", "login", "setup", "credentials")
//   - result: "allowed", "rejected" or "error"
var RateLimitDecisionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rate_limit_decisions_total",
		Help:      "Total number of rate limit checks, by budget and result.",
	},
	[]string{"endpoint", "result"},
)

// ── Credential metrics ────────────────────────────────────────────────────────

// CredentialOperationsTotal counts API key operations.
// Labels:
//   - operation: "save", "deactivate" or "migrate"
//   - service: provider name, or "all" for migrations
var CredentialOperationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "credential_operations_total",
		Help:      "Total number of stored API key operations.",
	},
	[]string{"operation", "service"},
)
