package ports

import (
	"context"
	"time"
)

// RateLimitDecision is the outcome of one rate-limit check.
type RateLimitDecision struct {
	ResetAt    time.Time
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// RateLimitStore is the pluggable backend behind the rate-limit middleware
// (spec.md §4.16): a token-bucket counter keyed by a configurable
// identifier (client IP, header value, or route). Generalised from the
// teacher's process-global map so multiple independent buckets — one per
// route, one per client — can share an implementation.
type RateLimitStore interface {
	// Allow consumes one token from the bucket for key, creating it with
	// limit/window on first use.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (RateLimitDecision, error)

	// Reset clears the bucket for key, used by tests and admin tooling.
	Reset(ctx context.Context, key string) error
}

// SecurityViolation records one rejected request for the metrics
// exposition and audit logging.
type SecurityViolation struct {
	Timestamp time.Time
	ClientID  string
	Kind      string
	Route     string
	Size      int64
}

// SecurityMetrics summarises violations for the /health endpoint.
type SecurityMetrics struct {
	RateLimitViolations  int64
	SizeLimitViolations  int64
	UniqueRateLimitedIPs int
}

// SecurityMetricsService records and reports SecurityViolations.
type SecurityMetricsService interface {
	RecordViolation(ctx context.Context, violation SecurityViolation) error
	GetMetrics(ctx context.Context) (SecurityMetrics, error)
}
