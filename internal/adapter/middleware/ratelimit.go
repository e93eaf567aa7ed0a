package middleware

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/brightloom/gatewire/internal/core/domain"
	"github.com/brightloom/gatewire/internal/core/ports"
)

// KeyBy selects which part of the request identifies a rate-limit bucket
// (spec.md §4.16's "configurable identifier").
type KeyBy int

const (
	KeyByClientIP KeyBy = iota
	KeyByPrincipal
	KeyByHeader
)

// RateLimit enforces limit requests per window per bucket key, rejecting
// over-budget requests with a 429 short-circuit response instead of
// invoking next (spec.md §4.8's short-circuit semantics, §4.16).
type RateLimit struct {
	store      ports.RateLimitStore
	headerName string
	keyBy      KeyBy
	limit      int
	window     time.Duration
}

var _ ports.Middleware = (*RateLimit)(nil)

func NewRateLimit(store ports.RateLimitStore, keyBy KeyBy, headerName string, limit int, window time.Duration) *RateLimit {
	return &RateLimit{store: store, keyBy: keyBy, headerName: headerName, limit: limit, window: window}
}

func (*RateLimit) Name() string { return "rate-limit" }

func (r *RateLimit) Handle(ctx context.Context, req *domain.Request, next ports.Next) (*domain.Response, error) {
	key := r.bucketKey(req)
	decision, err := r.store.Allow(ctx, key, r.limit, r.window)
	if err != nil {
		return nil, err
	}

	if !decision.Allowed {
		resp := domain.NewPlainTextResponse(429, "Too Many Requests", "rate limit exceeded")
		resp.Headers.Set("Retry-After", strconv.Itoa(int(decision.RetryAfter.Seconds())+1))
		resp.Headers.Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		resp.Headers.Set("X-RateLimit-Remaining", "0")
		return resp, nil
	}

	resp, err := next(ctx, req)
	if resp != nil {
		resp.Headers.Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		resp.Headers.Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
	}
	return resp, err
}

func (r *RateLimit) bucketKey(req *domain.Request) string {
	clientIP := req.RemoteAddr
	if host, _, err := net.SplitHostPort(clientIP); err == nil {
		clientIP = host
	}
	switch r.keyBy {
	case KeyByPrincipal:
		if principal := req.Meta.GetString("principal"); principal != "" {
			return principal
		}
		return clientIP
	case KeyByHeader:
		if v := req.Headers.Get(r.headerName); v != "" {
			return v
		}
		return clientIP
	default:
		return clientIP
	}
}
