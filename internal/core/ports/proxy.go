package ports

import (
	"context"
	"time"

	"github.com/brightloom/gatewire/internal/core/domain"
)

// ReverseProxy is the C9 orchestrator port: route match -> select ->
// acquire -> dispatch -> retry -> release, end to end for one request.
type ReverseProxy interface {
	Serve(ctx context.Context, req *domain.Request) (*domain.Response, RequestTiming, error)
	Stats(ctx context.Context) ProxyStats
}

// ProxyStats is the aggregate, process-wide view of ReverseProxy activity,
// exposed at /health alongside the Prometheus /metrics exposition.
type ProxyStats struct {
	TotalRequests      int64
	SuccessfulRequests int64
	FailedRequests     int64
	AverageLatencyMs    int64
}

// RequestTiming breaks one request's end-to-end latency into the phases
// spec.md §9 asks for, so slow requests can be attributed to selection,
// pool acquisition, or backend exchange rather than left as one number.
type RequestTiming struct {
	RequestID          string
	Target             string
	StartTime          time.Time
	EndTime             time.Time
	TotalBytes          int64
	TotalMs             int64 // end-to-end
	SelectionMs         int64 // time in the load balancer
	AcquireMs           int64 // time waiting on the connection pool
	BackendMs           int64 // time for the upstream exchange
	RetryCount          int
}
