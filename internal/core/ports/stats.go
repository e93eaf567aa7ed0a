package ports

import (
	"time"
)

// StatsCollector aggregates per-server and process-wide counters for the
// /health endpoint and Prometheus exposition (spec.md §9). Servers are
// identified by id rather than a domain.UpstreamServer pointer so the
// collector outlives any one config generation.
type StatsCollector interface {
	RecordRequest(serverID, status string, latency time.Duration, bytes int64)
	RecordConnection(serverID string, delta int) // +1 connect, -1 disconnect
	RecordSecurityViolation(violation SecurityViolation)

	GetProxyStats() ProxyStats
	GetServerStats() map[string]ServerStats
	GetSecurityStats() SecurityStats
	GetConnectionStats() map[string]int64
}

// ServerStats is the per-upstream-server snapshot reported at /health.
type ServerStats struct {
	LastUsed           time.Time `json:"last_used"`
	ID                 string    `json:"id"`
	URL                string    `json:"url"`
	ActiveConnections  int64     `json:"active_connections"`
	TotalRequests      int64     `json:"total_requests"`
	SuccessfulRequests int64     `json:"successful_requests"`
	FailedRequests     int64     `json:"failed_requests"`
	TotalBytes         int64     `json:"total_bytes"`
	AverageLatencyMs   int64     `json:"avg_latency_ms"`
	MinLatencyMs       int64     `json:"min_latency_ms"`
	MaxLatencyMs       int64     `json:"max_latency_ms"`
	SuccessRate        float64   `json:"success_rate_percent"`
}

// SecurityStats is the process-wide snapshot of rejected requests.
type SecurityStats struct {
	RateLimitViolations  int64 `json:"rate_limit_violations"`
	SizeLimitViolations  int64 `json:"size_limit_violations"`
	UniqueRateLimitedIPs int   `json:"unique_rate_limited_ips"`
}
