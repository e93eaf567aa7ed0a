package domain

import "time"

// HealthState is the three-value health status the monitor (C5) tracks per
// server, keyed by server id — deliberately not part of UpstreamServer
// itself (spec.md §3, §4.5).
type HealthState string

const (
	HealthUnknown   HealthState = "unknown"
	HealthHealthy   HealthState = "healthy"
	HealthUnhealthy HealthState = "unhealthy"
)

// Routable reports whether the state is healthy; the monitor's IsHealthy
// answers with it. The load balancer's healthy subset is wider: it drops
// only servers in the unhealthy state, so unknown servers stay selectable.
func (s HealthState) Routable() bool {
	return s == HealthHealthy
}

// ServerHealth is the health monitor's per-server bookkeeping: current
// state, consecutive pass/fail counters driving the N/M hysteresis in
// spec.md §4.5, and the last probe's observations.
type ServerHealth struct {
	LastChecked         time.Time
	LastError           error
	State               HealthState
	ConsecutivePasses   int
	ConsecutiveFailures int
	LastLatency         time.Duration
}

// HealthCheckResult is the outcome of a single active probe.
type HealthCheckResult struct {
	Error      error
	Latency    time.Duration
	StatusCode int
	ErrorType  HealthCheckErrorType
	Passed     bool
}

// HealthCheckErrorType classifies why a probe failed, used by the circuit
// breaker and backoff logic in adapter/health.
type HealthCheckErrorType int

const (
	ErrorTypeNone HealthCheckErrorType = iota
	ErrorTypeNetwork
	ErrorTypeTimeout
	ErrorTypeHTTPError
	ErrorTypeCircuitOpen
)

// ApplyResult advances the hysteresis state machine per spec.md §4.5: a
// passing probe sets healthy only after unhealthyAfter→healthyAfter
// consecutive passes when recovering, while a single pass from unknown
// goes straight to healthy (there is no "was never down" hysteresis);
// unhealthyAfter consecutive failures are required to mark a server down.
func (h *ServerHealth) ApplyResult(result HealthCheckResult, healthyAfter, unhealthyAfter int) {
	h.LastChecked = time.Now()
	h.LastLatency = result.Latency
	h.LastError = result.Error

	if result.Passed {
		h.ConsecutiveFailures = 0
		h.ConsecutivePasses++
		switch h.State {
		case HealthUnknown:
			h.State = HealthHealthy
		case HealthUnhealthy:
			if h.ConsecutivePasses >= healthyAfter {
				h.State = HealthHealthy
			}
		case HealthHealthy:
			// already healthy
		}
		return
	}

	h.ConsecutivePasses = 0
	h.ConsecutiveFailures++
	if h.ConsecutiveFailures >= unhealthyAfter {
		h.State = HealthUnhealthy
	} else if h.State == HealthUnknown {
		// stay unknown until the threshold trips, per spec.md §4.5
	}
}
