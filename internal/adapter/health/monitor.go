// Package health implements the C5 health monitor: a heap-scheduled active
// prober per upstream group plus per-server hysteresis state, keyed by
// server id (spec.md §4.5).
package health

import (
	"container/heap"
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/brightloom/gatewire/internal/core/domain"
	"github.com/brightloom/gatewire/internal/core/ports"
)

const (
	DefaultWorkerCount    = 8
	DefaultQueueSize      = 128
	DefaultProbeTimeout   = 5 * time.Second
	DefaultHealthyAfter   = 2
	DefaultUnhealthyAfter = 3
)

// Monitor is the default ports.HealthMonitor. Active probes are scheduled
// on a binary min-heap keyed by due time (grounded on the teacher's
// checker.go scheduledCheck/checkHeap) and executed by a small worker pool
// (grounded on worker_pool.go); per-server state lives in a plain map of
// *domain.ServerHealth records guarded by a single mutex.
type Monitor struct {
	client      HTTPProbeClient
	workerCount int

	mu     sync.Mutex
	states map[string]*domain.ServerHealth

	heapMu sync.Mutex
	sched  checkHeap
	wakeCh chan struct{}

	jobCh  chan probeJob
	stopCh chan struct{}
	wg     sync.WaitGroup

	breaker *CircuitBreaker
}

// HTTPProbeClient is the subset of *http.Client the monitor needs, so
// tests can substitute a fake round tripper.
type HTTPProbeClient interface {
	Do(req *http.Request) (*http.Response, error)
}

var _ ports.HealthMonitor = (*Monitor)(nil)

// New builds a Monitor. A nil client defaults to an *http.Client tuned
// with DefaultProbeTimeout.
func New(client HTTPProbeClient, workerCount int) *Monitor {
	if client == nil {
		client = &http.Client{Timeout: DefaultProbeTimeout}
	}
	if workerCount <= 0 {
		workerCount = DefaultWorkerCount
	}
	return &Monitor{
		client:      client,
		workerCount: workerCount,
		states:      make(map[string]*domain.ServerHealth),
		wakeCh:      make(chan struct{}, 1),
		jobCh:       make(chan probeJob, DefaultQueueSize),
		stopCh:      make(chan struct{}),
		breaker:     NewCircuitBreaker(),
	}
}

type probeJob struct {
	server *domain.UpstreamServer
	spec   *domain.HealthCheckSpec
}

type scheduledCheck struct {
	due   time.Time
	job   probeJob
	index int
}

type checkHeap []*scheduledCheck

func (h checkHeap) Len() int            { return len(h) }
func (h checkHeap) Less(i, j int) bool  { return h[i].due.Before(h[j].due) }
func (h checkHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *checkHeap) Push(x interface{}) { *h = append(*h, x.(*scheduledCheck)) }
func (h *checkHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// IsHealthy reports the last known routability for serverID; an unknown
// server (never probed) reports unhealthy, since it hasn't yet passed a
// probe.
func (m *Monitor) IsHealthy(serverID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.states[serverID]
	if !ok {
		return false
	}
	return state.State.Routable()
}

// State returns a copy of the current health record for serverID.
func (m *Monitor) State(serverID string) (domain.ServerHealth, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.states[serverID]
	if !ok {
		return domain.ServerHealth{}, false
	}
	return *state, true
}

// RecordPassive records a data-path failure observation without altering
// routability: active probes alone own state transitions (spec.md §4.5).
func (m *Monitor) RecordPassive(serverID string, result domain.HealthCheckResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.states[serverID]
	if !ok {
		state = &domain.ServerHealth{State: domain.HealthUnknown}
		m.states[serverID] = state
	}
	state.LastError = result.Error
	state.LastLatency = result.Latency
	state.LastChecked = time.Now()
}

// Start schedules an immediate first probe for every server in every
// group that carries a health-check spec, then runs the worker pool and
// the heap dispatcher until ctx is cancelled.
func (m *Monitor) Start(ctx context.Context, groups []*domain.UpstreamGroup) error {
	m.wg.Add(1)
	go m.dispatchLoop(ctx)

	for i := 0; i < m.workerCount; i++ {
		m.wg.Add(1)
		go m.worker(ctx)
	}

	now := time.Now()
	for _, group := range groups {
		if group.HealthCheck == nil {
			continue
		}
		for _, server := range group.Servers {
			if !server.Enabled {
				continue
			}
			m.mu.Lock()
			if _, ok := m.states[server.ID]; !ok {
				m.states[server.ID] = &domain.ServerHealth{State: domain.HealthUnknown}
			}
			m.mu.Unlock()
			m.schedule(probeJob{server: server, spec: group.HealthCheck}, now)
		}
	}
	return nil
}

// Stop is idempotent: closing an already-closed stopCh is guarded by a
// select on the channel itself. It waits for all workers to exit or ctx
// to expire, whichever comes first.
func (m *Monitor) Stop(ctx context.Context) error {
	select {
	case <-m.stopCh:
		return nil
	default:
		close(m.stopCh)
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Monitor) schedule(job probeJob, due time.Time) {
	m.heapMu.Lock()
	heap.Push(&m.sched, &scheduledCheck{due: due, job: job})
	m.heapMu.Unlock()

	select {
	case m.wakeCh <- struct{}{}:
	default:
	}
}

// dispatchLoop pops due checks off the heap and hands them to the worker
// pool, sleeping until the next due time or a wake signal from a fresh
// schedule call.
func (m *Monitor) dispatchLoop(ctx context.Context) {
	defer m.wg.Done()
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		m.heapMu.Lock()
		var wait time.Duration
		if m.sched.Len() == 0 {
			wait = time.Hour
		} else {
			wait = time.Until(m.sched[0].due)
			if wait < 0 {
				wait = 0
			}
		}
		m.heapMu.Unlock()

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-m.wakeCh:
			continue
		case <-timer.C:
			m.dispatchDue()
		}
	}
}

func (m *Monitor) dispatchDue() {
	now := time.Now()
	for {
		m.heapMu.Lock()
		if m.sched.Len() == 0 || m.sched[0].due.After(now) {
			m.heapMu.Unlock()
			return
		}
		item := heap.Pop(&m.sched).(*scheduledCheck)
		m.heapMu.Unlock()

		select {
		case m.jobCh <- item.job:
		default:
			// queue saturated: drop this tick, the server is rescheduled
			// on its normal interval from the next due probe.
			m.schedule(item.job, now.Add(item.job.spec.Interval))
		}
	}
}

func (m *Monitor) worker(ctx context.Context) {
	defer m.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case job := <-m.jobCh:
			m.runProbe(ctx, job)
		}
	}
}

func (m *Monitor) runProbe(ctx context.Context, job probeJob) {
	key := job.server.Key()

	var result domain.HealthCheckResult
	if m.breaker.IsOpen(key) {
		// Circuit still open: skip the network round trip but still feed
		// a failing observation through the normal hysteresis so state
		// reporting stays consistent with "still failing".
		result = domain.HealthCheckResult{Error: ErrCircuitBreakerOpen, ErrorType: domain.ErrorTypeCircuitOpen}
	} else {
		result = m.probe(ctx, job.server, job.spec)
		if result.Passed {
			m.breaker.RecordSuccess(key)
		} else {
			m.breaker.RecordFailure(key)
		}
	}

	m.mu.Lock()
	state, ok := m.states[job.server.ID]
	if !ok {
		state = &domain.ServerHealth{State: domain.HealthUnknown}
		m.states[job.server.ID] = state
	}
	healthyAfter := job.spec.HealthyAfter
	if healthyAfter <= 0 {
		healthyAfter = DefaultHealthyAfter
	}
	unhealthyAfter := job.spec.UnhealthyAfter
	if unhealthyAfter <= 0 {
		unhealthyAfter = DefaultUnhealthyAfter
	}
	state.ApplyResult(result, healthyAfter, unhealthyAfter)
	m.mu.Unlock()

	m.schedule(job, time.Now().Add(job.spec.Interval))
}

func (m *Monitor) probe(ctx context.Context, server *domain.UpstreamServer, spec *domain.HealthCheckSpec) domain.HealthCheckResult {
	timeout := spec.Timeout
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	method := spec.Method
	if method == "" {
		method = http.MethodGet
	}
	target := server.URL()
	target.Path = spec.Path

	start := time.Now()
	req, err := http.NewRequestWithContext(probeCtx, method, target.String(), nil)
	if err != nil {
		return domain.HealthCheckResult{Error: err, ErrorType: domain.ErrorTypeNetwork}
	}

	resp, err := m.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		errType := domain.ErrorTypeNetwork
		if probeCtx.Err() != nil {
			errType = domain.ErrorTypeTimeout
		}
		return domain.HealthCheckResult{Error: err, Latency: latency, ErrorType: errType}
	}
	defer resp.Body.Close()

	expected := spec.ExpectedStatus
	if expected == 0 {
		expected = http.StatusOK
	}
	if resp.StatusCode != expected {
		return domain.HealthCheckResult{
			Error:      fmt.Errorf("unexpected status %d, want %d", resp.StatusCode, expected),
			Latency:    latency,
			StatusCode: resp.StatusCode,
			ErrorType:  domain.ErrorTypeHTTPError,
		}
	}

	return domain.HealthCheckResult{Passed: true, Latency: latency, StatusCode: resp.StatusCode}
}
