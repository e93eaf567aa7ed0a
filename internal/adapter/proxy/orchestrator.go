// Package proxy implements the C9 reverse-proxy orchestrator: match ->
// select -> acquire -> dispatch -> retry -> release, end to end for one
// request (spec.md §4.9).
package proxy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brightloom/gatewire/internal/adapter/affinity"
	"github.com/brightloom/gatewire/internal/adapter/transport"
	"github.com/brightloom/gatewire/internal/core/domain"
	"github.com/brightloom/gatewire/internal/core/ports"
)

// SelectorFactory resolves a named load-balancing strategy to a selector;
// internal/adapter/balancer.Factory satisfies this.
type SelectorFactory interface {
	Create(name string) (ports.EndpointSelector, error)
}

// Orchestrator is the shipped ports.ReverseProxy.
type Orchestrator struct {
	routes    ports.RouteTable
	registry  ports.UpstreamRegistry
	selectors SelectorFactory
	pool      ports.ConnectionPool
	transport ports.UpstreamTransport
	health    ports.HealthMonitor
	affinity  ports.AffinityTracker
	log       *slog.Logger

	mu            sync.Mutex
	groupSelector map[string]ports.EndpointSelector

	stats proxyStats
}

var _ ports.ReverseProxy = (*Orchestrator)(nil)

type proxyStats struct {
	total      int64
	successful int64
	failed     int64
	totalMs    int64
}

// Config bundles the Orchestrator's collaborators.
type Config struct {
	Routes    ports.RouteTable
	Registry  ports.UpstreamRegistry
	Selectors SelectorFactory
	Pool      ports.ConnectionPool
	Transport ports.UpstreamTransport
	Health    ports.HealthMonitor
	Affinity  ports.AffinityTracker
	Logger    *slog.Logger
}

func New(cfg Config) *Orchestrator {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		routes:        cfg.Routes,
		registry:      cfg.Registry,
		selectors:     cfg.Selectors,
		pool:          cfg.Pool,
		transport:     cfg.Transport,
		health:        cfg.Health,
		affinity:      cfg.Affinity,
		log:           log,
		groupSelector: make(map[string]ports.EndpointSelector),
	}
}

// Serve runs the full C9 pipeline for one request (spec.md §4.9, steps
// 1-9).
func (o *Orchestrator) Serve(ctx context.Context, req *domain.Request) (*domain.Response, ports.RequestTiming, error) {
	start := time.Now()
	atomic.AddInt64(&o.stats.total, 1)

	timing := ports.RequestTiming{RequestID: req.RequestID, StartTime: start}

	route, ok := o.routes.Match(req.Method, req.URL.Host, req.URL.Path)
	if !ok {
		return o.fail(req, timing, start, domain.NewGatewayError(domain.KindRouteNotFound, req.RequestID, string(req.Method), req.URL.Path, "", fmt.Errorf("no route matches %s %s", req.Method, req.URL.Path)))
	}

	group, err := o.registry.Group(ctx, route.UpstreamGroup)
	if err != nil {
		return o.fail(req, timing, start, domain.NewGatewayError(domain.KindUpstreamUnavailable, req.RequestID, string(req.Method), req.URL.Path, route.UpstreamGroup, err))
	}

	selector, err := o.selectorFor(group)
	if err != nil {
		return o.fail(req, timing, start, domain.NewGatewayError(domain.KindConfigurationError, req.RequestID, string(req.Method), req.URL.Path, route.UpstreamGroup, err))
	}

	resp, attempts, err := o.dispatchWithRetry(ctx, req, group, selector, &timing)
	timing.RetryCount = attempts
	timing.EndTime = time.Now()
	timing.TotalMs = timing.EndTime.Sub(start).Milliseconds()

	if err != nil {
		atomic.AddInt64(&o.stats.failed, 1)
		return nil, timing, err
	}

	atomic.AddInt64(&o.stats.successful, 1)
	atomic.AddInt64(&o.stats.totalMs, timing.TotalMs)
	if resp != nil {
		timing.TotalBytes = resp.BodyLength
	}
	return resp, timing, nil
}

func (o *Orchestrator) fail(req *domain.Request, timing ports.RequestTiming, start time.Time, err error) (*domain.Response, ports.RequestTiming, error) {
	atomic.AddInt64(&o.stats.failed, 1)
	timing.EndTime = time.Now()
	timing.TotalMs = timing.EndTime.Sub(start).Milliseconds()
	return nil, timing, err
}

func (o *Orchestrator) selectorFor(group *domain.UpstreamGroup) (ports.EndpointSelector, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if sel, ok := o.groupSelector[group.ID]; ok {
		return sel, nil
	}
	sel, err := o.selectors.Create(group.Strategy)
	if err != nil {
		return nil, err
	}
	o.groupSelector[group.ID] = sel
	return sel, nil
}

// dispatchWithRetry implements spec.md §4.9 steps 3-9: pick a candidate,
// acquire a connection, dispatch, and on connection-level failure retry
// with a different candidate while the request is idempotent and retry
// budget remains.
func (o *Orchestrator) dispatchWithRetry(ctx context.Context, req *domain.Request, group *domain.UpstreamGroup, selector ports.EndpointSelector, timing *ports.RequestTiming) (*domain.Response, int, error) {
	tried := make(map[string]bool)
	maxRetries := group.Retry.MaxRetries
	if maxRetries <= 0 {
		maxRetries = len(group.Servers) - 1
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		candidate, selectionKey, err := o.pickCandidate(ctx, req, group, selector, tried)
		if err != nil {
			if attempt == 0 {
				return nil, attempt, domain.NewGatewayError(domain.KindUpstreamUnavailable, req.RequestID, string(req.Method), req.URL.Path, group.ID, err)
			}
			return nil, attempt, lastErr
		}

		resp, err := o.dispatchOnce(ctx, req, group, candidate, selector)
		if err == nil {
			if group.Affinity != nil && selectionKey != "" {
				o.affinity.Bind(group, selectionKey, candidate.ID)
				applyAffinityCookie(resp, group, selectionKey)
			}
			timing.Target = candidate.Key()
			return resp, attempt, nil
		}

		lastErr = err
		tried[candidate.ID] = true
		if o.affinity != nil {
			o.affinity.RecordFailure(group, candidate.ID)
		}
		if o.health != nil {
			o.health.RecordPassive(candidate.ID, domain.HealthCheckResult{Error: err, ErrorType: domain.ErrorTypeNetwork})
		}

		if !req.Method.Idempotent() || attempt == maxRetries || !transport.RetriableBeforeAnyBytes(err) {
			return nil, attempt, lastErr
		}
	}
	return nil, maxRetries, lastErr
}

func (o *Orchestrator) pickCandidate(ctx context.Context, req *domain.Request, group *domain.UpstreamGroup, selector ports.EndpointSelector, tried map[string]bool) (*domain.UpstreamServer, string, error) {
	selectionKey := ""
	if group.Affinity != nil {
		selectionKey = affinity.SelectionKey(group, req)
		if selectionKey != "" && o.affinity != nil {
			if serverID, available, ok := o.affinity.Resolve(group, selectionKey); ok && available && !tried[serverID] {
				if server := group.ServerByID(serverID); server != nil && server.Enabled {
					return server, selectionKey, nil
				}
			}
		}
	}

	candidateGroup := excludeTried(group, tried)
	if len(candidateGroup.Servers) == 0 {
		return nil, "", fmt.Errorf("no untried servers remain in group %q", group.ID)
	}

	lbKey := selectionKey
	if lbKey == "" {
		lbKey = affinity.ClientIP(req)
	}

	server, err := selector.Select(ctx, candidateGroup, lbKey)
	if err != nil {
		return nil, "", err
	}
	return server, selectionKey, nil
}

func excludeTried(group *domain.UpstreamGroup, tried map[string]bool) *domain.UpstreamGroup {
	if len(tried) == 0 {
		return group
	}
	filtered := make([]*domain.UpstreamServer, 0, len(group.Servers))
	for _, s := range group.Servers {
		if !tried[s.ID] {
			filtered = append(filtered, s)
		}
	}
	clone := *group
	clone.Servers = filtered
	return &clone
}

func (o *Orchestrator) dispatchOnce(ctx context.Context, req *domain.Request, group *domain.UpstreamGroup, server *domain.UpstreamServer, selector ports.EndpointSelector) (*domain.Response, error) {
	if counter, ok := selector.(ports.ConnectionCounter); ok {
		counter.RecordConnection(server.ID, 1)
		defer counter.RecordConnection(server.ID, -1)
	}

	dispatchCtx := ctx
	var cancel context.CancelFunc
	if group.RequestTimeout > 0 {
		dispatchCtx, cancel = context.WithTimeout(ctx, group.RequestTimeout)
		defer cancel()
	}

	conn, err := o.pool.Acquire(dispatchCtx, server.Key())
	if err != nil {
		return nil, domain.NewGatewayError(domain.KindUpstreamConnectFailure, req.RequestID, string(req.Method), req.URL.Path, server.Key(), err)
	}

	resp, reusable, err := o.transport.Exchange(dispatchCtx, conn.Conn, req)
	if err != nil {
		o.pool.Discard(conn)
		if isTimeout(dispatchCtx, err) {
			return nil, domain.NewGatewayError(domain.KindUpstreamTimeout, req.RequestID, string(req.Method), req.URL.Path, server.Key(), err)
		}
		return nil, domain.NewGatewayError(domain.KindUpstreamExchangeFailure, req.RequestID, string(req.Method), req.URL.Path, server.Key(), err)
	}

	conn.MarkUsed(time.Now())
	if reusable {
		o.pool.Release(conn)
	} else {
		o.pool.Discard(conn)
	}
	return resp, nil
}

// isTimeout reports whether an exchange failure is a deadline expiry
// rather than a connection-level error, so dispatchOnce can surface it as
// the 504 spec.md §7 assigns UpstreamTimeout rather than the 502 it
// assigns UpstreamExchangeFailure.
func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func applyAffinityCookie(resp *domain.Response, group *domain.UpstreamGroup, selectionKey string) {
	if resp == nil || group.Affinity == nil || group.Affinity.KeySource != domain.AffinityByCookie {
		return
	}
	cookie := fmt.Sprintf("%s=%s; Path=%s; Max-Age=%d", group.Affinity.CookieName, selectionKey, group.Affinity.Path, int(group.Affinity.MaxAge.Seconds()))
	if group.Affinity.HttpOnly {
		cookie += "; HttpOnly"
	}
	resp.Headers.Add("Set-Cookie", cookie)
}

// Stats reports the process-wide aggregate view for /health (spec.md
// §4.9's "Statistics updated per request").
func (o *Orchestrator) Stats(ctx context.Context) ports.ProxyStats {
	total := atomic.LoadInt64(&o.stats.total)
	successful := atomic.LoadInt64(&o.stats.successful)
	failed := atomic.LoadInt64(&o.stats.failed)
	totalMs := atomic.LoadInt64(&o.stats.totalMs)

	avg := int64(0)
	if successful > 0 {
		avg = totalMs / successful
	}

	return ports.ProxyStats{
		TotalRequests:      total,
		SuccessfulRequests: successful,
		FailedRequests:     failed,
		AverageLatencyMs:   avg,
	}
}
