// Package runtime implements the C13 runtime (spec.md §4.13): it owns every
// gateway's listener and routing table, drives the start/shutdown lifecycle,
// and publishes lifecycle events to registered subscribers.
package runtime

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/brightloom/gatewire/internal/adapter/affinity"
	"github.com/brightloom/gatewire/internal/adapter/balancer"
	"github.com/brightloom/gatewire/internal/adapter/codec"
	"github.com/brightloom/gatewire/internal/adapter/health"
	"github.com/brightloom/gatewire/internal/adapter/pool"
	"github.com/brightloom/gatewire/internal/adapter/transport"
	"github.com/brightloom/gatewire/internal/config"
	"github.com/brightloom/gatewire/internal/core/domain"
	"github.com/brightloom/gatewire/pkg/eventbus"
	"github.com/brightloom/gatewire/pkg/portmgr"
)

// State is one of the five runtime lifecycle states named in spec.md §4.13
// ("stopped -> starting -> running", plus "stopping" and "error").
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
	StateError
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// EventKind names one of the lifecycle events spec.md §4.13 requires the
// runtime to publish: "starting, started, stopping, stopped, error,
// listener-started, listener-stopped".
type EventKind string

const (
	EventStarting        EventKind = "starting"
	EventStarted         EventKind = "started"
	EventStopping        EventKind = "stopping"
	EventStopped         EventKind = "stopped"
	EventError           EventKind = "error"
	EventListenerStarted EventKind = "listener-started"
	EventListenerStopped EventKind = "listener-stopped"
)

// Event is one published lifecycle notification.
type Event struct {
	Kind    EventKind
	Gateway string // empty for process-wide events
	Err     error
}

// Runtime owns N gateways built from config.Config, coordinates their
// listener goroutines with errgroup, and exposes process-wide lifecycle
// state for the /health and /metrics endpoints.
type Runtime struct {
	cfg *config.Config
	log *slog.Logger

	health   *health.Monitor
	affinity *affinity.Tracker
	pool     *pool.Pool
	selector *balancer.Factory
	portMgr  *portmgr.Manager

	gateways []*gatewayComponents

	events    *eventbus.EventBus[Event]
	startedAt time.Time

	mu    sync.Mutex
	state State

	shutdownOnce sync.Once
	runGroup     *errgroup.Group
	runCtx       context.Context
	runCancel    context.CancelFunc
}

// New assembles a Runtime from validated configuration. The health
// monitor, affinity tracker and connection pool are process-wide
// singletons shared by every gateway (spec.md §5's shared-resource list),
// while each gateway gets its own route table, registry, and listener.
func New(cfg *config.Config, log *slog.Logger) (*Runtime, error) {
	if log == nil {
		log = slog.Default()
	}

	httpCodec := codec.New()
	healthMonitor := health.New(nil, health.DefaultWorkerCount)
	affinityTracker := affinity.New()
	selectorFactory := balancer.NewFactory(healthMonitor)
	upstreamTransport := transport.New(httpCodec)

	connPool := pool.New(dialUpstream, pool.Config{})
	portMgr := portmgr.New()

	rt := &Runtime{
		cfg:      cfg,
		log:      log,
		health:   healthMonitor,
		affinity: affinityTracker,
		pool:     connPool,
		selector: selectorFactory,
		portMgr:  portMgr,
		events:   eventbus.New[Event](),
		state:    StateStopped,
	}

	for _, gwCfg := range cfg.Gateways {
		gw, err := buildGateway(gwCfg, healthMonitor, affinityTracker, connPool, selectorFactory, httpCodec, upstreamTransport, portMgr, log)
		if err != nil {
			for _, built := range rt.gateways {
				portMgr.Release(built.cfg.Host, built.cfg.Port)
			}
			return nil, fmt.Errorf("runtime: building gateway %s:%d: %w", gwCfg.Host, gwCfg.Port, err)
		}
		rt.gateways = append(rt.gateways, gw)
	}

	return rt, nil
}

// dialUpstream is the shared pool.Dialer every gateway's connection pool
// uses: it parses an UpstreamServer.Key() (e.g. "https://host:port") and
// dials plain TCP for http, or completes a TLS handshake for https, since
// an upstream server's own protocol is independent of its gateway's
// client-facing TLS mode (spec.md §6: "HTTP/1.1 and TLS 1.2+ on the
// upstream side").
func dialUpstream(ctx context.Context, key string) (net.Conn, error) {
	u, err := url.Parse(key)
	if err != nil {
		return nil, fmt.Errorf("runtime: invalid upstream key %q: %w", key, err)
	}

	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", u.Host)
	if err != nil {
		return nil, err
	}

	if u.Scheme != "https" {
		return conn, nil
	}

	tlsConn := tls.Client(conn, &tls.Config{ServerName: strippedHost(u.Host), MinVersion: tls.VersionTLS12})
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("runtime: upstream tls handshake: %w", err)
	}
	return tlsConn, nil
}

func strippedHost(hostport string) string {
	host, _, err := net.SplitHostPort(hostport)
	if err != nil {
		return hostport
	}
	return host
}

// State reports the runtime's current lifecycle state.
func (rt *Runtime) State() State {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.state
}

// Uptime reports time elapsed since Start completed, or zero if not yet
// running.
func (rt *Runtime) Uptime() time.Duration {
	rt.mu.Lock()
	started := rt.startedAt
	rt.mu.Unlock()
	if started.IsZero() {
		return 0
	}
	return time.Since(started)
}

// GatewayCount reports how many gateway listeners this runtime owns, for
// the /metrics endpoint's proxy_engine_active_gateways gauge.
func (rt *Runtime) GatewayCount() int {
	return len(rt.gateways)
}

// Subscribe returns a channel of lifecycle events, auto-unsubscribed when
// ctx is cancelled (spec.md §4.13: "published synchronously to registered
// subscribers").
func (rt *Runtime) Subscribe(ctx context.Context) (<-chan Event, func()) {
	return rt.events.Subscribe(ctx)
}

func (rt *Runtime) publish(kind EventKind, gateway string, err error) {
	rt.events.Publish(Event{Kind: kind, Gateway: gateway, Err: err})
}

// Start transitions stopped -> starting, starts the health monitor (a
// failure there aborts startup and surfaces as error), launches the
// once-a-minute affinity cleanup and a Serve goroutine for each gateway's
// listener (bound earlier, in New), then transitions to running and
// records the start time (spec.md §4.13).
func (rt *Runtime) Start(ctx context.Context) error {
	rt.mu.Lock()
	if rt.state != StateStopped {
		rt.mu.Unlock()
		return fmt.Errorf("runtime: start called from state %s", rt.state)
	}
	rt.state = StateStarting
	rt.mu.Unlock()
	rt.publish(EventStarting, "", nil)

	runCtx, cancel := context.WithCancel(context.Background())
	rt.runCtx = runCtx
	rt.runCancel = cancel

	groups := rt.allGroups()
	if err := rt.health.Start(runCtx, groups); err != nil {
		cancel()
		rt.setState(StateError)
		rt.publish(EventError, "", err)
		return fmt.Errorf("runtime: starting health monitor: %w", err)
	}

	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case now := <-ticker.C:
				for _, group := range groups {
					rt.affinity.SweepGroup(group, now)
				}
			}
		}
	}()

	g, gCtx := errgroup.WithContext(runCtx)
	rt.runGroup = g

	for _, gw := range rt.gateways {
		gw := gw
		g.Go(func() error {
			rt.publish(EventListenerStarted, gw.listener.Addr().String(), nil)
			err := gw.listener.Serve(gCtx)
			rt.publish(EventListenerStopped, gw.listener.Addr().String(), err)
			return err
		})
	}

	rt.mu.Lock()
	rt.state = StateRunning
	rt.startedAt = time.Now()
	rt.mu.Unlock()
	rt.publish(EventStarted, "", nil)

	return nil
}

// Wait blocks until every listener goroutine has returned (normal shutdown
// or an unrecovered error), returning the first non-nil error.
func (rt *Runtime) Wait() error {
	if rt.runGroup == nil {
		return nil
	}
	return rt.runGroup.Wait()
}

// Shutdown is idempotent: a second call joins the first. It stops new
// connections on every listener, waits up to timeout for in-flight
// requests to drain, and force-closes stragglers (spec.md §4.13).
func (rt *Runtime) Shutdown(ctx context.Context, reason string) error {
	var shutdownErr error
	rt.shutdownOnce.Do(func() {
		rt.setState(StateStopping)
		rt.publish(EventStopping, "", nil)
		rt.log.Info("runtime shutting down", "reason", reason)

		timeout := rt.cfg.GracefulShutdownTimeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}

		var wg sync.WaitGroup
		for _, gw := range rt.gateways {
			gw := gw
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := gw.listener.Shutdown(ctx, timeout); err != nil {
					rt.log.Warn("listener shutdown error", "addr", gw.listener.Addr().String(), "error", err)
				}
				rt.portMgr.Release(gw.cfg.Host, gw.cfg.Port)
			}()
		}
		wg.Wait()

		_ = rt.health.Stop(ctx)
		if rt.runCancel != nil {
			rt.runCancel()
		}
		if rt.runGroup != nil {
			shutdownErr = rt.runGroup.Wait()
		}

		rt.setState(StateStopped)
		rt.publish(EventStopped, "", shutdownErr)
		rt.events.Shutdown()
	})
	return shutdownErr
}

func (rt *Runtime) setState(s State) {
	rt.mu.Lock()
	rt.state = s
	rt.mu.Unlock()
}

func (rt *Runtime) allGroups() []*domain.UpstreamGroup {
	var all []*domain.UpstreamGroup
	for _, gw := range rt.gateways {
		all = append(all, gw.groups...)
	}
	return all
}

// HealthSnapshot is the payload the /health endpoint (spec.md §6) returns.
type HealthSnapshot struct {
	Status    string    `json:"status"`
	Uptime    float64   `json:"uptime"`
	Timestamp time.Time `json:"timestamp"`
}

func (rt *Runtime) HealthSnapshot() HealthSnapshot {
	status := "unhealthy"
	if rt.State() == StateRunning {
		status = "healthy"
	}
	return HealthSnapshot{Status: status, Uptime: rt.Uptime().Seconds(), Timestamp: time.Now()}
}

// HealthHandler serves spec.md §6's /health endpoint.
func (rt *Runtime) HealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		snap := rt.HealthSnapshot()
		status := http.StatusOK
		if snap.Status != "healthy" {
			status = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = fmt.Fprintf(w, `{"status":%q,"uptime":%f,"timestamp":%q}`, snap.Status, snap.Uptime, snap.Timestamp.Format(time.RFC3339))
	})
}
