// Package listener implements the C12 listener (spec.md §4.12): binds one
// (host, port), and for every accepted connection runs the codec/middleware
// chain/proxy pipeline to completion, looping on the same stream for
// keep-alive until the peer closes or the stream idles out.
package listener

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brightloom/gatewire/internal/core/domain"
	"github.com/brightloom/gatewire/internal/core/ports"
)

// Config bundles one gateway's listener settings and collaborators.
type Config struct {
	Host string
	Port int

	Codec   ports.HTTPCodec
	Chain   ports.Chain
	Proxy   ports.ReverseProxy
	Logger  *slog.Logger

	MaxConnections   int
	KeepAlive        bool
	KeepAliveTimeout time.Duration
	ConnectionTimeout time.Duration

	// WrapListener applies the gateway's TLS mode (tlsdispatch.Dispatcher
	// .WrapListener), or returns its argument unchanged for plain TCP.
	WrapListener func(net.Listener) net.Listener
}

// Listener is the shipped C12 component: it owns the bound socket and the
// accept loop, and enforces the max-in-flight-connections cap (spec.md
// §4.12: "the cap counts in-flight streams").
type Listener struct {
	cfg    Config
	ln     net.Listener
	log    *slog.Logger
	next   ports.Next

	active   int64
	accepted int64
	rejected int64

	connMu sync.Mutex
	conns  map[net.Conn]struct{}

	closing atomic.Bool
	wg      sync.WaitGroup
}

// New binds the listener's socket and wraps it per the gateway's TLS mode.
func New(cfg Config) (*Listener, error) {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	raw, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, domain.NewGatewayError(domain.KindBindError, "", "", "", addr, err)
	}

	ln := raw
	if cfg.WrapListener != nil {
		ln = cfg.WrapListener(raw)
	}

	l := &Listener{
		cfg:   cfg,
		ln:    ln,
		log:   log,
		conns: make(map[net.Conn]struct{}),
	}
	l.next = l.cfg.Chain.Then(l.serveOne)
	return l, nil
}

// Addr returns the bound address.
func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

// Serve runs the accept loop until ctx is cancelled or the listener is
// closed. Each accepted connection runs in its own goroutine (spec.md
// §4.12: "a new independent task handles that client stream to completion").
func (l *Listener) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = l.ln.Close()
	}()

	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if l.closing.Load() {
				l.wg.Wait()
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				l.wg.Wait()
				return nil
			}
			return err
		}

		if l.cfg.MaxConnections > 0 && atomic.LoadInt64(&l.active) >= int64(l.cfg.MaxConnections) {
			atomic.AddInt64(&l.rejected, 1)
			_ = conn.Close()
			continue
		}

		atomic.AddInt64(&l.accepted, 1)
		atomic.AddInt64(&l.active, 1)
		l.trackConn(conn)
		l.wg.Add(1)
		go l.handleConn(conn)
	}
}

func (l *Listener) trackConn(conn net.Conn) {
	l.connMu.Lock()
	l.conns[conn] = struct{}{}
	l.connMu.Unlock()
}

func (l *Listener) untrackConn(conn net.Conn) {
	l.connMu.Lock()
	delete(l.conns, conn)
	l.connMu.Unlock()
}

// handleConn loops the codec over one connection: read a request, run it
// through the middleware chain and proxy, write the response, and repeat
// until the peer closes, a framing error occurs, or the idle timeout fires
// (spec.md §4.12).
func (l *Listener) handleConn(conn net.Conn) {
	defer l.wg.Done()
	defer func() {
		atomic.AddInt64(&l.active, -1)
		l.untrackConn(conn)
		_ = conn.Close()
	}()

	stream := l.cfg.Codec.NewStream(conn)
	idleTimeout := l.cfg.KeepAliveTimeout
	if idleTimeout <= 0 {
		idleTimeout = 60 * time.Second
	}

	for {
		if idleTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(idleTimeout))
		}

		req, err := stream.ReadRequest()
		if err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Time{})

		req.RemoteAddr = conn.RemoteAddr().String()

		ctx := context.Background()
		cancel := func() {}
		if l.cfg.ConnectionTimeout > 0 {
			ctx, cancel = context.WithTimeout(ctx, l.cfg.ConnectionTimeout)
		}

		resp, err := l.next(ctx, req)
		cancel()
		if err != nil {
			resp = errorResponse(err)
		}

		if writeErr := stream.WriteResponse(resp); writeErr != nil {
			l.log.Debug("write response failed", "error", writeErr)
			return
		}

		if !l.cfg.KeepAlive || wantsClose(req, resp) {
			return
		}
	}
}

// serveOne is the Next the middleware chain terminates into: it hands the
// request to the reverse-proxy orchestrator.
func (l *Listener) serveOne(ctx context.Context, req *domain.Request) (*domain.Response, error) {
	resp, _, err := l.cfg.Proxy.Serve(ctx, req)
	return resp, err
}

func errorResponse(err error) *domain.Response {
	var gwErr *domain.GatewayError
	if errors.As(err, &gwErr) {
		return domain.NewPlainTextResponse(gwErr.Kind.StatusCode(), reasonFor(gwErr.Kind.StatusCode()), gwErr.Error())
	}
	return domain.NewPlainTextResponse(500, "Internal Server Error", err.Error())
}

func reasonFor(status int) string {
	switch status {
	case 400:
		return "Bad Request"
	case 404:
		return "Not Found"
	case 500:
		return "Internal Server Error"
	case 502:
		return "Bad Gateway"
	case 503:
		return "Service Unavailable"
	case 504:
		return "Gateway Timeout"
	default:
		return "Error"
	}
}

func wantsClose(req *domain.Request, resp *domain.Response) bool {
	if strings.EqualFold(req.Headers.Get("Connection"), "close") {
		return true
	}
	if resp != nil && strings.EqualFold(resp.Headers.Get("Connection"), "close") {
		return true
	}
	return false
}

// Shutdown stops accepting new connections and waits for in-flight streams
// to finish, up to timeout; remaining connections are then force-closed
// (spec.md §4.13's graceful-shutdown contract, executed per listener).
func (l *Listener) Shutdown(ctx context.Context, timeout time.Duration) error {
	l.closing.Store(true)
	_ = l.ln.Close()

	drained := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		return nil
	case <-time.After(timeout):
		l.forceCloseAll()
		return nil
	case <-ctx.Done():
		l.forceCloseAll()
		return ctx.Err()
	}
}

func (l *Listener) forceCloseAll() {
	l.connMu.Lock()
	defer l.connMu.Unlock()
	for conn := range l.conns {
		_ = conn.Close()
	}
}

// Stats reports accept/reject counters for the /health and /metrics
// endpoints.
type Stats struct {
	Active   int64
	Accepted int64
	Rejected int64
}

func (l *Listener) Stats() Stats {
	return Stats{
		Active:   atomic.LoadInt64(&l.active),
		Accepted: atomic.LoadInt64(&l.accepted),
		Rejected: atomic.LoadInt64(&l.rejected),
	}
}
