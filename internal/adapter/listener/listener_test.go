package listener

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightloom/gatewire/internal/adapter/codec"
	"github.com/brightloom/gatewire/internal/adapter/middleware"
	"github.com/brightloom/gatewire/internal/core/domain"
	"github.com/brightloom/gatewire/internal/core/ports"
)

type fakeProxy struct {
	status int
	body   string
	err    error
}

func (f *fakeProxy) Serve(context.Context, *domain.Request) (*domain.Response, ports.RequestTiming, error) {
	if f.err != nil {
		return nil, ports.RequestTiming{}, f.err
	}
	return domain.NewPlainTextResponse(f.status, "OK", f.body), ports.RequestTiming{}, nil
}
func (f *fakeProxy) Stats(context.Context) ports.ProxyStats { return ports.ProxyStats{} }

func newTestListener(t *testing.T, proxy ports.ReverseProxy, keepAlive bool) *Listener {
	t.Helper()
	l, err := New(Config{
		Host:             "127.0.0.1",
		Port:             0,
		Codec:            codec.New(),
		Chain:            middleware.NewChain(),
		Proxy:            proxy,
		KeepAlive:        keepAlive,
		KeepAliveTimeout: time.Second,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = l.Serve(ctx) }()
	t.Cleanup(cancel)
	return l
}

func sendRequest(t *testing.T, addr string) (status int, body string, conn net.Conn) {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)

	_, err = conn.Write([]byte("GET /v1/ping HTTP/1.1\r\nHost: example.com\r\n\r\n"))
	require.NoError(t, err)

	r := bufio.NewReader(conn)
	statusLine, err := r.ReadString('\n')
	require.NoError(t, err)

	var proto, reason string
	_, err = fmt.Sscanf(statusLine, "%s %d %s", &proto, &status, &reason)
	require.NoError(t, err)

	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		if line == "\r\n" {
			break
		}
	}
	buf := make([]byte, 64)
	n, _ := r.Read(buf)
	body = string(buf[:n])
	return status, body, conn
}

func TestListener_RespondsToSimpleRequest(t *testing.T) {
	proxy := &fakeProxy{status: 200, body: "pong"}
	l := newTestListener(t, proxy, false)

	status, body, conn := sendRequest(t, l.Addr().String())
	defer conn.Close()

	assert.Equal(t, 200, status)
	assert.Equal(t, "pong", body)
}

func TestListener_MaxConnectionsRejectsBeyondCap(t *testing.T) {
	proxy := &fakeProxy{status: 200, body: "ok"}
	l, err := New(Config{
		Host:           "127.0.0.1",
		Port:           0,
		Codec:          codec.New(),
		Chain:          middleware.NewChain(),
		Proxy:          proxy,
		MaxConnections: 1,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = l.Serve(ctx) }()

	held, err := net.Dial("tcp", l.Addr().String())
	require.NoError(t, err)
	defer held.Close()

	// Give the accept loop a moment to register the first connection.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if l.Stats().Active >= 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.GreaterOrEqual(t, l.Stats().Active, int64(1))

	second, err := net.Dial("tcp", l.Addr().String())
	require.NoError(t, err)
	defer second.Close()

	// The listener should close the second connection without ever
	// writing a response.
	_ = second.SetReadDeadline(time.Now().Add(time.Second))
	buf := make([]byte, 1)
	_, readErr := second.Read(buf)
	assert.Error(t, readErr, "rejected connection should be closed, producing EOF")

	deadline = time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if l.Stats().Rejected >= 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	assert.GreaterOrEqual(t, l.Stats().Rejected, int64(1))
}

func TestListener_ErrorFromProxyBecomesGatewayErrorStatus(t *testing.T) {
	proxy := &fakeProxy{err: domain.NewGatewayError(domain.KindRouteNotFound, "req-1", "GET", "/missing", "", stubErr{})}
	l := newTestListener(t, proxy, false)

	status, _, conn := sendRequest(t, l.Addr().String())
	defer conn.Close()

	assert.Equal(t, 404, status)
}

type stubErr struct{}

func (stubErr) Error() string { return "no route" }

func TestListener_ShutdownDrainsThenReturns(t *testing.T) {
	proxy := &fakeProxy{status: 200, body: "ok"}
	l, err := New(Config{
		Host:  "127.0.0.1",
		Port:  0,
		Codec: codec.New(),
		Chain: middleware.NewChain(),
		Proxy: proxy,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = l.Serve(ctx) }()

	shutdownErr := l.Shutdown(context.Background(), 200*time.Millisecond)
	assert.NoError(t, shutdownErr)
}
