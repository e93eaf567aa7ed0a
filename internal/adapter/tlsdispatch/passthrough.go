package tlsdispatch

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"

	"github.com/brightloom/gatewire/pkg/bufferpool"
)

// tunnelBufPool supplies the scratch buffers Tunnel's two io.CopyBuffer
// directions use, so a passthrough connection's lifetime doesn't pay for a
// fresh 32K allocation per direction.
var tunnelBufPool = bufferpool.New()

// errSNICaptured aborts a deliberately-failing handshake the moment the
// ClientHello's SNI has been read, so PeekServerName never actually
// completes a TLS session.
var errSNICaptured = errors.New("tlsdispatch: sni captured")

// recordingConn wraps a net.Conn and remembers every byte Read returns, so
// the bytes a throwaway tls.Server handshake consumes while inspecting the
// ClientHello can be replayed to the real tunnel afterwards.
type recordingConn struct {
	net.Conn
	buf bytes.Buffer
}

func (r *recordingConn) Read(p []byte) (int, error) {
	n, err := r.Conn.Read(p)
	if n > 0 {
		r.buf.Write(p[:n])
	}
	return n, err
}

// PeekServerName reads just enough of conn's TLS ClientHello to learn its
// SNI, without completing (or even validly continuing) the handshake. It
// returns a replacement net.Conn that replays the peeked bytes before
// falling through to conn's remaining stream, so the caller can still
// tunnel the connection byte-for-byte afterwards (spec.md §4.11:
// "passthrough... pipes bytes bidirectionally without inspection" — SNI
// routing is the one exception, and it must not consume bytes the tunnel
// needs).
func PeekServerName(ctx context.Context, conn net.Conn) (serverName string, rewound net.Conn, err error) {
	rec := &recordingConn{Conn: conn}

	cfg := &tls.Config{
		GetConfigForClient: func(hello *tls.ClientHelloInfo) (*tls.Config, error) {
			serverName = hello.ServerName
			return nil, errSNICaptured
		},
	}

	srv := tls.Server(rec, cfg)
	handshakeErr := srv.HandshakeContext(ctx)
	_ = srv.Close()

	// Any error other than our deliberate abort means the hello couldn't
	// be parsed (or the client isn't speaking TLS at all); callers fall
	// back to listener-binding-based routing in that case.
	if handshakeErr != nil && !errors.Is(handshakeErr, errSNICaptured) {
		err = handshakeErr
	}

	return serverName, &prefixedConn{Conn: conn, prefix: rec.buf.Bytes()}, err
}

// prefixedConn serves buffered bytes before falling through to Conn's own
// Read, so bytes consumed during SNI peeking aren't lost to the tunnel.
type prefixedConn struct {
	net.Conn
	prefix []byte
	pos    int
}

func (p *prefixedConn) Read(b []byte) (int, error) {
	if p.pos < len(p.prefix) {
		n := copy(b, p.prefix[p.pos:])
		p.pos += n
		return n, nil
	}
	return p.Conn.Read(b)
}

// Tunnel pipes bytes bidirectionally between client and upstream until
// either side closes or ctx is cancelled, per spec.md §4.11's passthrough
// mode. It returns once both directions have finished copying.
func Tunnel(ctx context.Context, client, upstream net.Conn) error {
	done := make(chan error, 2)

	go func() {
		buf := tunnelBufPool.Acquire(32 * 1024)
		defer tunnelBufPool.Release(buf)
		_, err := io.CopyBuffer(upstream, client, buf)
		_ = closeWrite(upstream)
		done <- err
	}()
	go func() {
		buf := tunnelBufPool.Acquire(32 * 1024)
		defer tunnelBufPool.Release(buf)
		_, err := io.CopyBuffer(client, upstream, buf)
		_ = closeWrite(client)
		done <- err
	}()

	var firstErr error
	for i := 0; i < 2; i++ {
		select {
		case err := <-done:
			if err != nil && firstErr == nil {
				firstErr = err
			}
		case <-ctx.Done():
			_ = client.Close()
			_ = upstream.Close()
			if firstErr == nil {
				firstErr = ctx.Err()
			}
		}
	}
	return firstErr
}

// closeWrite half-closes conn's write side if it supports it (*net.TCPConn
// does), so the peer sees EOF without losing bytes still in flight the
// other direction.
func closeWrite(conn net.Conn) error {
	type writeCloser interface {
		CloseWrite() error
	}
	if wc, ok := conn.(writeCloser); ok {
		return wc.CloseWrite()
	}
	return nil
}
