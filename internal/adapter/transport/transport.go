// Package transport implements the C4 upstream transport: it drives the
// HTTP codec (C2) over a pooled connection (C3) to exchange one request
// for one response, independent of whether the connection is plain TCP or
// a completed TLS stream (spec.md §4.4).
package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"time"

	"github.com/brightloom/gatewire/internal/core/domain"
	"github.com/brightloom/gatewire/internal/core/ports"
)

// Transport is the default ports.UpstreamTransport. It is stream-agnostic:
// the same Exchange algorithm drives a plain net.Conn or a *tls.Conn,
// since both satisfy net.Conn once the TLS handshake has completed.
type Transport struct {
	codec ports.HTTPCodec
}

var _ ports.UpstreamTransport = (*Transport)(nil)

// New builds a Transport bound to a codec.
func New(codec ports.HTTPCodec) *Transport {
	return &Transport{codec: codec}
}

// Exchange writes req onto conn and reads back the response. The returned
// bool reports whether conn remains usable for another request on the same
// stream; it is false whenever the response asked for the connection to
// close, or the exchange itself failed.
func (t *Transport) Exchange(ctx context.Context, conn net.Conn, req *domain.Request) (*domain.Response, bool, error) {
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
		defer conn.SetDeadline(time.Time{})
	}

	stream := t.codec.NewStream(conn)

	if err := stream.WriteRequest(req); err != nil {
		if isResetLike(err) {
			return nil, false, &resetBeforeReadError{cause: err}
		}
		return nil, false, err
	}

	resp, err := stream.ReadResponse(req)
	if err != nil {
		if isResetLike(err) {
			return nil, false, &resetBeforeReadError{cause: err}
		}
		return nil, false, err
	}

	return resp, keepAlive(req, resp), nil
}

// keepAlive decides whether the connection may be reused per HTTP/1.1
// default-keep-alive semantics: either side may opt out with an explicit
// Connection: close header, and an HTTP/1.0 peer must opt in.
func keepAlive(req *domain.Request, resp *domain.Response) bool {
	if headerTokenEquals(req.Headers, "Connection", "close") ||
		headerTokenEquals(resp.Headers, "Connection", "close") {
		return false
	}
	if req.Proto == "HTTP/1.0" && !headerTokenEquals(req.Headers, "Connection", "keep-alive") {
		return false
	}
	return true
}

func headerTokenEquals(h *domain.Header, key, token string) bool {
	return strings.EqualFold(strings.TrimSpace(h.Get(key)), token)
}

// resetBeforeReadError marks a connection-level failure on the write or
// read side of an exchange where no response bytes were successfully
// parsed — the only case spec.md §4.4 allows a retry of an idempotent
// request against a different upstream.
type resetBeforeReadError struct {
	cause error
}

func (e *resetBeforeReadError) Error() string {
	return "connection reset before response: " + e.cause.Error()
}
func (e *resetBeforeReadError) Unwrap() error { return e.cause }

// RetriableBeforeAnyBytes reports whether err represents a connection
// failure that occurred before any response bytes were read, making it
// eligible for retry on an idempotent request (spec.md §4.4, §4.9).
func RetriableBeforeAnyBytes(err error) bool {
	var reset *resetBeforeReadError
	return errors.As(err, &reset)
}

// isResetLike reports whether err looks like a peer-initiated connection
// reset rather than an application-level framing error: an unexpected EOF,
// a plain EOF on read, a write onto a closed pipe, or any non-timeout
// net.Error.
func isResetLike(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.ErrClosedPipe) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return !netErr.Timeout()
	}
	return false
}
