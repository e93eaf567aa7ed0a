package ports

import (
	"context"
	"net"

	"github.com/brightloom/gatewire/internal/core/domain"
)

// UpstreamTransport is the C4 port: it writes one request onto a
// connection, reads back a response per the HTTP codec (C2), and reports
// whether the connection remains reusable.
type UpstreamTransport interface {
	// Exchange sends req over conn and returns the parsed response. The
	// returned bool reports whether conn can be returned to the pool
	// (false for Connection: close, HTTP/1.0 without keep-alive, or any
	// framing error).
	Exchange(ctx context.Context, conn net.Conn, req *domain.Request) (*domain.Response, bool, error)
}

// HTTPCodec is the C2 port. A codec is stateful per stream (spec.md
// §4.2): NewStream wraps one net.Conn once, and the returned Stream is
// reused across every request/response pair a keep-alive connection
// carries, rather than re-buffering on every call.
type HTTPCodec interface {
	NewStream(conn net.Conn) Stream
}

// Stream is one codec instance bound to a single connection.
type Stream interface {
	WriteRequest(req *domain.Request) error
	ReadResponse(req *domain.Request) (*domain.Response, error)
	WriteResponse(resp *domain.Response) error
	ReadRequest() (*domain.Request, error)
}
