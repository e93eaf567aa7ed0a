// Package codec implements the HTTP/1.1 wire format (spec.md §4.2):
// request/status lines, case-insensitive headers, and Content-Length /
// chunked body framing, read and written directly over a net.Conn.
package codec

import (
	"bufio"
	"errors"
	"net"

	"github.com/brightloom/gatewire/internal/core/domain"
	"github.com/brightloom/gatewire/internal/core/ports"
)

const defaultMaxHeaderBytes = 64 * 1024

// HTTP1Codec constructs Streams bound to one connection each. It holds no
// per-connection state itself, so a single instance serves every
// connection the transport or listener opens.
type HTTP1Codec struct {
	maxHeaderBytes int
}

// New returns a codec with the default header-size cap.
func New() *HTTP1Codec {
	return &HTTP1Codec{maxHeaderBytes: defaultMaxHeaderBytes}
}

// NewWithHeaderCap overrides the maximum bytes a header block may occupy
// before ReadRequest fails with KindMalformedRequest, or ReadResponse with
// KindMalformedResponse.
func NewWithHeaderCap(maxHeaderBytes int) *HTTP1Codec {
	return &HTTP1Codec{maxHeaderBytes: maxHeaderBytes}
}

// NewStream wraps conn in a buffered reader/writer pair that persists for
// every subsequent call on the returned Stream, so a keep-alive
// connection reuses the same parser state across requests.
func (c *HTTP1Codec) NewStream(conn net.Conn) ports.Stream {
	return &stream{
		conn:           conn,
		r:              bufio.NewReader(conn),
		w:              bufio.NewWriter(conn),
		maxHeaderBytes: c.maxHeaderBytes,
	}
}

type stream struct {
	conn           net.Conn
	r              *bufio.Reader
	w              *bufio.Writer
	maxHeaderBytes int
}

func newGatewayError(kind domain.ErrorKind, msg string, cause error) *domain.GatewayError {
	if cause == nil {
		cause = errors.New(msg)
	}
	return domain.NewGatewayError(kind, "", "", "", "", cause)
}
