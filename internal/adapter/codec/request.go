package codec

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/brightloom/gatewire/internal/core/domain"
)

// ReadRequest parses a request line and header block, then determines
// body framing from Content-Length / Transfer-Encoding (spec.md §4.2).
// The returned Request's Body is lazily backed by the stream's reader;
// callers that forward the request must read or discard it before
// issuing another ReadRequest on the same stream.
func (s *stream) ReadRequest() (*domain.Request, error) {
	line, err := readCRLFLine(s.r)
	if err != nil {
		return nil, newGatewayError(domain.KindMalformedRequest, "", fmt.Errorf("reading request line: %w", err))
	}
	method, target, proto, err := parseRequestLine(line)
	if err != nil {
		return nil, err
	}

	u, err := url.ParseRequestURI(target)
	if err != nil {
		return nil, newGatewayError(domain.KindMalformedRequest, "invalid request target: "+target, nil)
	}

	req := domain.NewRequest(method, u)
	req.Proto = proto
	if s.conn != nil {
		req.RemoteAddr = s.conn.RemoteAddr().String()
	}

	if err := readHeaderBlock(s.r, req.Headers, s.maxHeaderBytes); err != nil {
		return nil, err
	}

	kind, length, err := determineBodyFraming(req.Headers)
	if err != nil {
		return nil, newGatewayError(domain.KindMalformedRequest, "", err)
	}
	req.BodyKind = kind
	req.BodyLength = length
	req.Body = newBodyReader(s.r, kind, length)

	return req, nil
}

// WriteRequest serialises a request line, headers, and body onto the
// stream, choosing chunked or content-length framing to match
// req.BodyKind.
func (s *stream) WriteRequest(req *domain.Request) error {
	target := req.URL.RequestURI()
	if target == "" {
		target = "/"
	}
	proto := req.Proto
	if proto == "" {
		proto = "HTTP/1.1"
	}
	if _, err := fmt.Fprintf(s.w, "%s %s %s\r\n", req.Method, target, proto); err != nil {
		return err
	}
	if err := writeHeaderBlock(s.w, req.Headers); err != nil {
		return err
	}
	if err := writeBody(s.w, req.Body, req.BodyKind); err != nil {
		return err
	}
	return s.w.Flush()
}

func parseRequestLine(line string) (domain.Method, string, string, error) {
	parts := strings.SplitN(line, " ", 3)
	if len(parts) != 3 {
		return "", "", "", newGatewayError(domain.KindMalformedRequest, "malformed request line: "+line, nil)
	}
	return domain.Method(parts[0]), parts[1], parts[2], nil
}
