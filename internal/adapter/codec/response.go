package codec

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/brightloom/gatewire/internal/core/domain"
)

// ReadResponse parses a status line and header block from the stream,
// then frames the body per Content-Length / Transfer-Encoding. req is
// consulted only to detect a HEAD request, whose response never carries
// a body regardless of framing headers.
func (s *stream) ReadResponse(req *domain.Request) (*domain.Response, error) {
	line, err := readCRLFLine(s.r)
	if err != nil {
		return nil, newGatewayError(domain.KindMalformedResponse, "", fmt.Errorf("reading status line: %w", err))
	}
	proto, status, reason, err := parseStatusLine(line)
	if err != nil {
		return nil, err
	}

	resp := domain.NewResponse(status, reason)
	resp.Proto = proto

	if err := readHeaderBlock(s.r, resp.Headers, s.maxHeaderBytes); err != nil {
		return nil, newGatewayError(domain.KindMalformedResponse, "", err)
	}

	if req != nil && req.Method == domain.MethodHEAD || noBodyStatus(status) {
		resp.BodyKind = domain.BodyNone
		resp.Body = emptyBody{}
		return resp, nil
	}

	kind, length, err := determineBodyFraming(resp.Headers)
	if err != nil {
		return nil, newGatewayError(domain.KindMalformedResponse, "", err)
	}
	resp.BodyKind = kind
	resp.BodyLength = length
	resp.Body = newBodyReader(s.r, kind, length)

	return resp, nil
}

// WriteResponse serialises a status line, headers, and body onto the
// stream.
func (s *stream) WriteResponse(resp *domain.Response) error {
	proto := resp.Proto
	if proto == "" {
		proto = "HTTP/1.1"
	}
	if _, err := fmt.Fprintf(s.w, "%s %d %s\r\n", proto, resp.StatusCode, resp.ReasonPhrase); err != nil {
		return err
	}
	if err := writeHeaderBlock(s.w, resp.Headers); err != nil {
		return err
	}
	if err := writeBody(s.w, resp.Body, resp.BodyKind); err != nil {
		return err
	}
	return s.w.Flush()
}

func parseStatusLine(line string) (proto string, status int, reason string, err error) {
	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 2 {
		return "", 0, "", newGatewayError(domain.KindMalformedResponse, "malformed status line: "+line, nil)
	}
	status, convErr := strconv.Atoi(parts[1])
	if convErr != nil {
		return "", 0, "", newGatewayError(domain.KindMalformedResponse, "invalid status code: "+parts[1], nil)
	}
	reason = ""
	if len(parts) == 3 {
		reason = parts[2]
	}
	return parts[0], status, reason, nil
}

func noBodyStatus(status int) bool {
	return (status >= 100 && status < 200) || status == 204 || status == 304
}
