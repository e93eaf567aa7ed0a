package codec

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/brightloom/gatewire/internal/core/domain"
)

// readHeaderBlock reads lines up to and including the blank line that
// terminates an HTTP header block, appending each "Name: value" pair to
// h. Obs-folded continuation lines (RFC 7230 §3.2.4) are rejected rather
// than unfolded, per spec.md §4.2.
func readHeaderBlock(r *bufio.Reader, h *domain.Header, maxBytes int) error {
	total := 0
	for {
		line, err := readCRLFLine(r)
		if err != nil {
			return newGatewayError(domain.KindMalformedRequest, "", fmt.Errorf("reading headers: %w", err))
		}
		total += len(line) + 2
		if total > maxBytes {
			return newGatewayError(domain.KindMalformedRequest, "header block exceeds maximum size", nil)
		}
		if line == "" {
			return nil
		}
		if line[0] == ' ' || line[0] == '\t' {
			return newGatewayError(domain.KindMalformedRequest, "obs-folded header continuation is not supported", nil)
		}

		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return newGatewayError(domain.KindMalformedRequest, "malformed header line: "+line, nil)
		}
		h.Add(strings.TrimSpace(name), strings.TrimSpace(value))
	}
}

// writeHeaderBlock writes each header in h as "Name: value\r\n", in
// insertion order, followed by the terminating blank line.
func writeHeaderBlock(w *bufio.Writer, h *domain.Header) error {
	for _, key := range h.Keys() {
		for _, v := range h.Values(key) {
			if _, err := fmt.Fprintf(w, "%s: %s\r\n", key, v); err != nil {
				return err
			}
		}
	}
	_, err := w.WriteString("\r\n")
	return err
}

// readCRLFLine reads one line terminated by CRLF and strips the
// terminator, per spec.md §4.2 (bare LF is tolerated for robustness,
// matching the teacher's leniency elsewhere in parsing code).
func readCRLFLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return "", err
	}
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")
	return line, nil
}
