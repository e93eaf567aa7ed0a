package codec

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/brightloom/gatewire/internal/core/domain"
	"github.com/brightloom/gatewire/pkg/bufferpool"
)

// copyBufPool supplies the scratch buffers writeBody's Content-Length path
// hands to io.CopyBuffer, so a codec doesn't pay for a fresh 32K allocation
// per response body.
var copyBufPool = bufferpool.New()

// determineBodyFraming implements spec.md §4.2's framing rule: exactly
// one of Content-Length or Transfer-Encoding: chunked applies; both
// present is a malformed-message error.
func determineBodyFraming(h *domain.Header) (domain.BodyKind, int64, error) {
	te := h.Get("Transfer-Encoding")
	cl := h.Get("Content-Length")
	chunked := strings.Contains(strings.ToLower(te), "chunked")

	switch {
	case chunked && cl != "":
		return 0, 0, fmt.Errorf("both content-length and chunked transfer-encoding present")
	case chunked:
		return domain.BodyChunked, -1, nil
	case cl != "":
		length, err := strconv.ParseInt(strings.TrimSpace(cl), 10, 64)
		if err != nil || length < 0 {
			return 0, 0, fmt.Errorf("invalid content-length %q", cl)
		}
		return domain.BodyContentLength, length, nil
	default:
		return domain.BodyNone, 0, nil
	}
}

func newBodyReader(r *bufio.Reader, kind domain.BodyKind, length int64) io.ReadCloser {
	switch kind {
	case domain.BodyChunked:
		return &chunkedReader{r: r}
	case domain.BodyContentLength:
		return &limitedBody{r: io.LimitReader(r, length)}
	default:
		return emptyBody{}
	}
}

func writeBody(w *bufio.Writer, body io.ReadCloser, kind domain.BodyKind) error {
	if body == nil {
		return nil
	}
	defer body.Close()

	switch kind {
	case domain.BodyChunked:
		return writeChunked(w, body)
	case domain.BodyContentLength:
		buf := copyBufPool.Acquire(32 * 1024)
		defer copyBufPool.Release(buf)
		_, err := io.CopyBuffer(w, body, buf)
		return err
	default:
		return nil
	}
}

type emptyBody struct{}

func (emptyBody) Read(p []byte) (int, error) { return 0, io.EOF }
func (emptyBody) Close() error               { return nil }

type limitedBody struct {
	r io.Reader
}

func (b *limitedBody) Read(p []byte) (int, error) { return b.r.Read(p) }
func (b *limitedBody) Close() error                { return nil }
