package codec

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// chunkedReader decodes an HTTP/1.1 chunked body: a sequence of
// size-prefixed frames terminated by a zero-size chunk and an optional
// trailer header block (spec.md §4.2).
type chunkedReader struct {
	r       *bufio.Reader
	pending int64
	done    bool
	Trailer []string
}

func (c *chunkedReader) Read(p []byte) (int, error) {
	if c.done {
		return 0, io.EOF
	}
	if c.pending == 0 {
		size, err := c.readChunkSize()
		if err != nil {
			return 0, err
		}
		if size == 0 {
			if err := c.readTrailer(); err != nil {
				return 0, err
			}
			c.done = true
			return 0, io.EOF
		}
		c.pending = size
	}

	want := int64(len(p))
	if want > c.pending {
		want = c.pending
	}
	n, err := c.r.Read(p[:want])
	c.pending -= int64(n)
	if err != nil {
		return n, err
	}
	if c.pending == 0 {
		if _, err := readCRLFLine(c.r); err != nil {
			return n, fmt.Errorf("reading chunk terminator: %w", err)
		}
	}
	return n, nil
}

func (c *chunkedReader) Close() error { return nil }

func (c *chunkedReader) readChunkSize() (int64, error) {
	line, err := readCRLFLine(c.r)
	if err != nil {
		return 0, fmt.Errorf("reading chunk size: %w", err)
	}
	if i := strings.IndexByte(line, ';'); i >= 0 {
		line = line[:i] // chunk extensions are ignored, not parsed
	}
	var size int64
	if _, err := fmt.Sscanf(line, "%x", &size); err != nil {
		return 0, fmt.Errorf("invalid chunk size %q: %w", line, err)
	}
	return size, nil
}

func (c *chunkedReader) readTrailer() error {
	for {
		line, err := readCRLFLine(c.r)
		if err != nil {
			return fmt.Errorf("reading trailer: %w", err)
		}
		if line == "" {
			return nil
		}
		c.Trailer = append(c.Trailer, line)
	}
}

// writeChunked encodes body as a chunked stream: each Read from body
// becomes one size-prefixed frame, terminated by a zero chunk with no
// trailers.
func writeChunked(w *bufio.Writer, body io.Reader) error {
	buf := copyBufPool.Acquire(32 * 1024)
	defer copyBufPool.Release(buf)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			if _, werr := fmt.Fprintf(w, "%x\r\n", n); werr != nil {
				return werr
			}
			if _, werr := w.Write(buf[:n]); werr != nil {
				return werr
			}
			if _, werr := w.WriteString("\r\n"); werr != nil {
				return werr
			}
		}
		if err == io.EOF {
			_, werr := w.WriteString("0\r\n\r\n")
			return werr
		}
		if err != nil {
			return err
		}
	}
}
