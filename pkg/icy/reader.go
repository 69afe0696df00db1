package icy

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

// StreamReader fetches at least n bytes of a stream body. Readers that
// receive response headers in-band strip them before returning.
type StreamReader interface {
	ReadStream(ctx context.Context, endpoint string, n int, cfg Config) ([]byte, error)
}

// errEnough stops a transfer once the collector is full. It never escapes a
// reader.
var errEnough = errors.New("enough bytes collected")

// collector accumulates written chunks until it holds want bytes, then
// refuses further writes with errEnough.
type collector struct {
	want int
	buf  []byte
}

func newCollector(want int) *collector {
	size := want
	if size > 64*1024 {
		size = 64 * 1024
	}
	return &collector{want: want, buf: make([]byte, 0, size)}
}

func (c *collector) Write(p []byte) (int, error) {
	need := c.want - len(c.buf)
	if len(p) >= need {
		c.buf = append(c.buf, p[:need]...)
		return need, errEnough
	}
	c.buf = append(c.buf, p...)
	return len(p), nil
}

var headerEnd = []byte("\r\n\r\n")

// splitBody drops everything up to and including the first blank line.
func splitBody(raw []byte) ([]byte, error) {
	i := bytes.Index(raw, headerEnd)
	if i < 0 {
		return nil, transportError(fmt.Errorf("no end of headers in %d bytes", len(raw)))
	}
	return raw[i+len(headerEnd):], nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return transportError(fmt.Errorf("unexpected status %q", resp.Status))
	}
	return nil
}

func shortRead(got, want int) error {
	if got == 0 {
		return transportError(fmt.Errorf("empty response"))
	}
	return transportError(fmt.Errorf("%w: got %d of %d bytes", errShortRead, got, want))
}
