package icy

import (
	"context"
	"io"
	"net/http"

	"github.com/pkg/errors"
)

// PooledReader streams the body through a shared http.Client and aborts the
// transfer as soon as enough bytes have been collected.
type PooledReader struct {
	client *http.Client
}

func NewPooledReader(client *http.Client) *PooledReader {
	return &PooledReader{client: client}
}

func (r *PooledReader) ReadStream(ctx context.Context, endpoint string, n int, cfg Config) ([]byte, error) {
	cfg = cfg.withDefaults()

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	req, err := newStreamRequest(ctx, endpoint, cfg)
	if err != nil {
		return nil, transportError(err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, transportError(err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	c := newCollector(n)
	_, err = io.Copy(c, resp.Body)
	switch {
	case errors.Is(err, errEnough):
		return c.buf, nil
	case err != nil:
		return nil, transportError(err)
	default:
		return nil, shortRead(len(c.buf), n)
	}
}
