package icy

import (
	"context"
	"io"
	"net/http"
)

// FetchReader reads the first n bytes of the body with a throwaway client.
// Nothing is pooled between calls.
type FetchReader struct{}

func NewFetchReader() *FetchReader {
	return &FetchReader{}
}

func (r *FetchReader) ReadStream(ctx context.Context, endpoint string, n int, cfg Config) ([]byte, error) {
	cfg = cfg.withDefaults()

	client := &http.Client{Transport: newTransport(false), Timeout: cfg.Timeout}
	defer client.CloseIdleConnections()

	req, err := newStreamRequest(ctx, endpoint, cfg)
	if err != nil {
		return nil, transportError(err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, transportError(err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	buf, err := io.ReadAll(io.LimitReader(resp.Body, int64(n)))
	if err != nil {
		return nil, transportError(err)
	}
	if len(buf) < n {
		return nil, shortRead(len(buf), n)
	}

	return buf, nil
}
