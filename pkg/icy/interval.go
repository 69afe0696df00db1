package icy

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// ResolveInterval probes endpoint for its icy-metaint response header and
// returns the number of audio bytes before each metadata block. Only the
// headers are inspected; the body is closed unread. A missing, unparsable or
// zero value is ErrIntervalUnavailable.
func (c *Client) ResolveInterval(ctx context.Context, endpoint string, cfg Config) (int, error) {
	cfg = cfg.withDefaults()

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	req, err := newStreamRequest(ctx, endpoint, cfg)
	if err != nil {
		return 0, intervalError(err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, intervalError(err)
	}
	defer resp.Body.Close()

	for k, v := range resp.Header {
		c.logger.Debug("HTTP header", "key", k, "value", v[0])
	}

	return parseMetaint(resp.Header)
}

func parseMetaint(h http.Header) (int, error) {
	raw := strings.TrimSpace(h.Get(metaintHeader))
	if raw == "" {
		return 0, ErrIntervalUnavailable
	}

	n, err := strconv.ParseUint(raw, 10, 31)
	if err != nil {
		return 0, intervalError(fmt.Errorf("cannot parse metaint: %w", err))
	}
	if n == 0 {
		return 0, intervalError(fmt.Errorf("metaint is zero"))
	}

	return int(n), nil
}
