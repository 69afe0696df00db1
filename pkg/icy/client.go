package icy

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zachfi/zkit/pkg/tracing"
)

const module = "icy"

// Client looks up stream titles. It keeps no per-lookup state and is safe
// for concurrent use; the only thing shared between lookups is the pooled
// http.Client.
type Client struct {
	logger  *slog.Logger
	http    *http.Client
	tracer  trace.Tracer
	readers map[Transport]StreamReader
}

// New creates a Client. A nil logger uses slog.Default.
func New(logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	hc := &http.Client{Transport: newTransport(true)}

	return &Client{
		logger: logger.With("module", module),
		http:   hc,
		tracer: otel.Tracer("github.com/zachfi/streamtitle/pkg/icy"),
		readers: map[Transport]StreamReader{
			TransportPooled: NewPooledReader(hc),
			TransportSocket: NewSocketReader(),
			TransportFetch:  NewFetchReader(),
		},
	}
}

var defaultClient = sync.OnceValue(func() *Client { return New(nil) })

// GetSongTitle looks up streamURL with a shared default Client.
func GetSongTitle(ctx context.Context, streamURL string, cfg Config) Result {
	return defaultClient().GetSongTitle(ctx, streamURL, cfg)
}

// GetSongTitle returns the current title of streamURL. Failures become the
// zero Result, or a descriptive one when cfg.ShowErrors is set.
func (c *Client) GetSongTitle(ctx context.Context, streamURL string, cfg Config) Result {
	title, err := c.Lookup(ctx, streamURL, cfg)
	if err != nil {
		c.logger.Debug("no title", "url", streamURL, "err", err)
	}
	return NewResult(title, err, cfg.ShowErrors)
}

// Lookup resolves the metadata interval, reads enough of the stream to cover
// one metadata block, decodes it and extracts the title. Errors match one of
// ErrIntervalUnavailable, ErrTransport, ErrEmptyMetadata or
// ErrMalformedMetadata.
func (c *Client) Lookup(ctx context.Context, streamURL string, cfg Config) (title string, err error) {
	cfg = cfg.withDefaults()

	ctx, span := c.tracer.Start(ctx, "icy.Lookup", trace.WithAttributes(
		attribute.String("url", streamURL),
		attribute.String("transport", string(cfg.Transport)),
	))
	defer func() { _ = tracing.ErrHandler(span, err, "lookup failed", nil) }()

	reader, ok := c.readers[cfg.Transport]
	if !ok {
		return "", transportError(fmt.Errorf("unknown transport %q", cfg.Transport))
	}

	endpoint := streamURL
	if cfg.ResolvePlaylist {
		endpoint, err = c.ResolvePlaylist(ctx, streamURL, cfg)
		if err != nil {
			return "", intervalError(err)
		}
		if endpoint != streamURL {
			c.logger.Debug("resolved playlist to stream URL", "url", streamURL, "stream", endpoint)
		}
	}

	interval, err := c.ResolveInterval(ctx, endpoint, cfg)
	if err != nil {
		return "", err
	}
	span.SetAttributes(attribute.Int("metaint", interval))

	body, err := reader.ReadStream(ctx, endpoint, interval+cfg.MaxMetadataLength, cfg)
	if err != nil {
		return "", err
	}

	block, err := DecodeBlock(body, interval)
	if err != nil {
		return "", err
	}

	title, ok = ExtractTitle(string(block))
	if !ok {
		return "", ErrMalformedMetadata
	}

	return title, nil
}
