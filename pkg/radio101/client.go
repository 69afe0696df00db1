// Package radio101 reads the on-air track of a 101.ru channel from the
// aggregator's JSON API instead of the stream itself.
package radio101

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zachfi/zkit/pkg/tracing"

	"github.com/zachfi/streamtitle/pkg/icy"
)

const (
	// DefaultBaseURL is where the getTrackOnAir endpoint lives.
	DefaultBaseURL = "https://101.ru/api/channel/getTrackOnAir/"

	maxResponseSize = 256 * 1024
)

var (
	ErrChannel = errors.New("failed to get the radio channel number of the radio station")
	ErrNoTrack = errors.New("no information about the track on air")
	ErrJSON    = errors.New("error loading JSON")
)

type trackOnAir struct {
	Status    int `json:"status"`
	ErrorCode int `json:"errorCode"`
	Result    struct {
		Short struct {
			Title string `json:"title"`
		} `json:"short"`
	} `json:"result"`
}

type Client struct {
	logger  *slog.Logger
	http    *http.Client
	tracer  trace.Tracer
	baseURL string
}

// New creates a Client. An empty baseURL uses DefaultBaseURL.
func New(logger *slog.Logger, baseURL string) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	return &Client{
		logger:  logger.With("module", "radio101"),
		http:    &http.Client{},
		tracer:  otel.Tracer("github.com/zachfi/streamtitle/pkg/radio101"),
		baseURL: baseURL,
	}
}

// APIURL maps a channel URL, whose last path segment is the channel number,
// to its getTrackOnAir endpoint. The segment is passed through as is; only an
// empty or "0" segment is rejected.
func (c *Client) APIURL(streamURL string) (string, error) {
	u, err := url.Parse(streamURL)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrChannel, err)
	}

	channel := u.Path[strings.LastIndex(u.Path, "/")+1:]
	if channel == "" || channel == "0" {
		return "", ErrChannel
	}

	return c.baseURL + url.PathEscape(channel) + "/channel/?dataFormat=json", nil
}

// GetSongTitle formats Lookup the same way icy.Client.GetSongTitle does.
func (c *Client) GetSongTitle(ctx context.Context, streamURL string, cfg icy.Config) icy.Result {
	title, err := c.Lookup(ctx, streamURL, cfg)
	if err != nil {
		c.logger.Debug("no title", "url", streamURL, "err", err)
	}
	return icy.NewResult(title, err, cfg.ShowErrors)
}

// Lookup returns the short title of the track currently on air.
func (c *Client) Lookup(ctx context.Context, streamURL string, cfg icy.Config) (title string, err error) {
	ctx, span := c.tracer.Start(ctx, "radio101.Lookup", trace.WithAttributes(attribute.String("url", streamURL)))
	defer func() { _ = tracing.ErrHandler(span, err, "lookup failed", nil) }()

	api, err := c.APIURL(streamURL)
	if err != nil {
		return "", err
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = icy.DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, api, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w", icy.ErrTransport, err)
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = icy.DefaultUserAgent
	}
	req.Header.Set("User-Agent", ua)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", icy.ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", fmt.Errorf("%w: %w", icy.ErrTransport, err)
	}

	return parseTrack(body)
}

func parseTrack(body []byte) (string, error) {
	var t trackOnAir
	if err := json.Unmarshal(body, &t); err != nil {
		return "", fmt.Errorf("%w: %w", ErrJSON, err)
	}

	if t.Status != 1 || t.ErrorCode != 0 {
		return "", ErrNoTrack
	}

	return t.Result.Short.Title, nil
}
