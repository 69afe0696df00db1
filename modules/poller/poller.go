package poller

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/grafana/dskit/services"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/zachfi/streamtitle/pkg/icy"
	"github.com/zachfi/streamtitle/pkg/radio101"
)

const module = "poller"

// titleSource is satisfied by icy.Client and radio101.Client.
type titleSource interface {
	Lookup(ctx context.Context, streamURL string, cfg icy.Config) (string, error)
}

// Status is the latest known state of one station.
type Status struct {
	Station string    `json:"station"`
	URL     string    `json:"url"`
	Title   string    `json:"title"`
	OK      bool      `json:"ok"`
	Error   string    `json:"error,omitempty"`
	Updated time.Time `json:"updated"`
}

// Poller periodically looks up the title of every configured station. Each
// lookup is independent; the poller only remembers the last title seen so it
// can report changes.
type Poller struct {
	services.Service
	cfg     *Config
	logger  *slog.Logger
	metrics *metrics
	sources map[Source]titleSource

	stations []Station

	mtx    sync.RWMutex
	status map[string]Status
}

// New creates and returns a new Poller.
func New(cfg Config, logger slog.Logger, reg prometheus.Registerer) (*Poller, error) {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}

	l := logger.With("module", module)
	p := &Poller{
		cfg:     &cfg,
		logger:  l,
		metrics: newMetrics(reg),
		sources: map[Source]titleSource{
			SourceICY:      icy.New(l),
			SourceRadio101: radio101.New(l, cfg.Radio101BaseURL),
		},
		status: make(map[string]Status),
	}

	p.Service = services.NewBasicService(p.starting, p.running, p.stopping)

	return p, nil
}

func (p *Poller) starting(_ context.Context) error {
	stations, err := p.cfg.stations()
	if err != nil {
		p.logger.Error("invalid station configuration", "err", err)
		return err
	}
	p.stations = stations

	for _, st := range stations {
		p.logger.Info("polling station", "station", st.Name, "url", st.URL, "source", st.Source)
	}

	return nil
}

func (p *Poller) running(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	p.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *Poller) stopping(_ error) error {
	p.logger.Info("stopping")
	return nil
}

// poll runs one lookup per station, at most cfg.Concurrency at a time.
func (p *Poller) poll(ctx context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)

	for _, st := range p.stations {
		g.Go(func() error {
			p.pollStation(gctx, st)
			return nil
		})
	}

	_ = g.Wait()
}

func (p *Poller) pollStation(ctx context.Context, st Station) {
	start := time.Now()
	title, err := p.sources[st.Source].Lookup(ctx, st.URL, p.cfg.ICY)
	p.metrics.duration.WithLabelValues(st.Name).Observe(time.Since(start).Seconds())
	p.metrics.lookups.WithLabelValues(st.Name, outcome(err)).Inc()

	res := icy.NewResult(title, err, p.cfg.ICY.ShowErrors)

	p.mtx.Lock()
	defer p.mtx.Unlock()

	prev, seen := p.status[st.Name]
	s := Status{
		Station: st.Name,
		URL:     st.URL,
		Title:   prev.Title,
		OK:      res.OK,
		Error:   res.Error,
		Updated: start,
	}

	if err != nil {
		p.logger.Debug("lookup failed", "station", st.Name, "err", err)
		p.status[st.Name] = s
		return
	}

	p.metrics.lastSuccess.WithLabelValues(st.Name).Set(float64(start.Unix()))
	s.Title = title
	p.status[st.Name] = s

	if !seen || prev.Title != title {
		p.metrics.titleChanges.WithLabelValues(st.Name).Inc()
		p.logger.Info("now playing", "station", st.Name, "title", title)
	}
}

// Titles returns a snapshot of every station's status, sorted by name.
func (p *Poller) Titles() []Status {
	p.mtx.RLock()
	defer p.mtx.RUnlock()

	out := make([]Status, 0, len(p.status))
	for _, s := range p.status {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Station < out[j].Station })

	return out
}

// ServeHTTP writes Titles as JSON.
func (p *Poller) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(p.Titles()); err != nil {
		p.logger.Error("error encoding titles", "err", err)
	}
}
