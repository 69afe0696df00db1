package poller

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/zachfi/streamtitle/pkg/icy"
	"github.com/zachfi/streamtitle/pkg/radio101"
)

const metricsNamespace = "streamtitle"

type metrics struct {
	lookups      *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	titleChanges *prometheus.CounterVec
	lastSuccess  *prometheus.GaugeVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	f := promauto.With(reg)

	return &metrics{
		lookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: module,
			Name:      "lookups_total",
			Help:      "Title lookups by station and outcome.",
		}, []string{"station", "outcome"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: module,
			Name:      "lookup_duration_seconds",
			Help:      "Time spent on a single title lookup.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"station"}),
		titleChanges: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: module,
			Name:      "title_changes_total",
			Help:      "Times a station's title changed.",
		}, []string{"station"}),
		lastSuccess: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: module,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful lookup.",
		}, []string{"station"}),
	}
}

// outcome labels a lookup error by category.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, icy.ErrIntervalUnavailable):
		return "interval_unavailable"
	case errors.Is(err, icy.ErrTransport):
		return "transport"
	case errors.Is(err, icy.ErrEmptyMetadata):
		return "empty"
	case errors.Is(err, icy.ErrMalformedMetadata), errors.Is(err, radio101.ErrJSON):
		return "malformed"
	case errors.Is(err, radio101.ErrNoTrack):
		return "empty"
	default:
		return "error"
	}
}
