package poller

import (
	"flag"
	"fmt"
	"time"

	"github.com/zachfi/zkit/pkg/util"

	"github.com/zachfi/streamtitle/pkg/icy"
)

const (
	defaultInterval    = 30 * time.Second
	defaultConcurrency = 8
)

// Source names how a station's title is looked up.
type Source string

const (
	SourceICY      Source = "icy"
	SourceRadio101 Source = "radio101"
)

type Station struct {
	Name   string `yaml:"name"`
	URL    string `yaml:"url"`
	Source Source `yaml:"source,omitempty"`
}

type Config struct {
	URL             string        `yaml:"url,omitempty"` // shorthand for a single ICY station
	Stations        []Station     `yaml:"stations,omitempty"`
	Interval        time.Duration `yaml:"interval,omitempty"`
	Concurrency     int           `yaml:"concurrency,omitempty"` // lookups in flight per tick
	Radio101BaseURL string        `yaml:"radio101_base_url,omitempty"`
	ICY             icy.Config    `yaml:"icy,omitempty"`
}

func (cfg *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	f.StringVar(&cfg.URL, util.PrefixConfig(prefix, "url"), "", "The URL of a single stream to poll")
	f.DurationVar(&cfg.Interval, util.PrefixConfig(prefix, "interval"), defaultInterval, "How often every station is polled.")
	f.IntVar(&cfg.Concurrency, util.PrefixConfig(prefix, "concurrency"), defaultConcurrency, "Maximum lookups running at once.")
	f.StringVar(&cfg.Radio101BaseURL, util.PrefixConfig(prefix, "radio101-base-url"), "", "Override the 101.ru getTrackOnAir API base URL.")

	cfg.ICY.RegisterFlagsAndApplyDefaults(util.PrefixConfig(prefix, "icy"), f)
}

// stations returns the configured stations plus the URL shorthand, with
// defaults applied.
func (cfg *Config) stations() ([]Station, error) {
	all := append([]Station(nil), cfg.Stations...)
	if cfg.URL != "" {
		all = append(all, Station{Name: cfg.URL, URL: cfg.URL})
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("no stations configured")
	}

	seen := make(map[string]struct{}, len(all))
	for i := range all {
		st := &all[i]
		if st.URL == "" {
			return nil, fmt.Errorf("station %d has no url", i)
		}
		if st.Name == "" {
			st.Name = st.URL
		}
		if st.Source == "" {
			st.Source = SourceICY
		}
		if st.Source != SourceICY && st.Source != SourceRadio101 {
			return nil, fmt.Errorf("station %q: unknown source %q", st.Name, st.Source)
		}
		if _, ok := seen[st.Name]; ok {
			return nil, fmt.Errorf("duplicate station name %q", st.Name)
		}
		seen[st.Name] = struct{}{}
	}

	return all, nil
}
