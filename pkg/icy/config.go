package icy

import (
	"flag"
	"fmt"
	"time"

	"github.com/zachfi/zkit/pkg/util"
)

// Transport selects the StreamReader used to fetch stream bytes.
type Transport string

const (
	// TransportPooled reads through a shared net/http client.
	TransportPooled Transport = "pooled"
	// TransportSocket speaks HTTP/1.0 over a raw TCP or TLS connection.
	TransportSocket Transport = "socket"
	// TransportFetch performs a one-shot bounded read with a throwaway client.
	TransportFetch Transport = "fetch"
)

const (
	DefaultUserAgent         = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/73.0.3683.75 Safari/537.36"
	DefaultMaxMetadataLength = 5228
	DefaultTimeout           = 30 * time.Second
)

// Set implements flag.Value.
func (t *Transport) Set(s string) error {
	switch Transport(s) {
	case TransportPooled, TransportSocket, TransportFetch:
		*t = Transport(s)
		return nil
	}
	return fmt.Errorf("unknown transport %q", s)
}

func (t *Transport) String() string {
	if t == nil {
		return ""
	}
	return string(*t)
}

// Config is passed by value into every lookup and never mutated by it.
type Config struct {
	Transport         Transport     `yaml:"transport,omitempty"`
	UserAgent         string        `yaml:"user_agent,omitempty"`
	ShowErrors        bool          `yaml:"show_errors,omitempty"`
	MaxMetadataLength int           `yaml:"max_metadata_length,omitempty"`
	Timeout           time.Duration `yaml:"timeout,omitempty"`
	ResolvePlaylist   bool          `yaml:"resolve_playlist,omitempty"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		Transport:         TransportPooled,
		UserAgent:         DefaultUserAgent,
		MaxMetadataLength: DefaultMaxMetadataLength,
		Timeout:           DefaultTimeout,
	}
}

func (cfg *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	*cfg = DefaultConfig()

	f.Var(&cfg.Transport, util.PrefixConfig(prefix, "transport"), "How stream bytes are read: pooled, socket or fetch.")
	f.StringVar(&cfg.UserAgent, util.PrefixConfig(prefix, "user-agent"), DefaultUserAgent, "User-Agent sent to stream servers.")
	f.BoolVar(&cfg.ShowErrors, util.PrefixConfig(prefix, "show-errors"), false, "Report descriptive errors instead of an empty result.")
	f.IntVar(&cfg.MaxMetadataLength, util.PrefixConfig(prefix, "max-metadata-length"), DefaultMaxMetadataLength,
		"Bytes read past the metadata interval to make room for the metadata block.")
	f.DurationVar(&cfg.Timeout, util.PrefixConfig(prefix, "timeout"), DefaultTimeout, "Timeout for each network operation of a lookup.")
	f.BoolVar(&cfg.ResolvePlaylist, util.PrefixConfig(prefix, "resolve-playlist"), false, "Resolve .pls and .m3u URLs to their first stream.")
}

// withDefaults fills zero fields so a partially populated Config still works.
func (cfg Config) withDefaults() Config {
	d := DefaultConfig()
	if cfg.Transport == "" {
		cfg.Transport = d.Transport
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = d.UserAgent
	}
	if cfg.MaxMetadataLength <= 0 {
		cfg.MaxMetadataLength = d.MaxMetadataLength
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = d.Timeout
	}
	return cfg
}
