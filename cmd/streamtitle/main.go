package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/grafana/dskit/flagext"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/version"

	"github.com/zachfi/zkit/pkg/tracing"

	"github.com/zachfi/streamtitle/app"
	"github.com/zachfi/streamtitle/pkg/icy"
	"github.com/zachfi/streamtitle/pkg/radio101"
)

const appName = "streamtitle"

// Version is set via build flag -ldflags -X main.Version
var (
	Version  string
	Branch   string
	Revision string
)

func init() {
	version.Version = Version
	version.Branch = Branch
	version.Revision = Revision
	prometheus.MustRegister(version.NewCollector(appName))
}

// options are command line settings that are not part of app.Config.
type options struct {
	lookup       string
	lookupSource string
	debug        bool
}

func main() {
	level := new(slog.LevelVar)
	level.Set(slog.LevelInfo)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	cfg, opts, err := loadConfig()
	if err != nil {
		logger.Error("failed to load config file", "err", err)
		os.Exit(1)
	}
	if opts.debug {
		level.Set(slog.LevelDebug)
	}

	shutdownTracer, err := tracing.InstallOpenTelemetryTracer(&cfg.Tracing, logger, appName, Version)
	if err != nil {
		logger.Error("error initialising tracer", "err", err)
		os.Exit(1)
	}

	if opts.lookup != "" {
		code := lookup(logger, opts, cfg.Poller.ICY, cfg.Poller.Radio101BaseURL)
		shutdownTracer()
		os.Exit(code)
	}
	defer shutdownTracer()

	a, err := app.New(*cfg, *logger)
	if err != nil {
		logger.Error("failed to create", "app", appName, "err", err)
		os.Exit(1)
	}

	if err := a.Run(context.Background()); err != nil {
		logger.Error("error running", "app", appName, "err", err)
		os.Exit(1)
	}
}

// lookup prints the current title of a single stream. The exit code is 1
// when no title was found.
func lookup(logger *slog.Logger, opts options, cfg icy.Config, radio101BaseURL string) int {
	ctx := context.Background()

	var res icy.Result
	switch opts.lookupSource {
	case "icy":
		res = icy.New(logger).GetSongTitle(ctx, opts.lookup, cfg)
	case "radio101":
		res = radio101.New(logger, radio101BaseURL).GetSongTitle(ctx, opts.lookup, cfg)
	default:
		logger.Error("unknown lookup source", "source", opts.lookupSource)
		return 2
	}

	fmt.Println(res)
	if !res.OK {
		return 1
	}
	return 0
}

func loadConfig() (*app.Config, options, error) {
	const (
		configFileOption = "config.file"
	)

	var (
		configFile string
		opts       options
	)

	args := os.Args[1:]
	config := &app.Config{}

	// first get the config file
	fs := flag.NewFlagSet("", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&configFile, configFileOption, "", "")

	// Try to find -config.file. As Parsing stops on the first error, eg. unknown flag,
	// we simply try remaining parameters until we find config flag, or there are no params left.
	for len(args) > 0 {
		_ = fs.Parse(args)
		args = args[1:]
	}

	// load config defaults and register flags
	config.RegisterFlagsAndApplyDefaults("", flag.CommandLine)
	flag.StringVar(&opts.lookup, "lookup", "", "Print the current title of this stream URL and exit.")
	flag.StringVar(&opts.lookupSource, "lookup.source", "icy", "Where -lookup reads the title from: icy or radio101.")
	flag.BoolVar(&opts.debug, "log.debug", false, "Enable debug logging.")

	// overlay with config file if provided
	if configFile != "" {
		if err := config.LoadFile(configFile); err != nil {
			return nil, opts, err
		}
	}

	// overlay with cli
	flagext.IgnoredFlag(flag.CommandLine, configFileOption, "Configuration file to load")
	flag.Parse()

	return config, opts, nil
}
