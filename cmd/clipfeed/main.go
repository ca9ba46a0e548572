package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/fatih/color"
	"github.com/go-pkgz/lgr"
	"github.com/jessevdk/go-flags"

	"github.com/clipfeed/clipfeed/pkg/aggregator"
	"github.com/clipfeed/clipfeed/pkg/cache"
	"github.com/clipfeed/clipfeed/pkg/config"
	"github.com/clipfeed/clipfeed/pkg/scheduler"
	"github.com/clipfeed/clipfeed/pkg/store"
	"github.com/clipfeed/clipfeed/pkg/youtube"
	"github.com/clipfeed/clipfeed/server"
)

// Opts with all CLI options
type Opts struct {
	Config  string `short:"f" long:"config" env:"CONFIG" default:"config.yml" description:"config file path"`
	Debug   bool   `long:"dbg" env:"DEBUG" description:"debug mode"`
	Version bool   `short:"V" long:"version" description:"show version info"`
	NoColor bool   `long:"no-color" env:"NO_COLOR" description:"disable color output"`
}

var revision = "unknown"

func main() {
	var opts Opts
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if opts.Version {
		fmt.Printf("Version: %s\nGolang: %s\n", revision, runtime.Version())
		os.Exit(0)
	}

	ctx, cancel := context.WithCancel(context.Background())

	// handle termination signals
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		log.Print("[INFO] termination signal received")
		cancel()
	}()

	if err := run(ctx, opts); err != nil {
		log.Printf("[ERROR] %v", err)
		cancel()
		os.Exit(1)
	}
	cancel()

	log.Print("[INFO] shutdown complete")
}

// run wires the pipeline and serves until the context is canceled
func run(ctx context.Context, opts Opts) error {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	var secrets []string
	if cfg.YouTube.APIKey != "" {
		secrets = append(secrets, cfg.YouTube.APIKey)
	}
	setupLog(opts.Debug, secrets...)
	log.Printf("[INFO] starting clipfeed version %s", revision)

	client := youtube.NewClient(youtube.Config{
		APIKey:  cfg.YouTube.APIKey,
		BaseURL: cfg.YouTube.BaseURL,
		Timeout: cfg.YouTube.Timeout,
		RPS:     cfg.YouTube.RPS,
	})

	enricher := aggregator.NewEnricher(client)
	icons := aggregator.NewIconResolver(client, cfg.Cache.IconWindow)
	service := aggregator.NewService(client, enricher, icons, aggregator.Config{
		Playlists:   cfg.Playlists.Regular,
		Exception:   cfg.Playlists.Exception,
		Recommended: cfg.Playlists.Recommended,
		Lookback:    cfg.Playlists.Lookback,
		MaxFetchers: cfg.Playlists.MaxFetchers,
	})

	results := cache.NewResultCache(service, cfg.Cache.Window)

	if cfg.Store.Enabled {
		st, err := store.New(store.Config{DSN: cfg.Store.DSN, Window: cfg.Store.Window})
		if err != nil {
			return fmt.Errorf("failed to open store: %w", err)
		}
		defer func() {
			if err := st.Close(); err != nil {
				log.Printf("[WARN] failed to close store: %v", err)
			}
		}()
		results = results.WithPersistence(st)
		log.Printf("[INFO] result persistence enabled, dsn %s", cfg.Store.DSN)
	}

	if cfg.Schedule.Enabled {
		sched := scheduler.New(results, cfg.Schedule.Interval)
		sched.Start(ctx)
		defer sched.Stop()
	}

	srv := server.New(cfg, results, revision, opts.Debug)
	return srv.Run(ctx)
}

// setupLog configures the logger, optionally masking secrets
func setupLog(dbg bool, secs ...string) {
	logOpts := []lgr.Option{lgr.Out(io.Discard), lgr.Err(io.Discard)}
	if dbg {
		logOpts = []lgr.Option{lgr.Debug, lgr.Msec, lgr.LevelBraces, lgr.StackTraceOnError}
	}

	colorizer := lgr.Mapper{
		ErrorFunc:  func(s string) string { return color.New(color.FgHiRed).Sprint(s) },
		WarnFunc:   func(s string) string { return color.New(color.FgRed).Sprint(s) },
		InfoFunc:   func(s string) string { return color.New(color.FgYellow).Sprint(s) },
		DebugFunc:  func(s string) string { return color.New(color.FgWhite).Sprint(s) },
		CallerFunc: func(s string) string { return color.New(color.FgBlue).Sprint(s) },
		TimeFunc:   func(s string) string { return color.New(color.FgCyan).Sprint(s) },
	}
	logOpts = append(logOpts, lgr.Map(colorizer))
	if len(secs) > 0 {
		logOpts = append(logOpts, lgr.Secret(secs...))
	}
	lgr.SetupStdLogger(logOpts...)
	lgr.Setup(logOpts...)
}
