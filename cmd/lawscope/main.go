package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/go-pkgz/lgr"
	"github.com/go-pkgz/repeater/v2"
	"github.com/jessevdk/go-flags"
	"golang.org/x/sync/errgroup"

	"github.com/umputun/lawscope/pkg/app"
	"github.com/umputun/lawscope/pkg/config"
	"github.com/umputun/lawscope/pkg/feed"
	"github.com/umputun/lawscope/pkg/ingest"
	"github.com/umputun/lawscope/pkg/offline"
	"github.com/umputun/lawscope/pkg/repository"
	"github.com/umputun/lawscope/server"
)

// Opts with all CLI options
type Opts struct {
	Config string `short:"c" long:"config" env:"CONFIG" description:"configuration file, built-in defaults if empty"`

	Serve   struct{} `command:"serve" description:"ingest feeds and serve the news app (default)"`
	Offline struct{} `command:"offline" description:"run the offline caching proxy in front of the app"`

	// common options
	Debug   bool `long:"dbg" env:"DEBUG" description:"debug mode"`
	Version bool `short:"V" long:"version" description:"show version info"`
	NoColor bool `long:"no-color" env:"NO_COLOR" description:"disable color output"`
}

var revision = "unknown"

func main() {
	var opts Opts
	parser := flags.NewParser(&opts, flags.Default)
	parser.SubcommandsOptional = true
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

	setupLog(opts.Debug, opts.NoColor)

	lgr.Printf("[INFO] starting lawscope version %s", revision)

	ctx, cancel := context.WithCancel(context.Background())

	// handle termination signals
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		lgr.Printf("[INFO] termination signal received")
		cancel()
	}()

	command := "serve"
	if parser.Active != nil {
		command = parser.Active.Name
	}

	var err error
	switch command {
	case "offline":
		err = runOffline(ctx, opts)
	default:
		err = run(ctx, opts)
	}
	cancel()

	if err != nil {
		lgr.Printf("[ERROR] %s failed: %v", command, err)
		os.Exit(1)
	}

	lgr.Printf("[INFO] shutdown complete")
}

// run wires the store, the ingestion pipeline, the app state and the http server
func run(ctx context.Context, opts Opts) error {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	repos, err := repository.NewRepositories(ctx, repository.Config{
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Database.ConnMaxLifetime) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() {
		if err := repos.Close(); err != nil {
			lgr.Printf("[WARN] failed to close store: %v", err)
		}
	}()

	newsApp := app.New(app.Params{
		Store:             repos.News,
		Courts:            cfg.Courts,
		ArchiveLimit:      cfg.Schedule.ArchiveLimit,
		RecencyDays:       cfg.View.RecencyDays,
		TopStories:        cfg.View.TopStories,
		BreakingWindow:    cfg.View.BreakingWindow,
		RotationInterval:  cfg.View.RotationInterval,
		DescriptionLength: cfg.View.DescriptionLength,
	})
	defer newsApp.Close()

	// show the archive before the first ingestion completes
	if err := newsApp.Reload(ctx); err != nil {
		lgr.Printf("[WARN] initial load failed: %v", err)
	}

	ingestor := ingest.NewIngestor(ingest.Params{
		Sources:    cfg.Sources(),
		Converter:  feed.NewConverter(cfg.Converter.Endpoint, cfg.Converter.Timeout),
		Normalizer: feed.NewNormalizer(time.UTC),
		Store:      repos.News,
		Reporter:   newsApp,
		MaxWorkers: cfg.Schedule.MaxWorkers,
	})

	sched := ingest.NewScheduler(ingestor, cfg.Schedule.UpdateInterval)
	sched.Start(ctx)
	defer sched.Stop()

	srv := server.New(server.Params{
		Config:    cfg,
		News:      newsApp,
		Refresher: sched,
		Generator: feed.NewGenerator(cfg.Server.BaseURL, cfg.View.DescriptionLength, cfg.Courts),
		Sources:   cfg.Sources(),
		Version:   revision,
		Debug:     opts.Debug,
	})

	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// runOffline runs the offline caching proxy backed by the sqlite cache partitions
func runOffline(ctx context.Context, opts Opts) error {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	upstream, err := url.Parse(cfg.Offline.Upstream)
	if err != nil {
		return fmt.Errorf("failed to parse upstream: %w", err)
	}

	repos, err := repository.NewRepositories(ctx, repository.Config{DSN: cfg.Database.DSN, MaxOpenConns: cfg.Database.MaxOpenConns})
	if err != nil {
		return fmt.Errorf("failed to open cache store: %w", err)
	}
	defer func() {
		if err := repos.Close(); err != nil {
			lgr.Printf("[WARN] failed to close cache store: %v", err)
		}
	}()

	scope := offline.NewScope(repos.Cache, nil, upstream)
	cacheCfg := offline.Config{
		Prefix:         cfg.Offline.CachePrefix,
		Version:        cfg.Offline.Version,
		StaticAssets:   cfg.Offline.StaticAssets,
		Shell:          cfg.Offline.Shell,
		WaitForMessage: cfg.Offline.WaitForMessage,
	}

	// keep serving the stored generation until the new one activates
	if _, err := scope.Restore(ctx, cacheCfg); err != nil && !errors.Is(err, offline.ErrCacheMiss) {
		lgr.Printf("[WARN] failed to restore offline cache: %v", err)
	}

	// upstream may still be starting, retry the install a few times
	err = repeater.NewBackoff(5, time.Second, repeater.WithMaxDelay(10*time.Second)).Do(ctx, func() error {
		_, regErr := scope.Register(ctx, cacheCfg)
		if regErr != nil {
			lgr.Printf("[WARN] offline cache install failed: %v", regErr)
		}
		return regErr
	})
	if err != nil {
		// serve anyway, requests pass through to upstream until a generation is active
		lgr.Printf("[WARN] offline cache not installed, proxy only: %v", err)
	}

	httpServer := &http.Server{
		Addr:              cfg.Offline.Listen,
		Handler:           scope.Handler(),
		ReadHeaderTimeout: cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := scope.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("offline messages: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		lgr.Printf("[INFO] starting offline proxy on %s for %s", cfg.Offline.Listen, upstream)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("offline proxy error: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func setupLog(dbg, noColor bool) {
	logOpts := []lgr.Option{lgr.Out(io.Discard), lgr.Err(io.Discard)}
	if dbg {
		logOpts = []lgr.Option{lgr.Debug, lgr.Msec, lgr.LevelBraces, lgr.StackTraceOnError}
	}

	if !noColor {
		colorizer := lgr.Mapper{
			ErrorFunc:  func(s string) string { return color.New(color.FgHiRed).Sprint(s) },
			WarnFunc:   func(s string) string { return color.New(color.FgRed).Sprint(s) },
			InfoFunc:   func(s string) string { return color.New(color.FgYellow).Sprint(s) },
			DebugFunc:  func(s string) string { return color.New(color.FgWhite).Sprint(s) },
			CallerFunc: func(s string) string { return color.New(color.FgBlue).Sprint(s) },
			TimeFunc:   func(s string) string { return color.New(color.FgCyan).Sprint(s) },
		}
		logOpts = append(logOpts, lgr.Map(colorizer))
	}
	lgr.SetupStdLogger(logOpts...)
	lgr.Setup(logOpts...)
}
