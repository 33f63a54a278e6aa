// Command resolvecache serves a TTL and LRU bounded resolve cache over TCP.
//
// It sits in front of a slow upstream (a simulated DNS server, the system
// resolver or Redis), answers repeated lookups from memory and exposes its
// statistics on a Prometheus endpoint.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kushalsai-01/resolvecache/internal/cache"
	"github.com/kushalsai-01/resolvecache/internal/config"
	"github.com/kushalsai-01/resolvecache/internal/metric"
	"github.com/kushalsai-01/resolvecache/internal/server"
	"github.com/kushalsai-01/resolvecache/internal/upstream"
)

const (
	Version = "0.1.0"
	appName = "resolvecache"

	shutdownTimeout = 5 * time.Second
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		slog.Error("resolvecache failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cli, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("invalid flags: %w", err)
	}
	if cli.ShowVersion {
		fmt.Fprintf(stdout, "%s version %s\n", appName, Version)
		return nil
	}

	cfg, err := loadConfig(cli)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := setupLogger(stderr, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)

	if cli.Validate {
		logger.Info("configuration is valid")
		return nil
	}

	// Signal-aware context is the root of ownership for long-lived work.
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cli.Demo {
		return runDemo(ctx, stdout, logger, cfg.Upstream.Delay)
	}
	return serve(ctx, cfg, logger)
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	reg := metric.NewMetricsRegistry()

	c, err := cache.New(cfg.CacheConfig(),
		cache.WithLogger(logger.With("component", "cache")),
		cache.WithMetrics(reg, "resolve"),
	)
	if err != nil {
		return fmt.Errorf("create cache: %w", err)
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Error("cache close", "error", err)
		}
		logger.Info("final statistics", "stats", c.Stats().String(), "report", c.Stats())
	}()

	resolver, closeUpstream, err := upstream.New(cfg.Upstream, logger.With("component", "upstream"))
	if err != nil {
		return fmt.Errorf("create upstream: %w", err)
	}
	defer func() {
		if err := closeUpstream(); err != nil {
			logger.Error("upstream close", "error", err)
		}
	}()

	srv := &server.Server{
		Addr:     cfg.Addr(),
		ConnMeta: server.ConnMeta{Cache: c, Resolver: resolver},
		Log:      logger.With("component", "server"),
	}

	logger.Info("starting resolvecache",
		"addr", srv.Addr,
		"upstream", cfg.Upstream.Kind,
		"capacity", cfg.Cache.Capacity,
		"ttl", cfg.Cache.TTL,
		"sweep_interval", cfg.Cache.SweepInterval)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(gctx)
	})
	if cfg.Server.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", reg.Handler())
		metricsSrv := &http.Server{
			Addr:              cfg.Server.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logger.Info("serving metrics", "addr", metricsSrv.Addr)
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
			defer cancel()
			return metricsSrv.Shutdown(shutdownCtx)
		})
	}

	err = g.Wait()
	logger.Info("shutdown complete")
	return err
}
