package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"rosterwatch/internal/engage"
	"rosterwatch/internal/platform/config"
	"rosterwatch/internal/platform/httpserver"
	"rosterwatch/internal/platform/metrics"
	"rosterwatch/internal/platform/redis"
	"rosterwatch/internal/radar"
	"rosterwatch/internal/targets"
	httptransport "rosterwatch/internal/transport/http"
	"rosterwatch/pkg/domain"
)

func runWatch(ctx context.Context, opts *rootOptions, out io.Writer) error {
	if !opts.dryRun {
		return ErrNoLiveSession
	}
	cfg, log, err := loadConfig(opts, out)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewWithRegistry(registry)

	client, err := newAPIClient(cfg, log, m)
	if err != nil {
		return wrapStartup("identify to the API", err)
	}
	region, err := homeRegion(ctx, cfg, client)
	if err != nil {
		return err
	}
	log = log.With("region", region.String())
	log.InfoContext(ctx, "settings loaded", configSummary(cfg)...)
	if cfg.RegionOverride != "" {
		log.WarnContext(ctx, "region override enabled")
	}

	classifier, err := buildClassifier(ctx, cfg, region, client, log)
	if err != nil {
		return err
	}

	queue, health, closeQueue, err := openQueue(ctx, cfg, opts.resetQueue, log)
	if err != nil {
		return err
	}
	defer closeQueue()

	session := engage.NewDryRunSession(log)
	if err := engage.Login(ctx, session, domain.Canonicalize(cfg.Nation), cfg.Password); err != nil {
		return wrapStartup("log in", err)
	}

	r, err := radar.New(ctx, radar.NewRegionSource(client, region, cfg.WAOnly), classifier, queue,
		radar.WithInterval(cfg.PollInterval),
		radar.WithJitter(cfg.Jitter),
		radar.WithStopOnUpdate(cfg.StopOnUpdate),
		radar.WithLogger(log),
		radar.WithMetrics(m),
		radar.WithObserver(radar.NewLogObserver(log)),
	)
	if err != nil {
		return wrapStartup("start radar", err)
	}

	loop, err := engage.NewLoop(session, queue,
		engage.WithLogger(log),
		engage.WithMetrics(m),
	)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := r.Run(gctx)
		if errors.Is(err, radar.ErrRegionUpdated) {
			log.InfoContext(gctx, "hold fire, target has updated")
		}
		return err
	})
	g.Go(func() error {
		return loop.Run(gctx)
	})
	if cfg.MetricsAddr != "" {
		handler := httptransport.NewHandler(queue, log)
		if health != nil {
			handler.AddCheck("redis", health)
		}
		srv := httpserver.New(cfg.MetricsAddr, httptransport.NewRouter(handler, registry))
		g.Go(func() error {
			return httpserver.Serve(gctx, srv, log)
		})
	}

	err = g.Wait()
	stats := loop.Stats()
	log.Info(fmt.Sprintf("hostiles splashed: %d", stats.Disposed),
		"attempts", stats.Attempts,
		"failed", stats.Failed,
		"skipped", stats.Skipped,
	)
	if errors.Is(err, radar.ErrRegionUpdated) {
		return nil
	}
	return err
}

// openQueue returns the configured queue, an optional health check for it
// and a release function.
func openQueue(ctx context.Context, cfg config.Config, reset bool, log *slog.Logger) (targets.Queue, httptransport.HealthCheck, func(), error) {
	if cfg.Queue.Backend != config.BackendRedis {
		return targets.NewMemoryQueue(), nil, func() {}, nil
	}

	client, err := redis.New(ctx, redis.Config{URL: cfg.Queue.RedisURL, DialTimeout: cfg.API.Timeout})
	if err != nil {
		return nil, nil, nil, wrapStartup("connect queue", err)
	}
	queue, err := targets.NewRedisQueue(client.Client, cfg.Queue.RedisKey)
	if err != nil {
		_ = client.Close()
		return nil, nil, nil, err
	}
	if reset {
		if err := queue.Clear(ctx); err != nil {
			_ = client.Close()
			return nil, nil, nil, wrapStartup("reset queue", err)
		}
		log.InfoContext(ctx, "shared queue cleared")
	}
	return queue, client.Health, func() { _ = client.Close() }, nil
}
