package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/good-yellow-bee/followwatch/internal/api"
	"github.com/good-yellow-bee/followwatch/internal/api/health"
	"github.com/good-yellow-bee/followwatch/internal/logger"
	"github.com/good-yellow-bee/followwatch/internal/metrics"
	"github.com/good-yellow-bee/followwatch/internal/scheduler"
	"github.com/good-yellow-bee/followwatch/internal/tracker"
	"github.com/good-yellow-bee/followwatch/pkg/config"
)

const (
	flushTimeout    = 2 * time.Second
	shutdownTimeout = 10 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the API, scheduler and retention jobs",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadRuntime()
	if err != nil {
		return err
	}
	defer logger.Flush(flushTimeout)

	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret or %s is required", envJWTSecret)
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	metrics.SetBuildInfo(config.Version, config.Commit, config.BuildTime)

	sched := scheduler.New(scheduler.Config{
		Interval:   cfg.Scheduler.Interval,
		Workers:    cfg.Scheduler.Workers,
		QueueSize:  cfg.Scheduler.QueueSize,
		RunOnStart: cfg.Scheduler.RunOnStart,
	}, a.store.Profiles(), a.refresher)
	retention := scheduler.NewRetention(a.store.History(), cfg.Retention.HistoryMaxAge, cfg.Retention.Interval)

	apiServer, err := api.New(&api.Config{
		Address:          cfg.Server.HTTPAddress,
		JWTSecret:        []byte(cfg.Auth.JWTSecret),
		AccessTokenTTL:   cfg.Auth.TokenTTL,
		CORSOrigins:      cfg.Server.CORSOrigins,
		RateLimitPerIP:   cfg.Server.RateLimitPerIP,
		RateLimitPerUser: cfg.Server.RateLimitPerUser,
		LockoutThreshold: cfg.Auth.LockoutThreshold,
		LockoutDuration:  cfg.Auth.LockoutDuration,
		RequestTimeout:   cfg.Server.RequestTimeout,
		Version:          config.Version,
		Verbose:          verbose,
	}, a.store, a.refresher, tracker.NewInsights(a.store.History(), nil))
	if err != nil {
		return fmt.Errorf("create api server: %w", err)
	}
	apiServer.RegisterHealthChecker(health.NewSQLiteChecker(a.store.DB()))
	apiServer.RegisterHealthChecker(health.NewSchedulerChecker(sched.Running))

	logger.Info("starting followwatch",
		zap.String("version", config.Version),
		zap.String("http_address", cfg.Server.HTTPAddress),
		zap.Duration("interval", cfg.Scheduler.Interval),
	)

	g, ctx := errgroup.WithContext(cmd.Context())

	g.Go(func() error { return apiServer.Run(ctx) })
	g.Go(func() error { return sched.Start(ctx) })
	g.Go(func() error { return retention.Start(ctx) })

	if cfg.Server.MetricsAddress != "" {
		ms := metrics.NewServer(cfg.Server.MetricsAddress)
		g.Go(ms.Start)
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return ms.Shutdown(shutdownCtx)
		})
	}

	if configFile != "" {
		g.Go(func() error {
			return watchConfig(ctx, configFile, func(next *Config) {
				sched.SetInterval(next.Scheduler.Interval)
			})
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("followwatch stopped")
	return nil
}
