package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/good-yellow-bee/followwatch/internal/logger"
	"github.com/good-yellow-bee/followwatch/internal/notifier"
	"github.com/good-yellow-bee/followwatch/internal/source"
	"github.com/good-yellow-bee/followwatch/internal/storage"
	"github.com/good-yellow-bee/followwatch/internal/tracker"
	"github.com/good-yellow-bee/followwatch/pkg/config"
)

// app holds the components shared by every command that touches data.
type app struct {
	cfg        *Config
	store      *storage.SQLiteStorage
	dispatcher *notifier.Dispatcher
	refresher  *tracker.Refresher
}

// setupLogger initializes the global logger from cfg.
func setupLogger(cfg *Config) error {
	return logger.Initialize(logger.Config{
		Debug:       cfg.Log.Debug || verbose,
		SentryDSN:   cfg.Log.SentryDSN,
		Environment: cfg.Log.Environment,
		Tags:        map[string]string{"version": config.Version},
	})
}

// openStore opens and migrates the database, creating its directory.
func openStore(cfg *Config) (*storage.SQLiteStorage, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o750); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	store := storage.NewSQLiteStorage(cfg.Database.Path)
	if err := store.Open(); err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := store.Migrate(); err != nil {
		store.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	logger.Info("database initialized", zap.String("path", cfg.Database.Path))
	return store, nil
}

// newApp wires storage, source, notifiers and the refresher.
func newApp(cfg *Config) (*app, error) {
	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	dispatcher, err := buildDispatcher(cfg.Notify)
	if err != nil {
		store.Close()
		return nil, err
	}

	refresher := tracker.NewRefresher(store, buildSource(cfg), dispatcher, tracker.Config{
		SourceTimeout:  cfg.Refresh.SourceTimeout,
		StorageTimeout: cfg.Refresh.StorageTimeout,
		NotifyTimeout:  cfg.Refresh.NotifyTimeout,
	})

	return &app{cfg: cfg, store: store, dispatcher: dispatcher, refresher: refresher}, nil
}

// Close releases notifiers and the database.
func (a *app) Close() error {
	return errors.Join(a.dispatcher.Close(), a.store.Close())
}

func buildSource(cfg *Config) source.FollowerSource {
	switch cfg.Source.Kind {
	case "http":
		logger.Info("using http follower source", zap.String("base_url", cfg.Source.BaseURL))
		return source.NewHTTPSource(source.HTTPConfig{
			BaseURL:           cfg.Source.BaseURL,
			APIKey:            cfg.Source.APIKey,
			RequestsPerMinute: cfg.Source.RequestsPerMinute,
			Timeout:           cfg.Refresh.SourceTimeout,
		})
	default:
		seed := cfg.Source.Seed
		if seed == 0 {
			seed = uint64(time.Now().UnixNano())
		}
		logger.Info("using random-walk follower source", zap.Uint64("seed", seed))
		return source.NewRandomWalk(seed)
	}
}

func buildDispatcher(cfg NotifyConfig) (*notifier.Dispatcher, error) {
	d := notifier.NewDispatcherWithRateLimit(notifier.RateLimitConfig{
		MaxPerWindow: cfg.RateLimit,
		Window:       cfg.RateWindow,
		Enabled:      cfg.RateLimit > 0,
	})
	d.Register(notifier.LogNotifier{})

	if cfg.TelegramBotToken != "" {
		tg, err := notifier.NewTelegramNotifier(notifier.TelegramConfig{BotToken: cfg.TelegramBotToken})
		if err != nil {
			return nil, fmt.Errorf("telegram notifier: %w", err)
		}
		d.Register(tg)
	} else {
		logger.Warn("telegram bot token not configured, milestones are only logged")
	}

	if cfg.SlackWebhookURL != "" {
		slack, err := notifier.NewSlackNotifier(notifier.SlackConfig{WebhookURL: cfg.SlackWebhookURL})
		if err != nil {
			return nil, fmt.Errorf("slack notifier: %w", err)
		}
		d.Register(slack)
	}

	logger.Info("notifiers registered", zap.Strings("notifiers", d.Names()))
	return d, nil
}
