package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/good-yellow-bee/followwatch/internal/logger"
)

const reloadDebounce = 250 * time.Millisecond

// watchConfig calls apply with the re-parsed configuration whenever the file
// at path changes. The parent directory is watched so editors that replace
// the file are seen. Invalid files are logged and skipped.
func watchConfig(ctx context.Context, path string, apply func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	defer watcher.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch config dir: %w", err)
	}
	logger.Info("watching config for changes", zap.String("path", abs))

	var debounce <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				debounce = time.After(reloadDebounce)
			}

		case <-debounce:
			debounce = nil
			cfg, err := LoadConfig(abs)
			if err != nil {
				logger.Warn("config reload failed, keeping current settings", zap.Error(err))
				continue
			}
			logger.Info("config reloaded", zap.Duration("scheduler_interval", cfg.Scheduler.Interval))
			apply(cfg)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("config watcher error", zap.Error(err))
		}
	}
}
