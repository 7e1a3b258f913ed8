// Package scheduler periodically refreshes every tracked profile.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alitto/pond/v2"
	"go.uber.org/zap"

	"github.com/good-yellow-bee/followwatch/internal/logger"
	"github.com/good-yellow-bee/followwatch/internal/metrics"
	"github.com/good-yellow-bee/followwatch/internal/models"
	"github.com/good-yellow-bee/followwatch/internal/tracker"
)

// ProfileLister enumerates all tracked profiles.
type ProfileLister interface {
	ListAll(ctx context.Context) ([]*models.Profile, error)
}

// Refresher refreshes one profile. TryAcquire must not block.
type Refresher interface {
	TryAcquire(profileID string) (release func(), ok bool)
	Refresh(ctx context.Context, profileID string) (*tracker.RefreshResult, error)
}

// Config holds scheduler configuration.
type Config struct {
	Interval   time.Duration // default 5m
	Workers    int           // default 8
	QueueSize  int           // default 256
	RunOnStart bool
}

// TickStats summarises one enumeration pass.
type TickStats struct {
	Profiles         int
	Scheduled        int
	DroppedInFlight  int
	DroppedQueueFull int
}

// Scheduler fans refreshes for the whole fleet out to a bounded worker pool.
// A profile whose previous refresh is still running is skipped for that tick,
// and a full queue drops the request; nothing is queued for later.
type Scheduler struct {
	cfg       Config
	profiles  ProfileLister
	refresher Refresher
	pool      pond.Pool

	mu       sync.Mutex
	interval time.Duration

	running    atomic.Bool
	exited     atomic.Bool
	intervalCh chan time.Duration
	stopCh     chan struct{}
	stoppedCh  chan struct{}
	stopOnce   sync.Once
	poolOnce   sync.Once
}

// New creates a Scheduler. The worker pool is started immediately so Tick
// can be used without Start.
func New(cfg Config, profiles ProfileLister, refresher Refresher) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 8
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}

	return &Scheduler{
		cfg:        cfg,
		profiles:   profiles,
		refresher:  refresher,
		pool:       pond.NewPool(cfg.Workers, pond.WithQueueSize(cfg.QueueSize)),
		interval:   cfg.Interval,
		intervalCh: make(chan time.Duration, 1),
		stopCh:     make(chan struct{}),
		stoppedCh:  make(chan struct{}),
	}
}

// Interval returns the current tick interval.
func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// SetInterval changes the tick interval. A running loop picks it up without restart.
func (s *Scheduler) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	s.mu.Lock()
	changed := s.interval != d
	s.interval = d
	s.mu.Unlock()
	if !changed {
		return
	}

	// Keep only the latest pending value.
	select {
	case <-s.intervalCh:
	default:
	}
	select {
	case s.intervalCh <- d:
	default:
	}
}

// Start runs the tick loop until ctx is done or Stop is called. Missed ticks
// are not replayed.
func (s *Scheduler) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return fmt.Errorf("scheduler already running")
	}
	defer close(s.stoppedCh)
	defer s.exited.Store(true)

	interval := s.Interval()
	logger.InfoCtx(ctx, "starting fleet scheduler",
		zap.Duration("interval", interval),
		zap.Int("workers", s.cfg.Workers),
		zap.Int("queue_size", s.cfg.QueueSize),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if s.cfg.RunOnStart {
		s.Tick(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			logger.InfoCtx(ctx, "fleet scheduler stopping due to context cancellation")
			s.stopPool()
			return nil
		case <-s.stopCh:
			logger.InfoCtx(ctx, "fleet scheduler stop requested")
			s.stopPool()
			return nil
		case d := <-s.intervalCh:
			ticker.Reset(d)
			logger.InfoCtx(ctx, "scheduler interval changed", zap.Duration("interval", d))
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Running reports whether the tick loop is active.
func (s *Scheduler) Running() bool {
	return s.running.Load() && !s.exited.Load()
}

// Stop asks the loop to exit and waits for in-flight refreshes or ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stopCh) })

	if !s.running.Load() {
		s.stopPool()
		return nil
	}

	select {
	case <-s.stoppedCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait stops accepting work and blocks until every submitted refresh is
// done. Used by one-shot callers after Tick.
func (s *Scheduler) Wait() {
	s.stopPool()
}

func (s *Scheduler) stopPool() {
	s.poolOnce.Do(s.pool.StopAndWait)
}

// Tick enumerates all profiles and submits a refresh for each one that is
// idle. It never waits for a refresh to finish.
func (s *Scheduler) Tick(ctx context.Context) TickStats {
	metrics.SchedulerTicksTotal.Inc()

	var stats TickStats
	profiles, err := s.profiles.ListAll(ctx)
	if err != nil {
		logger.ErrorCtx(ctx, fmt.Errorf("list profiles: %w", err))
		return stats
	}
	stats.Profiles = len(profiles)
	metrics.ProfilesTracked.Set(float64(len(profiles)))

	for _, p := range profiles {
		release, ok := s.refresher.TryAcquire(p.ID)
		if !ok {
			stats.DroppedInFlight++
			metrics.SchedulerDroppedTotal.WithLabelValues("in_flight").Inc()
			logger.Debug("refresh already in flight, skipping", zap.String("profile_id", p.ID))
			continue
		}

		if _, ok := s.pool.TrySubmit(s.task(ctx, p.ID, release)); !ok {
			release()
			stats.DroppedQueueFull++
			metrics.SchedulerDroppedTotal.WithLabelValues("queue_full").Inc()
			logger.Warn("refresh queue full, dropping", zap.String("profile_id", p.ID))
			continue
		}
		stats.Scheduled++
		metrics.SchedulerDispatchedTotal.Inc()
	}

	logger.InfoCtx(ctx, "scheduled profile refreshes",
		zap.Int("profiles", stats.Profiles),
		zap.Int("scheduled", stats.Scheduled),
		zap.Int("dropped_in_flight", stats.DroppedInFlight),
		zap.Int("dropped_queue_full", stats.DroppedQueueFull),
	)
	return stats
}

func (s *Scheduler) task(ctx context.Context, profileID string, release func()) func() {
	return func() {
		defer release()
		defer func() {
			if r := recover(); r != nil {
				logger.Error(fmt.Errorf("refresh panic: %v", r), zap.String("profile_id", profileID))
			}
		}()

		if ctx.Err() != nil {
			return
		}
		if _, err := s.refresher.Refresh(ctx, profileID); err != nil {
			logRefreshError(ctx, profileID, err)
		}
	}
}

func logRefreshError(ctx context.Context, profileID string, err error) {
	field := zap.String("profile_id", profileID)
	switch {
	case errors.Is(err, tracker.ErrSourceUnavailable), errors.Is(err, tracker.ErrNotFound):
		logger.WarnCtx(ctx, "profile refresh skipped", field, zap.Error(err))
	case errors.Is(err, context.Canceled):
		logger.Debug("profile refresh canceled", field)
	default:
		logger.ErrorCtx(ctx, err, field)
	}
}
