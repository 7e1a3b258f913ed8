// Package tracker refreshes follower counts and triggers milestone alerts.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/good-yellow-bee/followwatch/internal/alerting"
	"github.com/good-yellow-bee/followwatch/internal/logger"
	"github.com/good-yellow-bee/followwatch/internal/metrics"
	"github.com/good-yellow-bee/followwatch/internal/models"
	"github.com/good-yellow-bee/followwatch/internal/notifier"
	"github.com/good-yellow-bee/followwatch/internal/source"
	"github.com/good-yellow-bee/followwatch/internal/storage"
)

// Dispatcher delivers notifications for triggered alerts.
type Dispatcher interface {
	Dispatch(ctx context.Context, n *notifier.Notification) error
}

// Config holds refresh timeouts.
type Config struct {
	SourceTimeout  time.Duration
	StorageTimeout time.Duration
	NotifyTimeout  time.Duration
}

// DefaultConfig returns the default refresh timeouts.
func DefaultConfig() Config {
	return Config{
		SourceTimeout:  5 * time.Second,
		StorageTimeout: 5 * time.Second,
		NotifyTimeout:  3 * time.Second,
	}
}

// RefreshResult describes one completed refresh.
type RefreshResult struct {
	ProfileID      string          `json:"profile_id"`
	OldCount       int64           `json:"old_count"`
	NewCount       int64           `json:"new_count"`
	CheckedAt      time.Time       `json:"checked_at"`
	Triggered      []*models.Alert `json:"triggered"`
	NotifyFailures int             `json:"notify_failures"`
}

// Refresher runs the refresh of a single profile.
type Refresher struct {
	store      storage.Storage
	source     source.FollowerSource
	dispatcher Dispatcher
	guard      *Guard
	clock      Clock
	cfg        Config
}

// Option configures a Refresher.
type Option func(*Refresher)

// WithClock overrides the clock.
func WithClock(c Clock) Option {
	return func(r *Refresher) { r.clock = c }
}

// WithGuard shares a per-profile guard with other callers.
func WithGuard(g *Guard) Option {
	return func(r *Refresher) { r.guard = g }
}

// NewRefresher creates a Refresher. A nil dispatcher disables notifications.
func NewRefresher(store storage.Storage, src source.FollowerSource, dispatcher Dispatcher, cfg Config, opts ...Option) *Refresher {
	def := DefaultConfig()
	if cfg.SourceTimeout <= 0 {
		cfg.SourceTimeout = def.SourceTimeout
	}
	if cfg.StorageTimeout <= 0 {
		cfg.StorageTimeout = def.StorageTimeout
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = def.NotifyTimeout
	}

	r := &Refresher{
		store:      store,
		source:     src,
		dispatcher: dispatcher,
		guard:      NewGuard(),
		clock:      RealClock{},
		cfg:        cfg,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Guard returns the per-profile guard used by RefreshExclusive.
func (r *Refresher) Guard() *Guard {
	return r.guard
}

// TryAcquire reserves profileID for a refresh without blocking.
func (r *Refresher) TryAcquire(profileID string) (release func(), ok bool) {
	return r.guard.TryAcquire(profileID)
}

// RefreshExclusive refreshes the profile unless a refresh is already running,
// in which case it returns ErrInProgress.
func (r *Refresher) RefreshExclusive(ctx context.Context, profileID string) (*RefreshResult, error) {
	release, ok := r.guard.TryAcquire(profileID)
	if !ok {
		metrics.RefreshTotal.WithLabelValues(resultLabel(ErrInProgress)).Inc()
		return nil, fmt.Errorf("profile %s: %w", profileID, ErrInProgress)
	}
	defer release()
	return r.Refresh(ctx, profileID)
}

// Refresh fetches a new sample for the profile, records it, and marks every
// pending alert whose threshold was crossed as triggered. History, count and
// trigger marks are written in one transaction. Notifications are sent after
// commit and their failure does not fail the refresh.
//
// Callers must hold the profile's guard.
func (r *Refresher) Refresh(ctx context.Context, profileID string) (result *RefreshResult, err error) {
	start := time.Now()
	defer func() {
		metrics.RefreshDuration.Observe(time.Since(start).Seconds())
		metrics.RefreshTotal.WithLabelValues(resultLabel(err)).Inc()
	}()

	profile, err := r.store.Profiles().GetByID(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("%w: load profile %s: %v", ErrStorage, profileID, err)
	}
	if profile == nil {
		return nil, fmt.Errorf("profile %s: %w", profileID, ErrNotFound)
	}

	newCount, err := r.fetch(ctx, profile)
	if err != nil {
		return nil, err
	}

	now := r.clock.Now()
	result = &RefreshResult{
		ProfileID: profile.ID,
		OldCount:  profile.CurrentCount,
		NewCount:  newCount,
		CheckedAt: now,
	}

	if err := r.persist(ctx, profile, result); err != nil {
		return nil, err
	}

	if len(result.Triggered) > 0 {
		metrics.AlertsTriggeredTotal.Add(float64(len(result.Triggered)))
		logger.Info("milestone alerts triggered",
			zap.String("profile_id", profile.ID),
			zap.String("profile", profile.Key()),
			zap.Int64("old_count", result.OldCount),
			zap.Int64("new_count", result.NewCount),
			zap.Int("count", len(result.Triggered)),
		)
		result.NotifyFailures = r.notify(ctx, profile, result)
	}

	logger.Debug("profile refreshed",
		zap.String("profile_id", profile.ID),
		zap.Int64("old_count", result.OldCount),
		zap.Int64("new_count", result.NewCount),
	)
	return result, nil
}

func (r *Refresher) fetch(ctx context.Context, profile *models.Profile) (int64, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, r.cfg.SourceTimeout)
	defer cancel()

	count, err := r.source.Fetch(fetchCtx, profile.Platform, profile.Handle)
	if err != nil {
		if !errors.Is(err, ErrSourceUnavailable) {
			err = fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
		}
		return 0, fmt.Errorf("profile %s: %w", profile.ID, err)
	}
	return count, nil
}

func (r *Refresher) persist(ctx context.Context, profile *models.Profile, result *RefreshResult) error {
	txCtx, cancel := context.WithTimeout(ctx, r.cfg.StorageTimeout)
	defer cancel()

	var triggered []*models.Alert
	err := r.store.WithTx(txCtx, func(tx storage.Tx) error {
		// Count first: a profile deleted since load must report ErrNotFound.
		if err := tx.Profiles().UpdateCurrentCount(txCtx, profile.ID, result.NewCount, result.CheckedAt); err != nil {
			return err
		}
		sample := &models.HistorySample{
			ProfileID:  profile.ID,
			Count:      result.NewCount,
			RecordedAt: result.CheckedAt,
		}
		if err := tx.History().Append(txCtx, sample); err != nil {
			return err
		}

		pending, err := tx.Alerts().ListActiveUntriggered(txCtx, profile.ID)
		if err != nil {
			return err
		}
		crossed := alerting.Evaluate(pending, result.OldCount, result.NewCount)
		for _, alert := range crossed {
			if err := tx.Alerts().MarkTriggered(txCtx, alert.ID, result.CheckedAt); err != nil {
				return err
			}
			alert.MarkTriggered(result.CheckedAt)
		}
		triggered = crossed
		return nil
	})
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("profile %s deleted during refresh: %w", profile.ID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("%w: refresh profile %s: %v", ErrStorage, profile.ID, err)
	}

	result.Triggered = triggered
	return nil
}

// notify runs after commit. It is bounded by NotifyTimeout and survives
// cancellation of ctx so that committed triggers still get a delivery attempt.
func (r *Refresher) notify(ctx context.Context, profile *models.Profile, result *RefreshResult) int {
	if r.dispatcher == nil {
		return 0
	}

	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.NotifyTimeout)
	defer cancel()

	owner, err := r.store.Users().GetByID(notifyCtx, profile.UserID)
	if err != nil {
		logger.Warn("load alert owner", zap.String("user_id", profile.UserID), zap.Error(err))
	}

	failures := 0
	for _, alert := range result.Triggered {
		n := notifier.NewNotification(owner, profile, alert, result.NewCount)
		if err := r.dispatcher.Dispatch(notifyCtx, n); err != nil {
			failures++
			logger.Warn("notification failed",
				zap.String("alert_id", alert.ID),
				zap.String("profile_id", profile.ID),
				zap.Error(err),
			)
		}
	}
	return failures
}
