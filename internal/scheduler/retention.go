package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/good-yellow-bee/followwatch/internal/logger"
	"github.com/good-yellow-bee/followwatch/internal/metrics"
)

// HistoryPruner deletes follower history older than a cutoff.
type HistoryPruner interface {
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// Retention periodically prunes follower history.
type Retention struct {
	history  HistoryPruner
	maxAge   time.Duration
	interval time.Duration
	now      func() time.Time
}

// NewRetention creates a Retention job. A non-positive maxAge disables pruning.
func NewRetention(history HistoryPruner, maxAge, interval time.Duration) *Retention {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Retention{
		history:  history,
		maxAge:   maxAge,
		interval: interval,
		now:      time.Now,
	}
}

// Enabled reports whether the job does anything.
func (r *Retention) Enabled() bool {
	return r.maxAge > 0
}

// Prune deletes samples older than maxAge.
func (r *Retention) Prune(ctx context.Context) (int64, error) {
	if !r.Enabled() {
		return 0, nil
	}
	cutoff := r.now().UTC().Add(-r.maxAge)
	n, err := r.history.DeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	metrics.HistoryPrunedTotal.Add(float64(n))
	if n > 0 {
		logger.Info("pruned follower history", zap.Int64("deleted", n), zap.Time("before", cutoff))
	}
	return n, nil
}

// Start prunes on every interval until ctx is done.
func (r *Retention) Start(ctx context.Context) error {
	if !r.Enabled() {
		return nil
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := r.Prune(ctx); err != nil {
				logger.ErrorCtx(ctx, err)
			}
		}
	}
}
