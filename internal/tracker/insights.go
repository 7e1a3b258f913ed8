package tracker

import (
	"context"
	"fmt"
	"time"

	"github.com/good-yellow-bee/followwatch/internal/models"
	"github.com/good-yellow-bee/followwatch/internal/storage"
)

const (
	// InsightsWindow is the lookback for the follower change figure.
	InsightsWindow = 24 * time.Hour
	// RecentHistoryLimit is the number of samples returned with insights.
	RecentHistoryLimit = 10
)

// Insights computes read-side summaries from the history ledger.
type Insights struct {
	history storage.HistoryRepository
	clock   Clock
}

// NewInsights creates an Insights reader. A nil clock uses RealClock.
func NewInsights(history storage.HistoryRepository, clock Clock) *Insights {
	if clock == nil {
		clock = RealClock{}
	}
	return &Insights{history: history, clock: clock}
}

// Change24h returns the profile's current count minus the count of the
// oldest sample recorded in the last 24 hours, or 0 when there is none.
func (i *Insights) Change24h(ctx context.Context, profile *models.Profile) (int64, error) {
	since := i.clock.Now().Add(-InsightsWindow)
	oldest, err := i.history.OldestSince(ctx, profile.ID, since)
	if err != nil {
		return 0, fmt.Errorf("oldest sample in window: %w", err)
	}
	if oldest == nil {
		return 0, nil
	}
	return profile.CurrentCount - oldest.Count, nil
}

// For builds the insights view of a profile.
func (i *Insights) For(ctx context.Context, profile *models.Profile) (*models.ProfileInsights, error) {
	change, err := i.Change24h(ctx, profile)
	if err != nil {
		return nil, err
	}
	recent, err := i.history.RangeSince(ctx, profile.ID, time.Time{}, RecentHistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("recent history: %w", err)
	}
	if recent == nil {
		recent = []*models.HistorySample{}
	}
	return &models.ProfileInsights{
		Profile:       profile,
		Change24h:     change,
		RecentHistory: recent,
	}, nil
}
