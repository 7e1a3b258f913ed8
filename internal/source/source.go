// Package source provides follower-count samples for tracked profiles.
package source

import (
	"context"
	"errors"

	"github.com/good-yellow-bee/followwatch/internal/models"
)

// ErrSourceUnavailable is wrapped by every fetch failure.
var ErrSourceUnavailable = errors.New("follower source unavailable")

// FollowerSource returns the current follower count of a profile.
type FollowerSource interface {
	Fetch(ctx context.Context, platform models.Platform, handle string) (int64, error)
}

// Func adapts a plain function to FollowerSource.
type Func func(ctx context.Context, platform models.Platform, handle string) (int64, error)

// Fetch calls f.
func (f Func) Fetch(ctx context.Context, platform models.Platform, handle string) (int64, error) {
	return f(ctx, platform, handle)
}

func key(platform models.Platform, handle string) string {
	return string(platform) + ":" + handle
}
