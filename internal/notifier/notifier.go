// Package notifier delivers milestone notifications to users.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/good-yellow-bee/followwatch/internal/logger"
	"github.com/good-yellow-bee/followwatch/internal/metrics"
)

// Notifier is the interface for all notification channels.
type Notifier interface {
	// Name returns the notifier name (e.g., "telegram", "slack").
	Name() string
	// Send delivers a notification. Returning nil for a recipient the
	// channel cannot reach is allowed.
	Send(ctx context.Context, n *Notification) error
	// Close releases any resources.
	Close() error
}

var (
	// ErrNotify is wrapped by every failed dispatch.
	ErrNotify = errors.New("notification failed")
	// ErrRateLimited is returned when a notification is dropped due to rate limiting.
	ErrRateLimited = fmt.Errorf("%w: rate limited", ErrNotify)
)

// Dispatcher fans a notification out to every registered notifier.
type Dispatcher struct {
	mu          sync.RWMutex
	notifiers   map[string]Notifier
	rateLimiter *RateLimiter
}

// NewDispatcher creates a new notification dispatcher with default rate limiting.
func NewDispatcher() *Dispatcher {
	return NewDispatcherWithRateLimit(DefaultRateLimitConfig())
}

// NewDispatcherWithRateLimit creates a dispatcher with custom rate limit configuration.
func NewDispatcherWithRateLimit(config RateLimitConfig) *Dispatcher {
	return &Dispatcher{
		notifiers:   make(map[string]Notifier),
		rateLimiter: NewRateLimiter(config),
	}
}

// Register adds a notifier to the dispatcher.
func (d *Dispatcher) Register(n Notifier) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.notifiers[n.Name()] = n
}

// Get returns a notifier by name.
func (d *Dispatcher) Get(name string) (Notifier, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n, ok := d.notifiers[name]
	return n, ok
}

// Names returns the registered notifier names in sorted order.
func (d *Dispatcher) Names() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.notifiers))
	for name := range d.notifiers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch sends n to all registered notifiers. The rate-limit token is
// refunded when every notifier fails.
func (d *Dispatcher) Dispatch(ctx context.Context, n *Notification) error {
	if d.rateLimiter != nil && !d.rateLimiter.Allow() {
		metrics.NotificationsRateLimited.Inc()
		return ErrRateLimited
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if len(d.notifiers) == 0 {
		return nil
	}

	var errs []error
	for name, nt := range d.notifiers {
		if err := nt.Send(ctx, n); err != nil {
			metrics.NotificationsTotal.WithLabelValues(name, "error").Inc()
			logger.Warn("notifier send failed",
				zap.String("notifier", name),
				zap.String("alert_id", n.AlertID),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		metrics.NotificationsTotal.WithLabelValues(name, "sent").Inc()
	}

	if len(errs) == 0 {
		return nil
	}
	if len(errs) == len(d.notifiers) && d.rateLimiter != nil {
		d.rateLimiter.Release()
	}
	return fmt.Errorf("%w: %w", ErrNotify, errors.Join(errs...))
}

// RateLimitStats returns the rate limiter statistics.
func (d *Dispatcher) RateLimitStats() RateLimitStats {
	if d.rateLimiter == nil {
		return RateLimitStats{}
	}
	return d.rateLimiter.Stats()
}

// Close closes all registered notifiers.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var errs []error
	for name, n := range d.notifiers {
		if err := n.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	d.notifiers = make(map[string]Notifier)

	return errors.Join(errs...)
}

// LogNotifier writes notifications to the structured log.
type LogNotifier struct{}

// Name returns "log".
func (LogNotifier) Name() string { return "log" }

// Send logs the notification.
func (LogNotifier) Send(ctx context.Context, n *Notification) error {
	logger.InfoCtx(ctx, n.Message(),
		zap.String("alert_id", n.AlertID),
		zap.String("user_id", n.UserID),
		zap.String("profile_id", n.ProfileID),
		zap.Int64("threshold", n.Threshold),
		zap.Int64("count", n.Count),
	)
	return nil
}

// Close is a no-op.
func (LogNotifier) Close() error { return nil }
