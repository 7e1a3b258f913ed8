package notifier

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/good-yellow-bee/followwatch/internal/models"
)

type mockNotifier struct {
	mu      sync.Mutex
	name    string
	sendErr error
	sent    []*Notification
	closed  bool
}

func (m *mockNotifier) Name() string { return m.name }

func (m *mockNotifier) Send(_ context.Context, n *Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent = append(m.sent, n)
	return nil
}

func (m *mockNotifier) Close() error {
	m.closed = true
	return nil
}

func testNotification() *Notification {
	return &Notification{
		AlertID:   "a1",
		UserID:    "u1",
		ChatID:    "42",
		ProfileID: "p1",
		Platform:  models.PlatformTwitter,
		Handle:    "gopher",
		Threshold: 1000,
		Count:     1100,
	}
}

func TestNotificationMessage(t *testing.T) {
	assert.Equal(t,
		"Milestone reached! @gopher on twitter has reached 1000 followers!",
		testNotification().Message(),
	)
}

func TestNewNotification(t *testing.T) {
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	user := &models.User{ID: "u1", TelegramChatID: "99"}
	profile := &models.Profile{ID: "p1", Platform: models.PlatformYouTube, Handle: "chan"}
	alert := &models.Alert{ID: "a1", UserID: "u1", Threshold: 500, TriggeredAt: &at}

	n := NewNotification(user, profile, alert, 512)
	assert.Equal(t, "99", n.ChatID)
	assert.Equal(t, at, n.TriggeredAt)
	assert.EqualValues(t, 512, n.Count)

	n = NewNotification(nil, profile, alert, 512)
	assert.Empty(t, n.ChatID)
}

func TestDispatcher_SendsToAll(t *testing.T) {
	d := NewDispatcher()
	a := &mockNotifier{name: "a"}
	b := &mockNotifier{name: "b"}
	d.Register(a)
	d.Register(b)

	require.NoError(t, d.Dispatch(context.Background(), testNotification()))
	assert.Len(t, a.sent, 1)
	assert.Len(t, b.sent, 1)
	assert.Equal(t, []string{"a", "b"}, d.Names())
}

func TestDispatcher_PartialFailure(t *testing.T) {
	d := NewDispatcherWithRateLimit(RateLimitConfig{MaxPerWindow: 5, Window: time.Minute, Enabled: true})
	d.Register(&mockNotifier{name: "ok"})
	d.Register(&mockNotifier{name: "bad", sendErr: errors.New("boom")})

	err := d.Dispatch(context.Background(), testNotification())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotify)
	assert.Contains(t, err.Error(), "bad: boom")

	// One notifier succeeded, so the token is kept.
	assert.Equal(t, 1, d.RateLimitStats().CurrentCount)
}

func TestDispatcher_AllFailRefundsToken(t *testing.T) {
	d := NewDispatcherWithRateLimit(RateLimitConfig{MaxPerWindow: 1, Window: time.Minute, Enabled: true})
	bad := &mockNotifier{name: "bad", sendErr: errors.New("down")}
	d.Register(bad)

	err := d.Dispatch(context.Background(), testNotification())
	assert.ErrorIs(t, err, ErrNotify)
	assert.Equal(t, 0, d.RateLimitStats().CurrentCount)

	bad.sendErr = nil
	assert.NoError(t, d.Dispatch(context.Background(), testNotification()))
}

func TestDispatcher_RateLimited(t *testing.T) {
	d := NewDispatcherWithRateLimit(RateLimitConfig{MaxPerWindow: 1, Window: time.Minute, Enabled: true})
	d.Register(&mockNotifier{name: "a"})

	require.NoError(t, d.Dispatch(context.Background(), testNotification()))
	err := d.Dispatch(context.Background(), testNotification())
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.ErrorIs(t, err, ErrNotify)
	assert.EqualValues(t, 1, d.RateLimitStats().Dropped)
}

func TestDispatcher_Close(t *testing.T) {
	d := NewDispatcher()
	m := &mockNotifier{name: "a"}
	d.Register(m)

	require.NoError(t, d.Close())
	assert.True(t, m.closed)
	_, ok := d.Get("a")
	assert.False(t, ok)
}

func TestLogNotifier(t *testing.T) {
	var n LogNotifier
	assert.Equal(t, "log", n.Name())
	assert.NoError(t, n.Send(context.Background(), testNotification()))
}
