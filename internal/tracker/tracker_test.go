package tracker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/good-yellow-bee/followwatch/internal/models"
	"github.com/good-yellow-bee/followwatch/internal/notifier"
	"github.com/good-yellow-bee/followwatch/internal/source"
	"github.com/good-yellow-bee/followwatch/internal/storage"
)

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type scriptedSource struct {
	mu     sync.Mutex
	counts []int64
	err    error
	calls  int
}

func (s *scriptedSource) Fetch(ctx context.Context, _ models.Platform, _ string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return 0, s.err
	}
	if len(s.counts) == 0 {
		return 0, errors.New("script exhausted")
	}
	n := s.counts[0]
	s.counts = s.counts[1:]
	return n, nil
}

type recordingDispatcher struct {
	mu   sync.Mutex
	sent []*notifier.Notification
	err  error
}

func (d *recordingDispatcher) Dispatch(_ context.Context, n *notifier.Notification) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, n)
	return d.err
}

// hangingDispatcher blocks every delivery until its context ends.
type hangingDispatcher struct {
	entered chan struct{}
}

func (d *hangingDispatcher) Dispatch(ctx context.Context, _ *notifier.Notification) error {
	select {
	case d.entered <- struct{}{}:
	default:
	}
	<-ctx.Done()
	return ctx.Err()
}

type fixture struct {
	store    *storage.SQLiteStorage
	user     *models.User
	profile  *models.Profile
	clock    *fixedClock
	dispatch *recordingDispatcher
}

func setupFixture(t *testing.T) *fixture {
	t.Helper()

	dir, err := os.MkdirTemp("", "followwatch-tracker-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	store := storage.NewSQLiteStorage(filepath.Join(dir, "test.db"))
	require.NoError(t, store.Open())
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Migrate())

	ctx := context.Background()
	user := models.NewUser("alice")
	user.ID = uuid.New().String()
	user.PasswordHash = "x"
	user.TelegramChatID = "777"
	require.NoError(t, store.Users().Create(ctx, user))

	profile := models.NewProfile(user.ID, models.PlatformTwitter, "gopher")
	profile.ID = uuid.New().String()
	require.NoError(t, store.Profiles().Create(ctx, profile))

	return &fixture{
		store:    store,
		user:     user,
		profile:  profile,
		clock:    &fixedClock{now: time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)},
		dispatch: &recordingDispatcher{},
	}
}

func (f *fixture) refresher(src source.FollowerSource) *Refresher {
	return NewRefresher(f.store, src, f.dispatch, DefaultConfig(), WithClock(f.clock))
}

func (f *fixture) addAlert(t *testing.T, threshold int64) *models.Alert {
	t.Helper()
	a := models.NewAlert(f.user.ID, f.profile.ID, threshold)
	a.ID = uuid.New().String()
	require.NoError(t, f.store.Alerts().Create(context.Background(), a))
	return a
}

func (f *fixture) historyLen(t *testing.T) int {
	t.Helper()
	samples, err := f.store.History().RangeSince(context.Background(), f.profile.ID, time.Time{}, 0)
	require.NoError(t, err)
	return len(samples)
}

func TestRefresh_TriggersOnceAcrossRefreshes(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	alert := f.addAlert(t, 1000)
	r := f.refresher(&scriptedSource{counts: []int64{900, 1100, 1200}})

	res, err := r.Refresh(ctx, f.profile.ID)
	require.NoError(t, err)
	assert.Empty(t, res.Triggered)
	assert.EqualValues(t, 0, res.OldCount)
	assert.EqualValues(t, 900, res.NewCount)

	f.clock.Advance(5 * time.Minute)
	res, err = r.Refresh(ctx, f.profile.ID)
	require.NoError(t, err)
	require.Len(t, res.Triggered, 1)
	assert.Equal(t, alert.ID, res.Triggered[0].ID)

	f.clock.Advance(5 * time.Minute)
	res, err = r.Refresh(ctx, f.profile.ID)
	require.NoError(t, err)
	assert.Empty(t, res.Triggered)

	require.Len(t, f.dispatch.sent, 1)
	n := f.dispatch.sent[0]
	assert.Equal(t, "777", n.ChatID)
	assert.EqualValues(t, 1000, n.Threshold)
	assert.EqualValues(t, 1100, n.Count)

	got, err := f.store.Alerts().GetByID(ctx, alert.ID)
	require.NoError(t, err)
	assert.True(t, got.Triggered)
	require.NotNil(t, got.TriggeredAt)
	assert.True(t, got.TriggeredAt.Equal(f.clock.Now().Add(-5*time.Minute)))

	profile, err := f.store.Profiles().GetByID(ctx, f.profile.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1200, profile.CurrentCount)
	assert.Equal(t, 3, f.historyLen(t))
}

func TestRefresh_MultipleThresholdsInOneJump(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	f.addAlert(t, 1000)
	f.addAlert(t, 1500)
	f.addAlert(t, 5000)
	r := f.refresher(&scriptedSource{counts: []int64{900, 1600}})

	_, err := r.Refresh(ctx, f.profile.ID)
	require.NoError(t, err)
	res, err := r.Refresh(ctx, f.profile.ID)
	require.NoError(t, err)

	require.Len(t, res.Triggered, 2)
	assert.EqualValues(t, 1000, res.Triggered[0].Threshold)
	assert.EqualValues(t, 1500, res.Triggered[1].Threshold)
	assert.Len(t, f.dispatch.sent, 2)

	pending, err := f.store.Alerts().ListActiveUntriggered(ctx, f.profile.ID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.EqualValues(t, 5000, pending[0].Threshold)
}

func TestRefresh_InactiveAlertNeverTriggers(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	a := f.addAlert(t, 1000)
	a.Active = false
	require.NoError(t, f.store.Alerts().Update(ctx, a))

	r := f.refresher(&scriptedSource{counts: []int64{500, 2000}})
	_, err := r.Refresh(ctx, f.profile.ID)
	require.NoError(t, err)
	res, err := r.Refresh(ctx, f.profile.ID)
	require.NoError(t, err)
	assert.Empty(t, res.Triggered)
	assert.Empty(t, f.dispatch.sent)
}

func TestRefresh_SourceFailureWritesNothing(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	f.addAlert(t, 10)

	r := f.refresher(&scriptedSource{err: errors.New("connection refused")})
	_, err := r.Refresh(ctx, f.profile.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSourceUnavailable)

	profile, err := f.store.Profiles().GetByID(ctx, f.profile.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, profile.CurrentCount)
	assert.Nil(t, profile.LastCheckedAt)
	assert.Equal(t, 0, f.historyLen(t))
	assert.Empty(t, f.dispatch.sent)
}

func TestRefresh_SourceTimeout(t *testing.T) {
	f := setupFixture(t)
	slow := source.Func(func(ctx context.Context, _ models.Platform, _ string) (int64, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	r := NewRefresher(f.store, slow, f.dispatch, Config{SourceTimeout: 20 * time.Millisecond}, WithClock(f.clock))

	_, err := r.Refresh(context.Background(), f.profile.ID)
	assert.ErrorIs(t, err, ErrSourceUnavailable)
	assert.Equal(t, 0, f.historyLen(t))
}

func TestRefresh_StorageFailureRollsBack(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	f.addAlert(t, 100)

	// Fail the trigger write after history and count were already written.
	_, err := f.store.DB().ExecContext(ctx, `
		CREATE TRIGGER fail_trigger_write BEFORE UPDATE OF triggered ON alerts
		BEGIN SELECT RAISE(ABORT, 'disk full'); END;
	`)
	require.NoError(t, err)

	r := f.refresher(&scriptedSource{counts: []int64{500}})
	_, err = r.Refresh(ctx, f.profile.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStorage)

	profile, err := f.store.Profiles().GetByID(ctx, f.profile.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, profile.CurrentCount)
	assert.Equal(t, 0, f.historyLen(t))

	pending, err := f.store.Alerts().ListActiveUntriggered(ctx, f.profile.ID)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
	assert.Empty(t, f.dispatch.sent)
}

func TestRefresh_ProfileNotFound(t *testing.T) {
	f := setupFixture(t)
	src := &scriptedSource{counts: []int64{1}}
	r := f.refresher(src)

	_, err := r.Refresh(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, src.calls)
}

func TestRefresh_NotifyFailureKeepsTrigger(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	alert := f.addAlert(t, 100)
	f.dispatch.err = errors.New("telegram down")

	r := f.refresher(&scriptedSource{counts: []int64{50, 150}})
	_, err := r.Refresh(ctx, f.profile.ID)
	require.NoError(t, err)
	res, err := r.Refresh(ctx, f.profile.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.NotifyFailures)

	got, err := f.store.Alerts().GetByID(ctx, alert.ID)
	require.NoError(t, err)
	assert.True(t, got.Triggered)
}

func TestRefresh_HungNotifierReleasesGuard(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	alert := f.addAlert(t, 100)

	cfg := DefaultConfig()
	cfg.NotifyTimeout = 100 * time.Millisecond
	dispatch := &hangingDispatcher{entered: make(chan struct{}, 1)}
	r := NewRefresher(f.store, &scriptedSource{counts: []int64{150, 160}}, dispatch, cfg, WithClock(f.clock))

	type outcome struct {
		res *RefreshResult
		err error
	}
	done := make(chan outcome, 1)
	start := time.Now()
	go func() {
		res, err := r.RefreshExclusive(ctx, f.profile.ID)
		done <- outcome{res, err}
	}()

	select {
	case <-dispatch.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("notifier was never called")
	}
	assert.Equal(t, 1, r.Guard().InFlight())

	var out outcome
	select {
	case out = <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("refresh blocked on a hung notifier")
	}
	require.NoError(t, out.err)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 1, out.res.NotifyFailures)
	assert.Equal(t, 0, r.Guard().InFlight())

	got, err := f.store.Alerts().GetByID(ctx, alert.ID)
	require.NoError(t, err)
	assert.True(t, got.Triggered)

	res, err := r.RefreshExclusive(ctx, f.profile.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 160, res.NewCount)
	assert.Empty(t, res.Triggered)
}

func TestRefresh_ProfileDeletedDuringFetch(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	src := source.Func(func(ctx context.Context, _ models.Platform, _ string) (int64, error) {
		require.NoError(t, f.store.Profiles().Delete(ctx, f.profile.ID))
		return 10, nil
	})
	_, err := f.refresher(src).Refresh(ctx, f.profile.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrStorage)
}

func TestRefresh_NoAlerts(t *testing.T) {
	f := setupFixture(t)
	r := f.refresher(&scriptedSource{counts: []int64{42}})

	res, err := r.Refresh(context.Background(), f.profile.ID)
	require.NoError(t, err)
	assert.Empty(t, res.Triggered)
	assert.Equal(t, 1, f.historyLen(t))
}

func TestRefreshExclusive_RejectsConcurrentRefresh(t *testing.T) {
	f := setupFixture(t)
	r := f.refresher(&scriptedSource{counts: []int64{1}})

	release, ok := r.TryAcquire(f.profile.ID)
	require.True(t, ok)

	_, err := r.RefreshExclusive(context.Background(), f.profile.ID)
	assert.ErrorIs(t, err, ErrInProgress)

	release()
	_, err = r.RefreshExclusive(context.Background(), f.profile.ID)
	assert.NoError(t, err)
	assert.Equal(t, 0, r.Guard().InFlight())
}

func TestGuard(t *testing.T) {
	g := NewGuard()

	release, ok := g.TryAcquire("p1")
	require.True(t, ok)
	_, ok = g.TryAcquire("p1")
	assert.False(t, ok)

	other, ok := g.TryAcquire("p2")
	require.True(t, ok)
	assert.Equal(t, 2, g.InFlight())

	release()
	release()
	other()
	assert.Equal(t, 0, g.InFlight())

	_, ok = g.TryAcquire("p1")
	assert.True(t, ok)
}

func TestInsights_Change24h(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	now := f.clock.Now()

	for _, s := range []struct {
		ago   time.Duration
		count int64
	}{
		{30 * time.Hour, 90},
		{20 * time.Hour, 150},
		{2 * time.Hour, 180},
	} {
		require.NoError(t, f.store.History().Append(ctx, &models.HistorySample{
			ProfileID: f.profile.ID, Count: s.count, RecordedAt: now.Add(-s.ago),
		}))
	}
	require.NoError(t, f.store.Profiles().UpdateCurrentCount(ctx, f.profile.ID, 200, now))
	profile, err := f.store.Profiles().GetByID(ctx, f.profile.ID)
	require.NoError(t, err)

	ins := NewInsights(f.store.History(), f.clock)
	view, err := ins.For(ctx, profile)
	require.NoError(t, err)
	assert.EqualValues(t, 50, view.Change24h)
	require.Len(t, view.RecentHistory, 3)
	assert.EqualValues(t, 180, view.RecentHistory[0].Count)
}

func TestInsights_EmptyWindow(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.History().Append(ctx, &models.HistorySample{
		ProfileID: f.profile.ID, Count: 10, RecordedAt: f.clock.Now().Add(-48 * time.Hour),
	}))

	ins := NewInsights(f.store.History(), f.clock)
	change, err := ins.Change24h(ctx, &models.Profile{ID: f.profile.ID, CurrentCount: 500})
	require.NoError(t, err)
	assert.Zero(t, change)
}

func TestInsights_RecentHistoryIsCapped(t *testing.T) {
	f := setupFixture(t)
	r := f.refresher(source.NewRandomWalk(9))
	for i := 0; i < RecentHistoryLimit+5; i++ {
		f.clock.Advance(time.Minute)
		_, err := r.Refresh(context.Background(), f.profile.ID)
		require.NoError(t, err)
	}

	view, err := NewInsights(f.store.History(), f.clock).For(context.Background(), f.profile)
	require.NoError(t, err)
	assert.Len(t, view.RecentHistory, RecentHistoryLimit)
}
