package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/good-yellow-bee/followwatch/internal/models"
)

func setupTestDB(t *testing.T) (*SQLiteStorage, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "followwatch-test-*")
	require.NoError(t, err)

	store := NewSQLiteStorage(filepath.Join(tmpDir, "test.db"))
	if err := store.Open(); err != nil {
		os.RemoveAll(tmpDir)
		t.Fatalf("open database: %v", err)
	}
	if err := store.Migrate(); err != nil {
		store.Close()
		os.RemoveAll(tmpDir)
		t.Fatalf("migrate database: %v", err)
	}

	cleanup := func() {
		store.Close()
		os.RemoveAll(tmpDir)
	}
	return store, cleanup
}

func createTestUser(t *testing.T, store *SQLiteStorage, username string) *models.User {
	t.Helper()
	user := models.NewUser(username)
	user.ID = uuid.New().String()
	user.PasswordHash = "hash"
	require.NoError(t, store.Users().Create(context.Background(), user))
	return user
}

func createTestProfile(t *testing.T, store *SQLiteStorage, userID, handle string) *models.Profile {
	t.Helper()
	profile := models.NewProfile(userID, models.PlatformTwitter, handle)
	profile.ID = uuid.New().String()
	require.NoError(t, store.Profiles().Create(context.Background(), profile))
	return profile
}

func createTestAlert(t *testing.T, store *SQLiteStorage, profile *models.Profile, threshold int64) *models.Alert {
	t.Helper()
	alert := models.NewAlert(profile.UserID, profile.ID, threshold)
	alert.ID = uuid.New().String()
	require.NoError(t, store.Alerts().Create(context.Background(), alert))
	return alert
}

func TestSQLiteStorage_Migrate(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	tables := []string{"users", "profiles", "follower_history", "alerts", "schema_migrations"}
	for _, table := range tables {
		var count int
		err := store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count)
		assert.NoError(t, err, "table %s should exist", table)
	}

	// Running again is a no-op.
	require.NoError(t, store.Migrate())
	var versions int
	require.NoError(t, store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations").Scan(&versions))
	assert.Equal(t, len(migrations), versions)
}

func TestUserRepository(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	user := createTestUser(t, store, "alice")

	got, err := store.Users().GetByUsername(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, user.ID, got.ID)
	assert.Empty(t, got.TelegramChatID)

	dup := models.NewUser("alice")
	dup.ID = uuid.New().String()
	dup.PasswordHash = "x"
	err = store.Users().Create(ctx, dup)
	assert.ErrorIs(t, err, ErrConflict)

	got.TelegramChatID = "12345"
	got.UpdatedAt = time.Now()
	require.NoError(t, store.Users().Update(ctx, got))
	got, err = store.Users().GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "12345", got.TelegramChatID)

	missing, err := store.Users().GetByID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	count, err := store.Users().Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestProfileRepository(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	alice := createTestUser(t, store, "alice")
	bob := createTestUser(t, store, "bob")
	profile := createTestProfile(t, store, alice.ID, "gopher")

	t.Run("duplicate handle for same owner", func(t *testing.T) {
		dup := models.NewProfile(alice.ID, models.PlatformTwitter, "@gopher")
		dup.ID = uuid.New().String()
		assert.ErrorIs(t, store.Profiles().Create(ctx, dup), ErrConflict)
	})

	t.Run("same handle for another owner", func(t *testing.T) {
		createTestProfile(t, store, bob.ID, "gopher")
	})

	t.Run("owner scoping", func(t *testing.T) {
		got, err := store.Profiles().GetForOwner(ctx, profile.ID, alice.ID)
		require.NoError(t, err)
		require.NotNil(t, got)

		got, err = store.Profiles().GetForOwner(ctx, profile.ID, bob.ID)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("update current count", func(t *testing.T) {
		at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		require.NoError(t, store.Profiles().UpdateCurrentCount(ctx, profile.ID, 1234, at))

		got, err := store.Profiles().GetByID(ctx, profile.ID)
		require.NoError(t, err)
		assert.EqualValues(t, 1234, got.CurrentCount)
		require.NotNil(t, got.LastCheckedAt)
		assert.True(t, at.Equal(*got.LastCheckedAt))

		err = store.Profiles().UpdateCurrentCount(ctx, "missing", 1, at)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("list", func(t *testing.T) {
		all, err := store.Profiles().ListAll(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 2)

		mine, err := store.Profiles().ListByOwner(ctx, alice.ID)
		require.NoError(t, err)
		assert.Len(t, mine, 1)
	})

	t.Run("delete cascades", func(t *testing.T) {
		createTestAlert(t, store, profile, 5000)
		require.NoError(t, store.History().Append(ctx, &models.HistorySample{
			ProfileID: profile.ID, Count: 10, RecordedAt: time.Now(),
		}))

		require.NoError(t, store.Profiles().Delete(ctx, profile.ID))

		alerts, err := store.Alerts().ListByProfile(ctx, profile.ID)
		require.NoError(t, err)
		assert.Empty(t, alerts)
		samples, err := store.History().RangeSince(ctx, profile.ID, time.Time{}, 0)
		require.NoError(t, err)
		assert.Empty(t, samples)

		assert.ErrorIs(t, store.Profiles().Delete(ctx, profile.ID), ErrNotFound)
	})
}

func TestAlertRepository_DuplicateActive(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	user := createTestUser(t, store, "alice")
	profile := createTestProfile(t, store, user.ID, "gopher")
	first := createTestAlert(t, store, profile, 1000)

	dup := models.NewAlert(user.ID, profile.ID, 1000)
	dup.ID = uuid.New().String()
	assert.ErrorIs(t, store.Alerts().Create(ctx, dup), ErrConflict)

	// A triggered alert that is still active keeps blocking.
	require.NoError(t, store.Alerts().MarkTriggered(ctx, first.ID, time.Now()))
	dup.ID = uuid.New().String()
	assert.ErrorIs(t, store.Alerts().Create(ctx, dup), ErrConflict)

	// Deactivating frees the slot.
	first, err := store.Alerts().GetByID(ctx, first.ID)
	require.NoError(t, err)
	first.Active = false
	require.NoError(t, store.Alerts().Update(ctx, first))
	dup.ID = uuid.New().String()
	assert.NoError(t, store.Alerts().Create(ctx, dup))

	// Reactivating the old one would now collide.
	first.Active = true
	assert.ErrorIs(t, store.Alerts().Update(ctx, first), ErrConflict)
}

func TestAlertRepository_TriggerLifecycle(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	user := createTestUser(t, store, "alice")
	profile := createTestProfile(t, store, user.ID, "gopher")
	low := createTestAlert(t, store, profile, 1000)
	high := createTestAlert(t, store, profile, 2000)
	inactive := createTestAlert(t, store, profile, 3000)
	inactive.Active = false
	require.NoError(t, store.Alerts().Update(ctx, inactive))

	pending, err := store.Alerts().ListActiveUntriggered(ctx, profile.ID)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, low.ID, pending[0].ID)
	assert.Equal(t, high.ID, pending[1].ID)

	at := time.Date(2026, 5, 1, 8, 30, 0, 0, time.UTC)
	require.NoError(t, store.Alerts().MarkTriggered(ctx, low.ID, at))
	err = store.Alerts().MarkTriggered(ctx, low.ID, at.Add(time.Hour))
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := store.Alerts().GetByID(ctx, low.ID)
	require.NoError(t, err)
	assert.True(t, got.Triggered)
	require.NotNil(t, got.TriggeredAt)
	assert.True(t, at.Equal(*got.TriggeredAt))

	pending, err = store.Alerts().ListActiveUntriggered(ctx, profile.ID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, high.ID, pending[0].ID)
}

func TestAlertRepository_OwnerScoping(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	alice := createTestUser(t, store, "alice")
	bob := createTestUser(t, store, "bob")
	alert := createTestAlert(t, store, createTestProfile(t, store, alice.ID, "gopher"), 10)

	got, err := store.Alerts().GetForOwner(ctx, alert.ID, bob.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	mine, err := store.Alerts().ListByOwner(ctx, alice.ID)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	require.NoError(t, store.Alerts().Delete(ctx, alert.ID))
	assert.ErrorIs(t, store.Alerts().Delete(ctx, alert.ID), ErrNotFound)
}

func TestHistoryRepository(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	user := createTestUser(t, store, "alice")
	profile := createTestProfile(t, store, user.ID, "gopher")
	now := time.Date(2026, 6, 10, 12, 0, 0, 0, time.UTC)

	for _, s := range []struct {
		ago   time.Duration
		count int64
	}{
		{30 * time.Hour, 100},
		{20 * time.Hour, 150},
		{10 * time.Hour, 180},
		{time.Hour, 200},
	} {
		require.NoError(t, store.History().Append(ctx, &models.HistorySample{
			ProfileID: profile.ID, Count: s.count, RecordedAt: now.Add(-s.ago),
		}))
	}

	since := now.Add(-24 * time.Hour)

	oldest, err := store.History().OldestSince(ctx, profile.ID, since)
	require.NoError(t, err)
	require.NotNil(t, oldest)
	assert.EqualValues(t, 150, oldest.Count)

	none, err := store.History().OldestSince(ctx, profile.ID, now)
	require.NoError(t, err)
	assert.Nil(t, none)

	window, err := store.History().RangeSince(ctx, profile.ID, since, 0)
	require.NoError(t, err)
	require.Len(t, window, 3)
	assert.EqualValues(t, 200, window[0].Count, "newest first")

	recent, err := store.History().RangeSince(ctx, profile.ID, time.Time{}, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.EqualValues(t, 180, recent[1].Count)

	pruned, err := store.History().DeleteBefore(ctx, since)
	require.NoError(t, err)
	assert.EqualValues(t, 1, pruned)
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	user := createTestUser(t, store, "alice")
	profile := createTestProfile(t, store, user.ID, "gopher")
	boom := errors.New("boom")

	err := store.WithTx(ctx, func(tx Tx) error {
		if err := tx.History().Append(ctx, &models.HistorySample{
			ProfileID: profile.ID, Count: 999, RecordedAt: time.Now(),
		}); err != nil {
			return err
		}
		if err := tx.Profiles().UpdateCurrentCount(ctx, profile.ID, 999, time.Now()); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := store.Profiles().GetByID(ctx, profile.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, got.CurrentCount)
	samples, err := store.History().RangeSince(ctx, profile.ID, time.Time{}, 0)
	require.NoError(t, err)
	assert.Empty(t, samples)
}

func TestWithTx_Commits(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	user := createTestUser(t, store, "alice")
	profile := createTestProfile(t, store, user.ID, "gopher")

	require.NoError(t, store.WithTx(ctx, func(tx Tx) error {
		return tx.Profiles().UpdateCurrentCount(ctx, profile.ID, 42, time.Now())
	}))

	got, err := store.Profiles().GetByID(ctx, profile.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 42, got.CurrentCount)
}
