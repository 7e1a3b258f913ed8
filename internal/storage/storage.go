// Package storage provides database storage interfaces and implementations.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/good-yellow-bee/followwatch/internal/models"
)

var (
	// ErrNotFound is returned when an update or delete targets a missing row.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a write violates a uniqueness rule.
	ErrConflict = errors.New("conflict")
)

// Storage is the main interface for database operations.
type Storage interface {
	// Open initializes the database connection.
	Open() error
	// Close closes the database connection.
	Close() error
	// Migrate runs database migrations.
	Migrate() error

	// WithTx runs fn inside a single transaction. The transaction is
	// committed when fn returns nil and rolled back otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Repository accessors
	Users() UserRepository
	Profiles() ProfileRepository
	Alerts() AlertRepository
	History() HistoryRepository
}

// Tx exposes the repositories bound to one open transaction.
type Tx interface {
	Profiles() ProfileRepository
	Alerts() AlertRepository
	History() HistoryRepository
}

// UserRepository defines operations for user management.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int64, error)
}

// ProfileRepository defines operations for tracked profiles.
type ProfileRepository interface {
	Create(ctx context.Context, profile *models.Profile) error
	GetByID(ctx context.Context, id string) (*models.Profile, error)
	// GetForOwner returns nil when the profile is missing or owned by someone else.
	GetForOwner(ctx context.Context, id, userID string) (*models.Profile, error)
	Update(ctx context.Context, profile *models.Profile) error
	Delete(ctx context.Context, id string) error
	ListByOwner(ctx context.Context, userID string) ([]*models.Profile, error)
	ListAll(ctx context.Context) ([]*models.Profile, error)
	Count(ctx context.Context) (int64, error)
	UpdateCurrentCount(ctx context.Context, id string, count int64, checkedAt time.Time) error
}

// AlertRepository defines operations for milestone alerts.
type AlertRepository interface {
	Create(ctx context.Context, alert *models.Alert) error
	GetByID(ctx context.Context, id string) (*models.Alert, error)
	GetForOwner(ctx context.Context, id, userID string) (*models.Alert, error)
	Update(ctx context.Context, alert *models.Alert) error
	Delete(ctx context.Context, id string) error
	ListByOwner(ctx context.Context, userID string) ([]*models.Alert, error)
	ListByProfile(ctx context.Context, profileID string) ([]*models.Alert, error)
	ListActiveUntriggered(ctx context.Context, profileID string) ([]*models.Alert, error)
	MarkTriggered(ctx context.Context, id string, at time.Time) error
}

// HistoryRepository defines operations for the follower-count ledger.
type HistoryRepository interface {
	Append(ctx context.Context, sample *models.HistorySample) error
	// RangeSince returns samples recorded at or after since, newest first.
	// A zero since means no lower bound and a non-positive limit means no limit.
	RangeSince(ctx context.Context, profileID string, since time.Time, limit int) ([]*models.HistorySample, error)
	// OldestSince returns the earliest sample recorded at or after since, or nil.
	OldestSince(ctx context.Context, profileID string, since time.Time) (*models.HistorySample, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}
