package tracker

import (
	"errors"

	"github.com/good-yellow-bee/followwatch/internal/source"
	"github.com/good-yellow-bee/followwatch/internal/storage"
)

var (
	// ErrNotFound is returned when the profile does not exist.
	ErrNotFound = storage.ErrNotFound
	// ErrSourceUnavailable is returned when no sample could be fetched.
	// Nothing is written in that case.
	ErrSourceUnavailable = source.ErrSourceUnavailable
	// ErrStorage is returned when reading or persisting state fails.
	// The refresh transaction is rolled back.
	ErrStorage = errors.New("storage error")
	// ErrInProgress is returned by RefreshExclusive when the profile is
	// already being refreshed.
	ErrInProgress = errors.New("refresh already in progress")
)

// resultLabel maps a refresh error to its metrics label.
func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrSourceUnavailable):
		return "source_unavailable"
	case errors.Is(err, ErrInProgress):
		return "in_progress"
	default:
		return "storage_error"
	}
}
