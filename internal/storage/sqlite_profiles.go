package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/good-yellow-bee/followwatch/internal/models"
)

type sqliteProfileRepo struct {
	db dbtx
}

const profileColumns = `id, user_id, platform, handle, current_count, last_checked_at, created_at, updated_at`

func (r *sqliteProfileRepo) Create(ctx context.Context, profile *models.Profile) error {
	query := `INSERT INTO profiles (` + profileColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		profile.ID, profile.UserID, profile.Platform, profile.Handle, profile.CurrentCount,
		nullTime(profile.LastCheckedAt), profile.CreatedAt.UTC(), profile.UpdatedAt.UTC(),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("profile %s already tracked: %w", profile.Key(), ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("insert profile: %w", err)
	}
	return nil
}

func (r *sqliteProfileRepo) GetByID(ctx context.Context, id string) (*models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = ?`
	return r.scanProfile(r.db.QueryRowContext(ctx, query, id))
}

func (r *sqliteProfileRepo) GetForOwner(ctx context.Context, id, userID string) (*models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = ? AND user_id = ?`
	return r.scanProfile(r.db.QueryRowContext(ctx, query, id, userID))
}

func (r *sqliteProfileRepo) Update(ctx context.Context, profile *models.Profile) error {
	query := `UPDATE profiles SET platform = ?, handle = ?, updated_at = ? WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query,
		profile.Platform, profile.Handle, profile.UpdatedAt.UTC(), profile.ID,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("profile %s already tracked: %w", profile.Key(), ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("profile %s: %w", profile.ID, ErrNotFound)
	}
	return nil
}

func (r *sqliteProfileRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM profiles WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("profile %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *sqliteProfileRepo) ListByOwner(ctx context.Context, userID string) ([]*models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE user_id = ? ORDER BY created_at, id`
	return r.queryProfiles(ctx, query, userID)
}

func (r *sqliteProfileRepo) ListAll(ctx context.Context) ([]*models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles ORDER BY id`
	return r.queryProfiles(ctx, query)
}

func (r *sqliteProfileRepo) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM profiles").Scan(&count); err != nil {
		return 0, fmt.Errorf("count profiles: %w", err)
	}
	return count, nil
}

func (r *sqliteProfileRepo) UpdateCurrentCount(ctx context.Context, id string, count int64, checkedAt time.Time) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE profiles SET current_count = ?, last_checked_at = ?, updated_at = ? WHERE id = ?",
		count, checkedAt.UTC(), checkedAt.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("update profile count: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("profile %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *sqliteProfileRepo) queryProfiles(ctx context.Context, query string, args ...any) ([]*models.Profile, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query profiles: %w", err)
	}
	defer rows.Close()

	var profiles []*models.Profile
	for rows.Next() {
		profile, err := r.scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, profile)
	}
	return profiles, rows.Err()
}

func (r *sqliteProfileRepo) scanProfile(row scanner) (*models.Profile, error) {
	profile := &models.Profile{}
	var lastChecked sql.NullTime
	err := row.Scan(
		&profile.ID, &profile.UserID, &profile.Platform, &profile.Handle, &profile.CurrentCount,
		&lastChecked, &profile.CreatedAt, &profile.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		//nolint:nilnil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan profile: %w", err)
	}
	profile.LastCheckedAt = timePtr(lastChecked)
	return profile, nil
}
