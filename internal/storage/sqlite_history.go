package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/good-yellow-bee/followwatch/internal/models"
)

type sqliteHistoryRepo struct {
	db dbtx
}

func (r *sqliteHistoryRepo) Append(ctx context.Context, sample *models.HistorySample) error {
	result, err := r.db.ExecContext(ctx,
		"INSERT INTO follower_history (profile_id, count, recorded_at) VALUES (?, ?, ?)",
		sample.ProfileID, sample.Count, sample.RecordedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert history sample: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("history sample id: %w", err)
	}
	sample.ID = id
	return nil
}

func (r *sqliteHistoryRepo) RangeSince(ctx context.Context, profileID string, since time.Time, limit int) ([]*models.HistorySample, error) {
	query := `SELECT id, profile_id, count, recorded_at FROM follower_history WHERE profile_id = ?`
	args := []any{profileID}
	if !since.IsZero() {
		query += ` AND recorded_at >= ?`
		args = append(args, since.UnixNano())
	}
	query += ` ORDER BY recorded_at DESC, id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var samples []*models.HistorySample
	for rows.Next() {
		sample, err := scanSample(rows)
		if err != nil {
			return nil, err
		}
		samples = append(samples, sample)
	}
	return samples, rows.Err()
}

func (r *sqliteHistoryRepo) OldestSince(ctx context.Context, profileID string, since time.Time) (*models.HistorySample, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, profile_id, count, recorded_at FROM follower_history
		WHERE profile_id = ? AND recorded_at >= ?
		ORDER BY recorded_at ASC, id ASC
		LIMIT 1
	`, profileID, since.UnixNano())

	sample, err := scanSample(row)
	if err == sql.ErrNoRows {
		//nolint:nilnil
		return nil, nil
	}
	return sample, err
}

func (r *sqliteHistoryRepo) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM follower_history WHERE recorded_at < ?", before.UnixNano(),
	)
	if err != nil {
		return 0, fmt.Errorf("delete history: %w", err)
	}
	return result.RowsAffected()
}

func scanSample(row scanner) (*models.HistorySample, error) {
	sample := &models.HistorySample{}
	var recordedAt int64
	err := row.Scan(&sample.ID, &sample.ProfileID, &sample.Count, &recordedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan history sample: %w", err)
	}
	sample.RecordedAt = time.Unix(0, recordedAt).UTC()
	return sample, nil
}
