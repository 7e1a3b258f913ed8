package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/good-yellow-bee/followwatch/internal/models"
)

type sqliteAlertRepo struct {
	db dbtx
}

const alertColumns = `id, profile_id, user_id, threshold, active, triggered, triggered_at, created_at, updated_at`

// Create inserts an alert. A second active alert with the same user, profile
// and threshold is rejected with ErrConflict, whether or not the first has
// already triggered.
func (r *sqliteAlertRepo) Create(ctx context.Context, alert *models.Alert) error {
	query := `INSERT INTO alerts (` + alertColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		alert.ID, alert.ProfileID, alert.UserID, alert.Threshold,
		boolToInt(alert.Active), boolToInt(alert.Triggered), nullTime(alert.TriggeredAt),
		alert.CreatedAt.UTC(), alert.UpdatedAt.UTC(),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("active alert for threshold %d already exists: %w", alert.Threshold, ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

func (r *sqliteAlertRepo) GetByID(ctx context.Context, id string) (*models.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE id = ?`
	return r.scanAlert(r.db.QueryRowContext(ctx, query, id))
}

func (r *sqliteAlertRepo) GetForOwner(ctx context.Context, id, userID string) (*models.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE id = ? AND user_id = ?`
	return r.scanAlert(r.db.QueryRowContext(ctx, query, id, userID))
}

// Update writes the user-editable fields. Trigger state is only changed by MarkTriggered.
func (r *sqliteAlertRepo) Update(ctx context.Context, alert *models.Alert) error {
	query := `UPDATE alerts SET threshold = ?, active = ?, updated_at = ? WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query,
		alert.Threshold, boolToInt(alert.Active), alert.UpdatedAt.UTC(), alert.ID,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("active alert for threshold %d already exists: %w", alert.Threshold, ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("update alert: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("alert %s: %w", alert.ID, ErrNotFound)
	}
	return nil
}

func (r *sqliteAlertRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM alerts WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete alert: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("alert %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *sqliteAlertRepo) ListByOwner(ctx context.Context, userID string) ([]*models.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE user_id = ? ORDER BY created_at, id`
	return r.queryAlerts(ctx, query, userID)
}

func (r *sqliteAlertRepo) ListByProfile(ctx context.Context, profileID string) ([]*models.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE profile_id = ? ORDER BY threshold, id`
	return r.queryAlerts(ctx, query, profileID)
}

func (r *sqliteAlertRepo) ListActiveUntriggered(ctx context.Context, profileID string) ([]*models.Alert, error) {
	query := `
		SELECT ` + alertColumns + ` FROM alerts
		WHERE profile_id = ? AND active = 1 AND triggered = 0
		ORDER BY threshold, id
	`
	return r.queryAlerts(ctx, query, profileID)
}

// MarkTriggered sets the trigger flag and timestamp. An alert that is
// already triggered is left untouched and reported as ErrNotFound.
func (r *sqliteAlertRepo) MarkTriggered(ctx context.Context, id string, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE alerts SET triggered = 1, triggered_at = ?, updated_at = ? WHERE id = ? AND triggered = 0",
		at.UTC(), at.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("mark alert triggered: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("untriggered alert %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *sqliteAlertRepo) queryAlerts(ctx context.Context, query string, args ...any) ([]*models.Alert, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*models.Alert
	for rows.Next() {
		alert, err := r.scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, alert)
	}
	return alerts, rows.Err()
}

func (r *sqliteAlertRepo) scanAlert(row scanner) (*models.Alert, error) {
	alert := &models.Alert{}
	var active, triggered int
	var triggeredAt sql.NullTime

	err := row.Scan(
		&alert.ID, &alert.ProfileID, &alert.UserID, &alert.Threshold,
		&active, &triggered, &triggeredAt, &alert.CreatedAt, &alert.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		//nolint:nilnil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan alert: %w", err)
	}

	alert.Active = active != 0
	alert.Triggered = triggered != 0
	alert.TriggeredAt = timePtr(triggeredAt)
	return alert, nil
}
