package health

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// SQLiteChecker checks SQLite connectivity and that migrations have run.
type SQLiteChecker struct {
	db *sql.DB
}

// NewSQLiteChecker creates a new SQLite health checker.
func NewSQLiteChecker(db *sql.DB) *SQLiteChecker {
	return &SQLiteChecker{db: db}
}

// Name returns the checker name.
func (c *SQLiteChecker) Name() string {
	return "sqlite"
}

// Check verifies the database answers and has a schema.
func (c *SQLiteChecker) Check(ctx context.Context) error {
	if c.db == nil {
		return errors.New("database not initialized")
	}
	var version int
	err := c.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&version)
	if err != nil {
		return fmt.Errorf("query schema version: %w", err)
	}
	if version == 0 {
		return errors.New("database not migrated")
	}
	return nil
}

// SchedulerChecker reports whether the fleet scheduler loop is running.
type SchedulerChecker struct {
	isRunning func() bool
}

// NewSchedulerChecker creates a scheduler health checker.
func NewSchedulerChecker(isRunning func() bool) *SchedulerChecker {
	return &SchedulerChecker{isRunning: isRunning}
}

// Name returns the checker name.
func (c *SchedulerChecker) Name() string {
	return "scheduler"
}

// Check fails when the scheduler loop is not running.
func (c *SchedulerChecker) Check(ctx context.Context) error {
	if c.isRunning == nil || !c.isRunning() {
		return errors.New("scheduler not running")
	}
	return nil
}
