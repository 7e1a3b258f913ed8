package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// Migration represents a database migration.
type Migration struct {
	Version int
	Name    string
	Up      string
}

// migrations holds all database migrations in order.
var migrations = []Migration{
	{
		Version: 1,
		Name:    "initial_schema",
		Up: `
			CREATE TABLE IF NOT EXISTS users (
				id TEXT PRIMARY KEY,
				username TEXT UNIQUE NOT NULL,
				password_hash TEXT NOT NULL,
				telegram_chat_id TEXT,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL
			);

			CREATE TABLE IF NOT EXISTS profiles (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				platform TEXT NOT NULL,
				handle TEXT NOT NULL,
				current_count INTEGER NOT NULL DEFAULT 0,
				last_checked_at DATETIME,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL,
				FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
			);
			CREATE UNIQUE INDEX IF NOT EXISTS idx_profiles_owner_handle
				ON profiles(user_id, platform, handle);

			-- recorded_at holds unix nanoseconds so range scans compare numerically
			CREATE TABLE IF NOT EXISTS follower_history (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				profile_id TEXT NOT NULL,
				count INTEGER NOT NULL,
				recorded_at INTEGER NOT NULL,
				FOREIGN KEY (profile_id) REFERENCES profiles(id) ON DELETE CASCADE
			);
			CREATE INDEX IF NOT EXISTS idx_history_profile_recorded
				ON follower_history(profile_id, recorded_at);
			CREATE INDEX IF NOT EXISTS idx_history_recorded
				ON follower_history(recorded_at);

			CREATE TABLE IF NOT EXISTS alerts (
				id TEXT PRIMARY KEY,
				profile_id TEXT NOT NULL,
				user_id TEXT NOT NULL,
				threshold INTEGER NOT NULL,
				active INTEGER NOT NULL DEFAULT 1,
				triggered INTEGER NOT NULL DEFAULT 0,
				triggered_at DATETIME,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL,
				FOREIGN KEY (profile_id) REFERENCES profiles(id) ON DELETE CASCADE,
				FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
			);
			CREATE INDEX IF NOT EXISTS idx_alerts_profile ON alerts(profile_id);
			CREATE INDEX IF NOT EXISTS idx_alerts_user ON alerts(user_id);
			-- one active alert per (user, profile, threshold); triggered ones still count
			CREATE UNIQUE INDEX IF NOT EXISTS idx_alerts_active_unique
				ON alerts(user_id, profile_id, threshold) WHERE active = 1;
		`,
	},
}

func runMigrations(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at DATETIME NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	var currentVersion int
	err = db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("get current version: %w", err)
	}

	for _, m := range migrations {
		if m.Version <= currentVersion {
			continue
		}
		if err := applyMigration(db, m); err != nil {
			return err
		}
	}

	return nil
}

func applyMigration(db *sql.DB, m Migration) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction for migration %d: %w", m.Version, err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(m.Up); err != nil {
		return fmt.Errorf("execute migration %d (%s): %w", m.Version, m.Name, err)
	}

	_, err = tx.Exec(
		"INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)",
		m.Version, m.Name, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("record migration %d: %w", m.Version, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %d: %w", m.Version, err)
	}
	return nil
}
