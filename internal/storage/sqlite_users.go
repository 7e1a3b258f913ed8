package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/good-yellow-bee/followwatch/internal/models"
)

type sqliteUserRepo struct {
	db dbtx
}

const userColumns = `id, username, password_hash, telegram_chat_id, created_at, updated_at`

func (r *sqliteUserRepo) Create(ctx context.Context, user *models.User) error {
	query := `INSERT INTO users (` + userColumns + `) VALUES (?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		user.ID, user.Username, user.PasswordHash, nullString(user.TelegramChatID),
		user.CreatedAt.UTC(), user.UpdatedAt.UTC(),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("username %q already taken: %w", user.Username, ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *sqliteUserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	return r.scanUser(r.db.QueryRowContext(ctx, query, id), "get user by id")
}

func (r *sqliteUserRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = ?`
	return r.scanUser(r.db.QueryRowContext(ctx, query, username), "get user by username")
}

func (r *sqliteUserRepo) Update(ctx context.Context, user *models.User) error {
	query := `
		UPDATE users SET username = ?, password_hash = ?, telegram_chat_id = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		user.Username, user.PasswordHash, nullString(user.TelegramChatID), user.UpdatedAt.UTC(),
		user.ID,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("username %q already taken: %w", user.Username, ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("user %s: %w", user.ID, ErrNotFound)
	}
	return nil
}

func (r *sqliteUserRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *sqliteUserRepo) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}

func (r *sqliteUserRepo) scanUser(row scanner, op string) (*models.User, error) {
	user := &models.User{}
	var chatID sql.NullString
	err := row.Scan(
		&user.ID, &user.Username, &user.PasswordHash, &chatID,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		//nolint:nilnil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	user.TelegramChatID = chatID.String
	return user, nil
}
