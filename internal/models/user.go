package models

import (
	"time"
)

// User is an account that owns tracked profiles and their alerts.
type User struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	PasswordHash   string    `json:"-"` // Never expose in JSON
	TelegramChatID string    `json:"telegram_chat_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NewUser creates a new User with initialized timestamps.
func NewUser(username string) *User {
	now := time.Now().UTC()
	return &User{
		Username:  username,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// HasTelegram reports whether the user can receive Telegram notifications.
func (u *User) HasTelegram() bool {
	return u.TelegramChatID != ""
}
