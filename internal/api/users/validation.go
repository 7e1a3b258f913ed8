// Package users provides account API endpoints.
package users

import (
	"regexp"
	"strings"
)

var (
	usernameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_.-]{2,31}$`)
	chatIDRegex   = regexp.MustCompile(`^(-?[0-9]{1,20}|@[a-zA-Z][a-zA-Z0-9_]{4,31})$`)
)

// ValidationError contains validation error details.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return e.Message
}

// ValidateUsername validates a username.
func ValidateUsername(username string) error {
	username = strings.TrimSpace(username)
	switch {
	case username == "":
		return &ValidationError{Field: "username", Message: "username is required"}
	case len(username) < 3:
		return &ValidationError{Field: "username", Message: "username must be at least 3 characters"}
	case len(username) > 32:
		return &ValidationError{Field: "username", Message: "username must be at most 32 characters"}
	case !usernameRegex.MatchString(username):
		return &ValidationError{Field: "username", Message: "username must start with a letter and contain only letters, numbers, dots, underscores, or hyphens"}
	}
	return nil
}

// ValidateTelegramChatID accepts a numeric chat id, an @channel name, or
// the empty string to clear it.
func ValidateTelegramChatID(chatID string) error {
	if chatID == "" || chatIDRegex.MatchString(chatID) {
		return nil
	}
	return &ValidationError{Field: "telegram_chat_id", Message: "telegram_chat_id must be a numeric chat id or an @channel name"}
}
