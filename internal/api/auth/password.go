package auth

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

const (
	// MinPasswordLength is the shortest accepted password.
	MinPasswordLength = 8
	// MaxPasswordLength is bcrypt's input limit in bytes.
	MaxPasswordLength = 72
)

// PasswordValidationError contains details about password validation failure.
type PasswordValidationError struct {
	Messages []string
}

func (e *PasswordValidationError) Error() string {
	return strings.Join(e.Messages, "; ")
}

// ValidatePassword checks that a password is long enough and mixes letters
// and digits.
func ValidatePassword(password string) error {
	var messages []string

	if len(password) < MinPasswordLength {
		messages = append(messages, fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}
	if len(password) > MaxPasswordLength {
		messages = append(messages, fmt.Sprintf("password must be at most %d bytes", MaxPasswordLength))
	}

	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter {
		messages = append(messages, "password must contain at least 1 letter")
	}
	if !hasDigit {
		messages = append(messages, "password must contain at least 1 digit")
	}

	if len(messages) > 0 {
		return &PasswordValidationError{Messages: messages}
	}
	return nil
}

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches hash.
func CheckPassword(hash, password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// IsPasswordValidationError reports whether err came from ValidatePassword.
func IsPasswordValidationError(err error) bool {
	var pve *PasswordValidationError
	return errors.As(err, &pve)
}
