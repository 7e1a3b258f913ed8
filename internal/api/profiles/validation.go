// Package profiles provides tracked-profile API endpoints.
package profiles

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/good-yellow-bee/followwatch/internal/models"
)

// MaxHandleLength is the longest accepted handle, in characters.
const MaxHandleLength = 64

// ValidatePlatform parses a platform name.
func ValidatePlatform(platform string) (models.Platform, error) {
	p, err := models.ParsePlatform(platform)
	if err != nil {
		return "", errors.New("platform must be one of: twitter, instagram, tiktok, youtube")
	}
	return p, nil
}

// ValidateHandle normalizes a handle and checks its shape.
func ValidateHandle(handle string) (string, error) {
	handle = models.NormalizeHandle(handle)
	if handle == "" {
		return "", errors.New("handle is required")
	}
	if utf8.RuneCountInString(handle) > MaxHandleLength {
		return "", errors.New("handle must be 64 characters or less")
	}
	if strings.IndexFunc(handle, unicode.IsSpace) >= 0 {
		return "", errors.New("handle must not contain whitespace")
	}
	return handle, nil
}
