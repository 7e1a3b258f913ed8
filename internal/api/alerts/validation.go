// Package alerts provides milestone alert API endpoints.
package alerts

import (
	"errors"
	"strings"
)

// ValidateThreshold requires a threshold to be present. Zero and negative
// values are stored as given; they can never be crossed by a rising count.
func ValidateThreshold(threshold *int64) error {
	if threshold == nil {
		return errors.New("threshold is required")
	}
	return nil
}

// ValidateProfileID requires a non-empty profile id.
func ValidateProfileID(id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("profile_id is required")
	}
	return nil
}
