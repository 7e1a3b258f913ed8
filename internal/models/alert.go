package models

import (
	"time"
)

// Alert fires once when a profile's follower count reaches Threshold.
type Alert struct {
	ID          string     `json:"id"`
	ProfileID   string     `json:"profile_id"`
	UserID      string     `json:"user_id"`
	Threshold   int64      `json:"threshold"`
	Active      bool       `json:"active"`
	Triggered   bool       `json:"triggered"`
	TriggeredAt *time.Time `json:"triggered_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// NewAlert creates an active, untriggered Alert.
func NewAlert(userID, profileID string, threshold int64) *Alert {
	now := time.Now().UTC()
	return &Alert{
		ProfileID: profileID,
		UserID:    userID,
		Threshold: threshold,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Pending reports whether the alert can still trigger.
func (a *Alert) Pending() bool {
	return a.Active && !a.Triggered
}

// MarkTriggered records the trigger. It is a no-op when already triggered.
func (a *Alert) MarkTriggered(at time.Time) {
	if a.Triggered {
		return
	}
	a.Triggered = true
	a.TriggeredAt = &at
	a.UpdatedAt = at
}
