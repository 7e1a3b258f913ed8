package notifier

import (
	"fmt"
	"time"

	"github.com/good-yellow-bee/followwatch/internal/models"
)

// Notification describes one triggered milestone alert.
type Notification struct {
	AlertID     string
	UserID      string
	ChatID      string
	ProfileID   string
	Platform    models.Platform
	Handle      string
	Threshold   int64
	Count       int64
	TriggeredAt time.Time
}

// NewNotification builds a Notification for a triggered alert.
func NewNotification(user *models.User, profile *models.Profile, alert *models.Alert, count int64) *Notification {
	n := &Notification{
		AlertID:   alert.ID,
		UserID:    alert.UserID,
		ProfileID: profile.ID,
		Platform:  profile.Platform,
		Handle:    profile.Handle,
		Threshold: alert.Threshold,
		Count:     count,
	}
	if alert.TriggeredAt != nil {
		n.TriggeredAt = *alert.TriggeredAt
	}
	if user != nil {
		n.ChatID = user.TelegramChatID
	}
	return n
}

// Message returns the human-readable text sent to the user.
func (n *Notification) Message() string {
	return fmt.Sprintf("Milestone reached! @%s on %s has reached %d followers!", n.Handle, n.Platform, n.Threshold)
}
