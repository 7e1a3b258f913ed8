package models

import (
	"fmt"
	"strings"
	"time"
)

// Platform identifies the social network a profile lives on.
type Platform string

const (
	PlatformTwitter   Platform = "twitter"
	PlatformInstagram Platform = "instagram"
	PlatformTikTok    Platform = "tiktok"
	PlatformYouTube   Platform = "youtube"
)

// Platforms lists every supported platform.
var Platforms = []Platform{PlatformTwitter, PlatformInstagram, PlatformTikTok, PlatformYouTube}

// ParsePlatform converts a string to a Platform.
func ParsePlatform(s string) (Platform, error) {
	p := Platform(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Platforms {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown platform: %q", s)
}

// NormalizeHandle trims whitespace and a leading '@'.
func NormalizeHandle(handle string) string {
	return strings.TrimPrefix(strings.TrimSpace(handle), "@")
}

// Profile is a social-media account whose follower count is tracked.
type Profile struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	Platform      Platform   `json:"platform"`
	Handle        string     `json:"handle"`
	CurrentCount  int64      `json:"current_count"`
	LastCheckedAt *time.Time `json:"last_checked_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// NewProfile creates a new Profile with initialized timestamps.
func NewProfile(userID string, platform Platform, handle string) *Profile {
	now := time.Now().UTC()
	return &Profile{
		UserID:    userID,
		Platform:  platform,
		Handle:    NormalizeHandle(handle),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Key identifies the profile on its platform, e.g. "twitter:gopher".
func (p *Profile) Key() string {
	return string(p.Platform) + ":" + p.Handle
}

// ProfileInsights is the read model served by the insights endpoint.
type ProfileInsights struct {
	Profile       *Profile         `json:"profile"`
	Change24h     int64            `json:"follower_change_24h"`
	RecentHistory []*HistorySample `json:"recent_history"`
}
