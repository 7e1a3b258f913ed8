package models

import "time"

// HistorySample is one recorded follower count. Samples are append-only.
type HistorySample struct {
	ID         int64     `json:"id"`
	ProfileID  string    `json:"profile_id"`
	Count      int64     `json:"count"`
	RecordedAt time.Time `json:"recorded_at"`
}
