// Package alerting decides which milestone alerts a new follower count triggers.
package alerting

import "github.com/good-yellow-bee/followwatch/internal/models"

// Crossed reports whether moving from oldCount to newCount reaches threshold
// for the first time: oldCount < threshold <= newCount.
//
// An alert whose threshold is already at or below oldCount never fires,
// and a count that moves down never fires.
func Crossed(oldCount, newCount, threshold int64) bool {
	return oldCount < threshold && threshold <= newCount
}

// Evaluate returns the pending alerts whose threshold the move from oldCount
// to newCount crosses, in input order. Inactive or triggered alerts are skipped.
func Evaluate(alerts []*models.Alert, oldCount, newCount int64) []*models.Alert {
	var crossed []*models.Alert
	for _, a := range alerts {
		if a == nil || !a.Pending() {
			continue
		}
		if Crossed(oldCount, newCount, a.Threshold) {
			crossed = append(crossed, a)
		}
	}
	return crossed
}
