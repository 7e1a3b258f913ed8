package alerting

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/good-yellow-bee/followwatch/internal/models"
)

func TestCrossed(t *testing.T) {
	tests := []struct {
		name      string
		old, new  int64
		threshold int64
		want      bool
	}{
		{"reaches exactly", 999, 1000, 1000, true},
		{"jumps past", 900, 1100, 1000, true},
		{"already at threshold", 1000, 1200, 1000, false},
		{"already above", 1100, 1200, 1000, false},
		{"not reached", 900, 999, 1000, false},
		{"no change below", 900, 900, 1000, false},
		{"no change at", 1000, 1000, 1000, false},
		{"moves down through", 1100, 900, 1000, false},
		{"zero threshold from zero", 0, 10, 0, false},
		{"zero threshold from negative", -1, 0, 0, true},
		{"negative threshold", -10, -5, -7, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Crossed(tt.old, tt.new, tt.threshold))
		})
	}
}

func TestEvaluate(t *testing.T) {
	a1000 := models.NewAlert("u", "p", 1000)
	a1500 := models.NewAlert("u", "p", 1500)
	a5000 := models.NewAlert("u", "p", 5000)
	inactive := models.NewAlert("u", "p", 1200)
	inactive.Active = false
	triggered := models.NewAlert("u", "p", 1100)
	triggered.Triggered = true

	got := Evaluate([]*models.Alert{a1000, inactive, a1500, triggered, nil, a5000}, 900, 1600)

	require.Len(t, got, 2)
	assert.Same(t, a1000, got[0])
	assert.Same(t, a1500, got[1])
}

func TestEvaluate_NoAlerts(t *testing.T) {
	assert.Empty(t, Evaluate(nil, 0, 100))
}
