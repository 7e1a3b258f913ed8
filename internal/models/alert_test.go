package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlert_MarkTriggeredIsMonotonic(t *testing.T) {
	a := NewAlert("u1", "p1", 1000)
	require.True(t, a.Pending())

	first := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	a.MarkTriggered(first)
	a.MarkTriggered(first.Add(time.Hour))

	assert.True(t, a.Triggered)
	require.NotNil(t, a.TriggeredAt)
	assert.Equal(t, first, *a.TriggeredAt)
	assert.False(t, a.Pending())
}

func TestAlert_InactiveIsNotPending(t *testing.T) {
	a := NewAlert("u1", "p1", 1000)
	a.Active = false
	assert.False(t, a.Pending())
}

func TestParsePlatform(t *testing.T) {
	tests := []struct {
		in      string
		want    Platform
		wantErr bool
	}{
		{"twitter", PlatformTwitter, false},
		{" Instagram ", PlatformInstagram, false},
		{"YOUTUBE", PlatformYouTube, false},
		{"myspace", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePlatform(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewProfile_NormalizesHandle(t *testing.T) {
	p := NewProfile("u1", PlatformTwitter, "  @gopher ")
	assert.Equal(t, "gopher", p.Handle)
	assert.Equal(t, "twitter:gopher", p.Key())
}
