package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/good-yellow-bee/followwatch/internal/models"
)

func TestRandomWalk_Bounds(t *testing.T) {
	w := NewRandomWalk(42)
	ctx := context.Background()

	first, err := w.Fetch(ctx, models.PlatformTwitter, "gopher")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, first, int64(initialMin))
	assert.LessOrEqual(t, first, int64(initialMax))

	prev := first
	for i := 0; i < 200; i++ {
		next, err := w.Fetch(ctx, models.PlatformTwitter, "gopher")
		require.NoError(t, err)
		step := next - prev
		assert.GreaterOrEqual(t, step, int64(stepMin))
		assert.LessOrEqual(t, step, int64(stepMax))
		prev = next
	}
}

func TestRandomWalk_ClampsAtZero(t *testing.T) {
	w := NewRandomWalk(7)
	w.Set(models.PlatformTikTok, "tiny", 0)

	for i := 0; i < 100; i++ {
		n, err := w.Fetch(context.Background(), models.PlatformTikTok, "tiny")
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, int64(0))
	}
}

func TestRandomWalk_InstancesAreIndependent(t *testing.T) {
	a := NewRandomWalk(1)
	b := NewRandomWalk(2)
	a.Set(models.PlatformTwitter, "gopher", 10_000)

	n, err := b.Fetch(context.Background(), models.PlatformTwitter, "gopher")
	require.NoError(t, err)
	assert.LessOrEqual(t, n, int64(initialMax))
}

func TestRandomWalk_Concurrent(t *testing.T) {
	w := NewRandomWalk(3)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_, _ = w.Fetch(context.Background(), models.PlatformYouTube, "chan")
			}
		}()
	}
	wg.Wait()
}

func TestRandomWalk_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewRandomWalk(1).Fetch(ctx, models.PlatformTwitter, "x")
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestHTTPSource_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/twitter/gopher":
			_, _ = w.Write([]byte(`{"followers": 1234}`))
		case "/twitter/broken":
			_, _ = w.Write([]byte(`{"nope": true}`))
		default:
			http.Error(w, "down", http.StatusServiceUnavailable)
		}
	}))
	defer srv.Close()

	s := NewHTTPSource(HTTPConfig{BaseURL: srv.URL + "/", APIKey: "k"})
	ctx := context.Background()

	n, err := s.Fetch(ctx, models.PlatformTwitter, "gopher")
	require.NoError(t, err)
	assert.EqualValues(t, 1234, n)

	_, err = s.Fetch(ctx, models.PlatformTwitter, "broken")
	assert.ErrorIs(t, err, ErrSourceUnavailable)

	_, err = s.Fetch(ctx, models.PlatformTwitter, "missing")
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}
