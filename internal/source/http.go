package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/good-yellow-bee/followwatch/internal/models"
)

// HTTPSource reads follower counts from a JSON endpoint of the form
// GET {baseURL}/{platform}/{handle} -> {"followers": N}.
type HTTPSource struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// HTTPConfig configures an HTTPSource.
type HTTPConfig struct {
	BaseURL           string
	APIKey            string
	RequestsPerMinute int
	Timeout           time.Duration
}

// NewHTTPSource creates a rate-limited HTTP follower source.
func NewHTTPSource(cfg HTTPConfig) *HTTPSource {
	limit := rate.Inf
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Limit(float64(cfg.RequestsPerMinute) / 60.0)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPSource{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(limit, 1),
	}
}

type followersResponse struct {
	Followers *int64 `json:"followers"`
}

// Fetch requests the current follower count.
func (s *HTTPSource) Fetch(ctx context.Context, platform models.Platform, handle string) (int64, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return 0, fmt.Errorf("%w: rate limit wait: %v", ErrSourceUnavailable, err)
	}

	u := s.baseURL + "/" + url.PathEscape(string(platform)) + "/" + url.PathEscape(handle)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: create request: %v", ErrSourceUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return 0, fmt.Errorf("%w: read body: %v", ErrSourceUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: %s returned %d: %s", ErrSourceUnavailable, platform, resp.StatusCode, truncate(body, 200))
	}

	var out followersResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return 0, fmt.Errorf("%w: decode response: %v", ErrSourceUnavailable, err)
	}
	if out.Followers == nil || *out.Followers < 0 {
		return 0, fmt.Errorf("%w: response has no valid follower count", ErrSourceUnavailable)
	}
	return *out.Followers, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
