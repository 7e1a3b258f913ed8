package profiles

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/good-yellow-bee/followwatch/internal/api/middleware"
	"github.com/good-yellow-bee/followwatch/internal/api/response"
	"github.com/good-yellow-bee/followwatch/internal/logger"
	"github.com/good-yellow-bee/followwatch/internal/models"
	"github.com/good-yellow-bee/followwatch/internal/storage"
	"github.com/good-yellow-bee/followwatch/internal/tracker"
)

const (
	defaultHistoryLimit = 100
	maxHistoryLimit     = 1000
)

// Refresher runs a manual refresh, refusing when one is already running.
type Refresher interface {
	RefreshExclusive(ctx context.Context, profileID string) (*tracker.RefreshResult, error)
}

// InsightsReader builds the insights view of a profile.
type InsightsReader interface {
	For(ctx context.Context, profile *models.Profile) (*models.ProfileInsights, error)
}

// Handler handles profile endpoints.
type Handler struct {
	profiles  storage.ProfileRepository
	history   storage.HistoryRepository
	refresher Refresher
	insights  InsightsReader
}

// NewHandler creates a new profiles handler.
func NewHandler(store storage.Storage, refresher Refresher, insights InsightsReader) *Handler {
	return &Handler{
		profiles:  store.Profiles(),
		history:   store.History(),
		refresher: refresher,
		insights:  insights,
	}
}

// CreateRequest is the body of POST /profiles.
type CreateRequest struct {
	Platform string `json:"platform"`
	Handle   string `json:"handle"`
}

// UpdateRequest is the body of PUT /profiles/{id}. Omitted fields are unchanged.
type UpdateRequest struct {
	Platform *string `json:"platform"`
	Handle   *string `json:"handle"`
}

// List returns the caller's profiles.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.profiles.ListByOwner(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		response.Fail(r.Context(), w, err, "list profiles")
		return
	}
	if profiles == nil {
		profiles = []*models.Profile{}
	}
	response.OK(w, profiles)
}

// Create starts tracking a profile for the caller.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if apiErr := response.Decode(w, r, &req); apiErr != nil {
		response.JSONError(w, apiErr)
		return
	}

	platform, err := ValidatePlatform(req.Platform)
	if err != nil {
		response.JSONError(w, response.NewValidationError(err.Error()))
		return
	}
	handle, err := ValidateHandle(req.Handle)
	if err != nil {
		response.JSONError(w, response.NewValidationError(err.Error()))
		return
	}

	profile := models.NewProfile(middleware.GetUserID(r.Context()), platform, handle)
	profile.ID = uuid.New().String()
	if err := h.profiles.Create(r.Context(), profile); err != nil {
		response.Fail(r.Context(), w, err, "create profile")
		return
	}

	logger.InfoCtx(r.Context(), "profile created",
		zap.String("profile_id", profile.ID),
		zap.String("profile", profile.Key()),
		zap.String("user_id", profile.UserID),
	)
	response.Created(w, profile)
}

// Get returns one of the caller's profiles.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	profile, ok := h.owned(w, r)
	if !ok {
		return
	}
	response.OK(w, profile)
}

// Update changes a profile's platform or handle. The follower count and
// history are kept.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateRequest
	if apiErr := response.Decode(w, r, &req); apiErr != nil {
		response.JSONError(w, apiErr)
		return
	}

	profile, ok := h.owned(w, r)
	if !ok {
		return
	}

	if req.Platform != nil {
		platform, err := ValidatePlatform(*req.Platform)
		if err != nil {
			response.JSONError(w, response.NewValidationError(err.Error()))
			return
		}
		profile.Platform = platform
	}
	if req.Handle != nil {
		handle, err := ValidateHandle(*req.Handle)
		if err != nil {
			response.JSONError(w, response.NewValidationError(err.Error()))
			return
		}
		profile.Handle = handle
	}
	profile.UpdatedAt = time.Now().UTC()

	if err := h.profiles.Update(r.Context(), profile); err != nil {
		response.Fail(r.Context(), w, err, "update profile")
		return
	}
	response.OK(w, profile)
}

// Delete stops tracking a profile. Its history and alerts are removed with it.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	profile, ok := h.owned(w, r)
	if !ok {
		return
	}
	if err := h.profiles.Delete(r.Context(), profile.ID); err != nil {
		response.Fail(r.Context(), w, err, "delete profile")
		return
	}
	logger.InfoCtx(r.Context(), "profile deleted", zap.String("profile_id", profile.ID))
	response.NoContent(w)
}

// Insights returns the profile with its 24h change and recent history.
func (h *Handler) Insights(w http.ResponseWriter, r *http.Request) {
	profile, ok := h.owned(w, r)
	if !ok {
		return
	}
	insights, err := h.insights.For(r.Context(), profile)
	if err != nil {
		response.Fail(r.Context(), w, err, "profile insights")
		return
	}
	response.OK(w, insights)
}

// History returns samples newest first, optionally bounded by since
// (RFC 3339) and limit.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	var since time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.JSONError(w, response.NewBadRequest("since must be an RFC 3339 timestamp"))
			return
		}
		since = t
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxHistoryLimit {
			response.JSONError(w, response.NewBadRequest("limit must be between 1 and 1000"))
			return
		}
		limit = n
	}

	profile, ok := h.owned(w, r)
	if !ok {
		return
	}
	samples, err := h.history.RangeSince(r.Context(), profile.ID, since, limit)
	if err != nil {
		response.Fail(r.Context(), w, err, "profile history")
		return
	}
	if samples == nil {
		samples = []*models.HistorySample{}
	}
	response.OK(w, samples)
}

// Refresh fetches a new sample for the profile now.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	profile, ok := h.owned(w, r)
	if !ok {
		return
	}
	result, err := h.refresher.RefreshExclusive(r.Context(), profile.ID)
	if err != nil {
		response.Fail(r.Context(), w, err, "refresh profile")
		return
	}
	if result.Triggered == nil {
		result.Triggered = []*models.Alert{}
	}
	response.OK(w, result)
}

// owned loads the {id} profile for the caller, writing 404 when it is
// missing or belongs to someone else.
func (h *Handler) owned(w http.ResponseWriter, r *http.Request) (*models.Profile, bool) {
	id := chi.URLParam(r, "id")
	profile, err := h.profiles.GetForOwner(r.Context(), id, middleware.GetUserID(r.Context()))
	if err != nil {
		response.Fail(r.Context(), w, err, "load profile")
		return nil, false
	}
	if profile == nil {
		response.JSONError(w, response.NewNotFound("profile not found"))
		return nil, false
	}
	return profile, true
}
