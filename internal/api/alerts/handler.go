package alerts

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/good-yellow-bee/followwatch/internal/api/middleware"
	"github.com/good-yellow-bee/followwatch/internal/api/response"
	"github.com/good-yellow-bee/followwatch/internal/logger"
	"github.com/good-yellow-bee/followwatch/internal/models"
	"github.com/good-yellow-bee/followwatch/internal/storage"
)

// Handler handles alert endpoints.
type Handler struct {
	alerts   storage.AlertRepository
	profiles storage.ProfileRepository
}

// NewHandler creates a new alerts handler.
func NewHandler(store storage.Storage) *Handler {
	return &Handler{alerts: store.Alerts(), profiles: store.Profiles()}
}

// CreateRequest is the body of POST /alerts.
type CreateRequest struct {
	ProfileID string `json:"profile_id"`
	Threshold *int64 `json:"threshold"`
}

// UpdateRequest is the body of PUT /alerts/{id}. Omitted fields are unchanged.
type UpdateRequest struct {
	Threshold *int64 `json:"threshold"`
	Active    *bool  `json:"active"`
}

// List returns the caller's alerts, optionally for one profile.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var (
		alerts []*models.Alert
		err    error
	)
	if profileID := r.URL.Query().Get("profile_id"); profileID != "" {
		profile, perr := h.profiles.GetForOwner(ctx, profileID, userID)
		if perr != nil {
			response.Fail(ctx, w, perr, "load profile")
			return
		}
		if profile == nil {
			response.JSONError(w, response.NewNotFound("profile not found"))
			return
		}
		alerts, err = h.alerts.ListByProfile(ctx, profile.ID)
	} else {
		alerts, err = h.alerts.ListByOwner(ctx, userID)
	}
	if err != nil {
		response.Fail(ctx, w, err, "list alerts")
		return
	}
	if alerts == nil {
		alerts = []*models.Alert{}
	}
	response.OK(w, alerts)
}

// Create adds a milestone alert to one of the caller's profiles.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if apiErr := response.Decode(w, r, &req); apiErr != nil {
		response.JSONError(w, apiErr)
		return
	}
	if err := ValidateProfileID(req.ProfileID); err != nil {
		response.JSONError(w, response.NewValidationError(err.Error()))
		return
	}
	if err := ValidateThreshold(req.Threshold); err != nil {
		response.JSONError(w, response.NewValidationError(err.Error()))
		return
	}

	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	profile, err := h.profiles.GetForOwner(ctx, strings.TrimSpace(req.ProfileID), userID)
	if err != nil {
		response.Fail(ctx, w, err, "load profile")
		return
	}
	if profile == nil {
		response.JSONError(w, response.NewNotFound("profile not found"))
		return
	}

	alert := models.NewAlert(userID, profile.ID, *req.Threshold)
	alert.ID = uuid.New().String()
	if err := h.alerts.Create(ctx, alert); err != nil {
		response.Fail(ctx, w, err, "create alert")
		return
	}

	logger.InfoCtx(ctx, "alert created",
		zap.String("alert_id", alert.ID),
		zap.String("profile_id", alert.ProfileID),
		zap.Int64("threshold", alert.Threshold),
	)
	response.Created(w, alert)
}

// Get returns one of the caller's alerts.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	alert, ok := h.owned(w, r)
	if !ok {
		return
	}
	response.OK(w, alert)
}

// Update changes an alert's threshold or active flag. A triggered alert
// stays triggered.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateRequest
	if apiErr := response.Decode(w, r, &req); apiErr != nil {
		response.JSONError(w, apiErr)
		return
	}
	alert, ok := h.owned(w, r)
	if !ok {
		return
	}
	if req.Threshold != nil {
		alert.Threshold = *req.Threshold
	}
	if req.Active != nil {
		alert.Active = *req.Active
	}
	alert.UpdatedAt = time.Now().UTC()

	if err := h.alerts.Update(r.Context(), alert); err != nil {
		response.Fail(r.Context(), w, err, "update alert")
		return
	}
	response.OK(w, alert)
}

// Delete removes an alert.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	alert, ok := h.owned(w, r)
	if !ok {
		return
	}
	if err := h.alerts.Delete(r.Context(), alert.ID); err != nil {
		response.Fail(r.Context(), w, err, "delete alert")
		return
	}
	response.NoContent(w)
}

func (h *Handler) owned(w http.ResponseWriter, r *http.Request) (*models.Alert, bool) {
	alert, err := h.alerts.GetForOwner(r.Context(), chi.URLParam(r, "id"), middleware.GetUserID(r.Context()))
	if err != nil {
		response.Fail(r.Context(), w, err, "load alert")
		return nil, false
	}
	if alert == nil {
		response.JSONError(w, response.NewNotFound("alert not found"))
		return nil, false
	}
	return alert, true
}
