package auth

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/good-yellow-bee/followwatch/internal/api/response"
	"github.com/good-yellow-bee/followwatch/internal/logger"
	"github.com/good-yellow-bee/followwatch/internal/metrics"
)

// TokenResponse is returned by the token endpoint.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"` // seconds
}

// Handler serves the token endpoint.
type Handler struct {
	authn *Authenticator
}

// NewHandler creates a new auth handler.
func NewHandler(authn *Authenticator) *Handler {
	return &Handler{authn: authn}
}

// Token exchanges HTTP Basic credentials for a bearer token.
func (h *Handler) Token(w http.ResponseWriter, r *http.Request) {
	username, password, ok := r.BasicAuth()
	if !ok || username == "" {
		w.Header().Set("WWW-Authenticate", `Basic realm="followwatch"`)
		response.JSONError(w, response.ErrUnauthorized)
		return
	}

	user, err := h.authn.Password(r.Context(), username, password)
	switch {
	case errors.Is(err, ErrAccountLocked):
		logger.WarnCtx(r.Context(), "token request for locked account", zap.String("username", username))
		response.JSONError(w, response.ErrAccountLocked)
		return
	case errors.Is(err, ErrInvalidCredentials):
		w.Header().Set("WWW-Authenticate", `Basic realm="followwatch"`)
		response.JSONError(w, response.ErrUnauthorized)
		return
	case err != nil:
		response.Fail(r.Context(), w, err, "authenticate")
		return
	}

	token, err := h.authn.JWT().GenerateToken(user)
	if err != nil {
		response.Fail(r.Context(), w, err, "issue token")
		return
	}
	metrics.AuthTokensIssued.Inc()

	response.OK(w, TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   h.authn.JWT().TTLSeconds(),
	})
}
