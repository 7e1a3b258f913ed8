package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/good-yellow-bee/followwatch/internal/api/auth"
	"github.com/good-yellow-bee/followwatch/internal/api/response"
	"github.com/good-yellow-bee/followwatch/internal/logger"
)

// Context keys for storing user information.
type contextKey string

const (
	userIDKey   contextKey = "user_id"
	usernameKey contextKey = "username"
)

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="followwatch"`)
	response.JSONError(w, response.ErrUnauthorized)
}

// Authenticate returns middleware that accepts either a bearer token or
// HTTP Basic credentials and stores the caller's identity in the context.
func Authenticate(authn *auth.Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scheme, credentials, _ := strings.Cut(r.Header.Get("Authorization"), " ")

			switch {
			case strings.EqualFold(scheme, "Bearer"):
				claims, err := authn.Token(strings.TrimSpace(credentials))
				if err != nil {
					logger.Debug("bearer auth failed", zap.String("remote", r.RemoteAddr), zap.Error(err))
					unauthorized(w)
					return
				}
				next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), claims.UserID, claims.Username)))

			case strings.EqualFold(scheme, "Basic"):
				username, password, ok := r.BasicAuth()
				if !ok {
					unauthorized(w)
					return
				}
				user, err := authn.Password(r.Context(), username, password)
				switch {
				case errors.Is(err, auth.ErrAccountLocked):
					response.JSONError(w, response.ErrAccountLocked)
					return
				case errors.Is(err, auth.ErrInvalidCredentials):
					unauthorized(w)
					return
				case err != nil:
					response.Fail(r.Context(), w, err, "basic auth")
					return
				}
				next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user.ID, user.Username)))

			default:
				unauthorized(w)
			}
		})
	}
}

// WithUser returns a copy of ctx carrying the authenticated user.
func WithUser(ctx context.Context, userID, username string) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	return context.WithValue(ctx, usernameKey, username)
}

// GetUserID returns the user ID from context.
func GetUserID(ctx context.Context) string {
	if v, ok := ctx.Value(userIDKey).(string); ok {
		return v
	}
	return ""
}

// GetUsername returns the username from context.
func GetUsername(ctx context.Context) string {
	if v, ok := ctx.Value(usernameKey).(string); ok {
		return v
	}
	return ""
}
