package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/good-yellow-bee/followwatch/internal/api/response"
	"github.com/good-yellow-bee/followwatch/internal/models"
)

type mockUsers struct {
	users map[string]*models.User
	err   error
}

func (m *mockUsers) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.users[username], nil
}

func newTestAuthenticator(t *testing.T, lockout *LockoutTracker) *Authenticator {
	t.Helper()
	hash, err := HashPassword("s3cret-pass")
	require.NoError(t, err)
	users := &mockUsers{users: map[string]*models.User{
		"alice": {ID: "u-alice", Username: "alice", PasswordHash: hash},
	}}
	return NewAuthenticator(users, NewJWTService(testSecret, time.Hour), lockout)
}

func TestAuthenticator_Password(t *testing.T) {
	a := newTestAuthenticator(t, nil)

	user, err := a.Password(context.Background(), "alice", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, "u-alice", user.ID)

	_, err = a.Password(context.Background(), "alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = a.Password(context.Background(), "mallory", "s3cret-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthenticator_LookupError(t *testing.T) {
	a := NewAuthenticator(&mockUsers{err: errors.New("db down")}, NewJWTService(testSecret, time.Hour), nil)
	_, err := a.Password(context.Background(), "alice", "x")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthenticator_Lockout(t *testing.T) {
	a := newTestAuthenticator(t, NewLockoutTracker(2, time.Hour))

	_, err := a.Password(context.Background(), "alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = a.Password(context.Background(), "alice", "wrong")
	assert.ErrorIs(t, err, ErrAccountLocked)

	_, err = a.Password(context.Background(), "alice", "s3cret-pass")
	assert.ErrorIs(t, err, ErrAccountLocked)
}

func TestAuthenticator_Token(t *testing.T) {
	a := newTestAuthenticator(t, nil)
	token, err := a.JWT().GenerateToken(&models.User{ID: "u-alice", Username: "alice"})
	require.NoError(t, err)

	claims, err := a.Token(token)
	require.NoError(t, err)
	assert.Equal(t, "u-alice", claims.UserID)

	_, err = a.Token("garbage")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestHandler_Token(t *testing.T) {
	a := newTestAuthenticator(t, nil)
	h := NewHandler(a)

	tests := []struct {
		name       string
		user, pass string
		basic      bool
		wantStatus int
	}{
		{"valid credentials", "alice", "s3cret-pass", true, http.StatusOK},
		{"wrong password", "alice", "nope", true, http.StatusUnauthorized},
		{"missing header", "", "", false, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/token", nil)
			if tt.basic {
				req.SetBasicAuth(tt.user, tt.pass)
			}
			rec := httptest.NewRecorder()
			h.Token(rec, req)

			require.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus != http.StatusOK {
				assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))
				return
			}

			var body struct {
				Data TokenResponse `json:"data"`
			}
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, "bearer", body.Data.TokenType)
			assert.Equal(t, 3600, body.Data.ExpiresIn)

			claims, err := a.Token(body.Data.AccessToken)
			require.NoError(t, err)
			assert.Equal(t, "alice", claims.Username)
		})
	}
}

func TestHandler_TokenLocked(t *testing.T) {
	h := NewHandler(newTestAuthenticator(t, NewLockoutTracker(1, time.Hour)))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/token", nil)
	req.SetBasicAuth("alice", "nope")
	rec := httptest.NewRecorder()
	h.Token(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), response.ErrCodeAccountLocked)
}
