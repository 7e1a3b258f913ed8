package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/good-yellow-bee/followwatch/internal/metrics"
	"github.com/good-yellow-bee/followwatch/internal/models"
)

var (
	// ErrInvalidCredentials is returned for an unknown user, a wrong password
	// or a bad token.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked is returned while a username is locked out.
	ErrAccountLocked = errors.New("account locked")
)

// dummyHash is compared against when the username is unknown so both paths
// cost one bcrypt comparison.
var dummyHash = sync.OnceValue(func() string {
	hash, _ := HashPassword("followwatch-unknown-user")
	return hash
})

// UserLookup is the subset of the user repository needed to authenticate.
type UserLookup interface {
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}

// Authenticator verifies passwords and access tokens.
type Authenticator struct {
	users   UserLookup
	jwt     *JWTService
	lockout *LockoutTracker
}

// NewAuthenticator creates an Authenticator. A nil lockout disables locking.
func NewAuthenticator(users UserLookup, jwt *JWTService, lockout *LockoutTracker) *Authenticator {
	if lockout == nil {
		lockout = NewLockoutTracker(0, 0)
	}
	return &Authenticator{users: users, jwt: jwt, lockout: lockout}
}

// JWT returns the token service.
func (a *Authenticator) JWT() *JWTService {
	return a.jwt
}

// Password checks a username and password pair.
func (a *Authenticator) Password(ctx context.Context, username, password string) (*models.User, error) {
	if a.lockout.IsLocked(username) {
		metrics.AuthAttemptsTotal.WithLabelValues("basic", "locked").Inc()
		return nil, ErrAccountLocked
	}

	user, err := a.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	var hash string
	if user != nil {
		hash = user.PasswordHash
	} else {
		hash = dummyHash()
	}
	if !CheckPassword(hash, password) || user == nil {
		metrics.AuthAttemptsTotal.WithLabelValues("basic", "failure").Inc()
		if a.lockout.RecordFailure(username) {
			return nil, ErrAccountLocked
		}
		return nil, ErrInvalidCredentials
	}

	a.lockout.ClearFailures(username)
	metrics.AuthAttemptsTotal.WithLabelValues("basic", "success").Inc()
	return user, nil
}

// Token validates a bearer token.
func (a *Authenticator) Token(token string) (*Claims, error) {
	claims, err := a.jwt.ValidateToken(token)
	if err != nil {
		metrics.AuthAttemptsTotal.WithLabelValues("bearer", "failure").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}
	metrics.AuthAttemptsTotal.WithLabelValues("bearer", "success").Inc()
	return claims, nil
}
