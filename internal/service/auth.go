package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Skotchmaster/affiliate_catalog/internal/credentials"
	"github.com/Skotchmaster/affiliate_catalog/internal/hash"
	"github.com/Skotchmaster/affiliate_catalog/internal/logging"
	"github.com/Skotchmaster/affiliate_catalog/internal/models"
	"github.com/Skotchmaster/affiliate_catalog/internal/tokens"
)

var (
	ErrNotConfigured      = errors.New("admin not configured")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrMissingToken       = errors.New("missing token")
	ErrInvalidToken       = errors.New("invalid token")
)

const DefaultTokenTTL = 12 * time.Hour

type CredentialResolver interface {
	Resolve() (*models.AdminCredential, error)
}

type AuthService struct {
	Creds     CredentialResolver
	JWTSecret []byte
	TokenTTL  time.Duration
	Now       func() time.Time
}

type LoginResult struct {
	Token     string
	ExpiresAt time.Time
}

// Identity is what a verified token says about its holder.
type Identity struct {
	Username  string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

func (s *AuthService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *AuthService) ttl() time.Duration {
	if s.TokenTTL > 0 {
		return s.TokenTTL
	}
	return DefaultTokenTTL
}

// Login never tells the caller which of username or password was wrong, and
// runs the bcrypt comparison in both cases.
func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	l := logging.FromContext(ctx).With("svc", "auth.login")

	cred, err := s.Creds.Resolve()
	if err != nil {
		if errors.Is(err, credentials.ErrAbsent) {
			l.Error("login_error", "status", 500, "reason", "admin credential is not configured")
			return nil, ErrNotConfigured
		}
		l.Error("login_error", "status", 500, "reason", "cannot resolve admin credential", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrNotConfigured, err)
	}

	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(cred.Username)) == 1
	passOK := hash.CheckPassword(cred.PasswordHash, password)
	if !userOK || !passOK {
		l.Warn("login_failed", "status", 401, "reason", "invalid username or password")
		return nil, ErrInvalidCredentials
	}

	issuedAt := s.now().UTC().Truncate(time.Second)
	token, exp, err := tokens.SignAccess(cred.Username, issuedAt, s.ttl(), s.JWTSecret)
	if err != nil {
		l.Error("login_error", "status", 500, "reason", "cannot sign token", "error", err)
		return nil, err
	}

	l.Info("login_success", "username", cred.Username, "expires_at", exp)
	return &LoginResult{Token: token, ExpiresAt: exp}, nil
}

// Authenticate checks a bearer token against the configured secret at the
// service's current time.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*Identity, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrMissingToken
	}

	claims, err := tokens.AccessClaimsFromToken(token, s.JWTSecret, s.now)
	if err != nil {
		reason := "bad token"
		if errors.Is(err, jwt.ErrTokenExpired) {
			reason = "token expired"
		}
		logging.FromContext(ctx).Debug("authenticate_failed", "reason", reason, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	username := claims.Username
	if username == "" {
		username = claims.Subject
	}
	id := &Identity{Username: username}
	if claims.IssuedAt != nil {
		id.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		id.ExpiresAt = claims.ExpiresAt.Time
	}
	return id, nil
}
