// Package auth issues and verifies the scoped bearer tokens protecting
// the API. A single admin account is configured via environment; tokens
// are HS256 JWTs carrying the granted scopes.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	ScopeMetricsRead  = "metrics:read"
	ScopeMetricsWrite = "metrics:write"
	ScopeWeatherRead  = "weather:read"
	ScopeWeatherWrite = "weather:write"
)

// AllScopes is what a successfully authenticated admin is granted.
var AllScopes = []string{ScopeMetricsRead, ScopeMetricsWrite, ScopeWeatherRead, ScopeWeatherWrite}

var ErrInvalidToken = errors.New("invalid or expired token")

// User is an authenticated identity with its granted scopes.
type User struct {
	Username string   `json:"username"`
	Scopes   []string `json:"scopes"`
}

// HasScope reports whether the user was granted the scope.
func (u User) HasScope(scope string) bool {
	for _, s := range u.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// Claims is the JWT payload: registered claims plus granted scopes.
type Claims struct {
	Scopes []string `json:"scopes"`
	jwt.RegisteredClaims
}

// Manager verifies credentials and mints/parses tokens.
type Manager struct {
	secret            []byte
	tokenTTL          time.Duration
	adminUsername     string
	adminPasswordHash string
}

// NewManager creates a Manager. adminPasswordHash is a bcrypt hash.
func NewManager(secret string, tokenTTL time.Duration, adminUsername, adminPasswordHash string) *Manager {
	return &Manager{
		secret:            []byte(secret),
		tokenTTL:          tokenTTL,
		adminUsername:     adminUsername,
		adminPasswordHash: adminPasswordHash,
	}
}

// TokenTTL returns the configured token lifetime.
func (m *Manager) TokenTTL() time.Duration {
	return m.tokenTTL
}

// Authenticate checks the credentials against the configured admin
// account and returns the user with all scopes on success.
func (m *Manager) Authenticate(username, password string) (User, bool) {
	if username != m.adminUsername {
		return User{}, false
	}
	if err := bcrypt.CompareHashAndPassword([]byte(m.adminPasswordHash), []byte(password)); err != nil {
		return User{}, false
	}
	return User{Username: username, Scopes: AllScopes}, true
}

// CreateToken mints a signed token for the user.
func (m *Manager) CreateToken(user User) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		Scopes: user.Scopes,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Username,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.tokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// ParseToken validates a token string and returns the embedded user.
func (m *Manager) ParseToken(tokenString string) (User, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return User{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return User{}, ErrInvalidToken
	}
	return User{Username: claims.Subject, Scopes: claims.Scopes}, nil
}

// HashPassword returns a bcrypt hash of the password. Used by tests and
// operator tooling; the server itself only ever compares.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
