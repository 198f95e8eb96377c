// Package auth guards the admin surface: a single operator account checked
// against a bcrypt hash, and short-lived HS256 tokens.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrDisabled           = errors.New("admin login disabled")
)

const (
	// DefaultTTL is the token lifetime when none is configured.
	DefaultTTL = 12 * time.Hour

	issuer   = "joingroups"
	roleName = "admin"
)

// Claims is what an admin token carries.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Manager checks credentials and issues/parses tokens.
type Manager struct {
	email  string
	hash   []byte
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewManager builds a Manager. Login is disabled until email, hash and secret
// are all set.
func NewManager(email, passwordHash, secret string, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		email:  strings.ToLower(strings.TrimSpace(email)),
		hash:   []byte(passwordHash),
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Enabled reports whether login can succeed at all.
func (m *Manager) Enabled() bool {
	return m != nil && m.email != "" && len(m.hash) > 0 && len(m.secret) > 0
}

// Login verifies email and password and returns a signed token with its expiry.
func (m *Manager) Login(email, password string) (string, time.Time, error) {
	if !m.Enabled() {
		return "", time.Time{}, ErrDisabled
	}
	email = strings.ToLower(strings.TrimSpace(email))
	emailOK := subtle.ConstantTimeCompare([]byte(email), []byte(m.email)) == 1
	// always run bcrypt so a wrong email costs the same as a wrong password
	pwErr := bcrypt.CompareHashAndPassword(m.hash, []byte(password))
	if !emailOK || pwErr != nil {
		return "", time.Time{}, ErrInvalidCredentials
	}
	return m.Issue(m.email)
}

// Issue signs a token for subject.
func (m *Manager) Issue(subject string) (string, time.Time, error) {
	now := m.now()
	exp := now.Add(m.ttl)
	claims := Claims{
		Role: roleName,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Parse validates raw and returns its claims.
func (m *Manager) Parse(raw string) (*Claims, error) {
	if !m.Enabled() {
		return nil, ErrDisabled
	}
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrInvalidKeyType
		}
		return m.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(m.now), jwt.WithExpirationRequired())
	if err != nil || !tok.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Role != roleName {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// HashPassword is a helper for generating ADMIN_PASSWORD_HASH values.
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
