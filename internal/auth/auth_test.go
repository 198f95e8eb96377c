package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return NewManager("Admin@Example.com", string(hash), "jwt-secret", time.Hour)
}

func TestLogin_IssuesParsableToken(t *testing.T) {
	m := newTestManager(t)

	tok, exp, err := m.Login(" admin@example.com ", "s3cret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if time.Until(exp) <= 0 {
		t.Fatalf("expiry in the past: %v", exp)
	}
	c, err := m.Parse(tok)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if c.Subject != "admin@example.com" || c.Role != "admin" {
		t.Fatalf("claims = %+v", c)
	}
}

func TestLogin_RejectsBadCredentials(t *testing.T) {
	m := newTestManager(t)
	cases := []struct{ email, pw string }{
		{"admin@example.com", "wrong"},
		{"someone@example.com", "s3cret"},
		{"", ""},
	}
	for _, tc := range cases {
		if _, _, err := m.Login(tc.email, tc.pw); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("Login(%q,%q) err = %v", tc.email, tc.pw, err)
		}
	}
}

func TestManager_Disabled(t *testing.T) {
	m := NewManager("", "", "", 0)
	if m.Enabled() {
		t.Fatalf("expected disabled")
	}
	if _, _, err := m.Login("a", "b"); !errors.Is(err, ErrDisabled) {
		t.Fatalf("Login err = %v", err)
	}
	if _, err := m.Parse("x"); !errors.Is(err, ErrDisabled) {
		t.Fatalf("Parse err = %v", err)
	}
	var nilM *Manager
	if nilM.Enabled() {
		t.Fatalf("nil manager must be disabled")
	}
}

func TestParse_RejectsExpiredForeignAndTampered(t *testing.T) {
	m := newTestManager(t)
	tok, _, err := m.Issue("admin@example.com")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	later := *m
	later.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := later.Parse(tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expired token accepted: %v", err)
	}

	other := NewManager("admin@example.com", "x", "other-secret", time.Hour)
	if _, err := other.Parse(tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("token signed with another secret accepted: %v", err)
	}

	if _, err := m.Parse(tok + "x"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("tampered token accepted: %v", err)
	}

	noRole, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte("jwt-secret"))
	if _, err := m.Parse(noRole); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("token without admin role accepted: %v", err)
	}
}

func TestHashPassword(t *testing.T) {
	h, err := HashPassword("pw")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(h), []byte("pw")) != nil {
		t.Fatalf("hash does not verify")
	}
}
