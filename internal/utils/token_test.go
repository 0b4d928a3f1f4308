package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestNewAndParseAccessToken(t *testing.T) {
	t.Parallel()

	tok, err := NewAccessToken("super-secret", "user-123", "alice@test.com", "user", 30)
	if err != nil {
		t.Fatalf("NewAccessToken error: %v", err)
	}

	c, err := ParseAccessToken("super-secret", tok)
	if err != nil {
		t.Fatalf("ParseAccessToken error: %v", err)
	}
	if c.UserID != "user-123" {
		t.Fatalf("user id mismatch: got %q want %q", c.UserID, "user-123")
	}
	if c.Email != "alice@test.com" {
		t.Fatalf("email mismatch: got %q", c.Email)
	}
	if c.Role != "user" {
		t.Fatalf("role mismatch: got %q", c.Role)
	}
}

func TestParseAccessToken_Expired(t *testing.T) {
	t.Parallel()

	// Sign an already-expired token directly.
	claims := jwt.MapClaims{
		"sub": "u1",
		"exp": time.Now().UTC().Add(-time.Minute).Unix(),
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	_, err = ParseAccessToken("secret", raw)
	if err != ErrTokenExpired {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestParseAccessToken_WrongSecret(t *testing.T) {
	t.Parallel()

	tok, err := NewAccessToken("right-secret", "u2", "b@test.com", "user", 1)
	if err != nil {
		t.Fatalf("NewAccessToken error: %v", err)
	}

	_, err = ParseAccessToken("wrong-secret", tok)
	if err != ErrTokenInvalid {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestParseAccessToken_Malformed(t *testing.T) {
	t.Parallel()

	_, err := ParseAccessToken("k", "not.a.jwt")
	if err != ErrTokenInvalid {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestParseAccessToken_MissingSubject(t *testing.T) {
	t.Parallel()

	claims := jwt.MapClaims{
		"email": "c@test.com",
		"exp":   time.Now().UTC().Add(time.Hour).Unix(),
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("k"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := ParseAccessToken("k", raw); err != ErrTokenInvalid {
		t.Fatalf("expected ErrTokenInvalid for missing sub, got %v", err)
	}
}
