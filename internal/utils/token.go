package utils // package utils provides helper functions for token creation and hashing

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
)

// Sentinel errors returned by ParseAccessToken so callers can tell an
// expired token apart from a forged or malformed one.
var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("invalid token")
)

// Claims is the verified claim set carried by an access token. Validity
// is determined solely by signature and expiry; live account status is
// re-checked against the user row by the auth middleware.
type Claims struct {
	UserID string // subject, the user's UUID
	Email  string // email at issue time
	Role   string // role at issue time
}

// NewAccessToken builds and signs an HS256 JWT for a user. It takes the
// signing secret, the user's identity fields and a TTL in days. The JWT
// includes the standard subject (sub), expiration (exp) and issued at
// (iat) claims plus email and role.
func NewAccessToken(secret, userID, email, role string, ttlDays int) (string, error) {
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"sub":   userID,
		"email": email,
		"role":  role,
		"exp":   now.Add(time.Duration(ttlDays) * 24 * time.Hour).Unix(),
		"iat":   now.Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString([]byte(secret))
}

// ParseAccessToken verifies signature and expiry and returns the claim
// set. Expired tokens yield ErrTokenExpired; everything else that fails
// verification yields ErrTokenInvalid.
func ParseAccessToken(secret, raw string) (Claims, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		// Reject tokens signed with anything but HMAC.
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return []byte(secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrTokenExpired
		}
		return Claims{}, ErrTokenInvalid
	}
	if !tok.Valid {
		return Claims{}, ErrTokenInvalid
	}
	mc, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, ErrTokenInvalid
	}
	c := Claims{}
	if v, ok := mc["sub"].(string); ok {
		c.UserID = v
	}
	if v, ok := mc["email"].(string); ok {
		c.Email = v
	}
	if v, ok := mc["role"].(string); ok {
		c.Role = v
	}
	if c.UserID == "" {
		return Claims{}, ErrTokenInvalid
	}
	return c, nil
}
