package utils

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"math/big"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword returns bcrypt hash using the given cost.
func HashPassword(plain string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword safely compares bcrypt hash and plain password.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// ErrWeakPassword is returned by ValidatePasswordStrength for passwords
// that do not satisfy the minimum rules. Handlers translate it into a
// 400 response before anything is persisted.
var ErrWeakPassword = errors.New("password must be at least 8 characters with uppercase, lowercase and a digit")

// ValidatePasswordStrength checks the rules applied to every new
// password: at least 8 characters, one uppercase, one lowercase and
// one digit.
func ValidatePasswordStrength(pw string) error {
	if len(pw) < 8 {
		return ErrWeakPassword
	}
	var upper, lower, digit bool
	for _, r := range pw {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !upper || !lower || !digit {
		return ErrWeakPassword
	}
	return nil
}

const (
	pwUpper   = "ABCDEFGHJKLMNPQRSTUVWXYZ"
	pwLower   = "abcdefghijkmnpqrstuvwxyz"
	pwDigits  = "23456789"
	pwSpecial = "!@#$%&*+-_?"
)

// GenerateStrongPassword produces a random password of the given length
// (minimum 8) guaranteed to contain at least one uppercase letter, one
// lowercase letter, one digit and one special character. The remaining
// characters are drawn uniformly from the combined alphabet and the
// result is shuffled so the guaranteed characters do not sit at fixed
// offsets. All randomness comes from crypto/rand.
func GenerateStrongPassword(length int) (string, error) {
	if length < 8 {
		length = 8
	}
	out := make([]byte, 0, length)
	for _, set := range []string{pwUpper, pwLower, pwDigits, pwSpecial} {
		c, err := randomFrom(set)
		if err != nil {
			return "", err
		}
		out = append(out, c)
	}
	all := pwUpper + pwLower + pwDigits + pwSpecial
	for len(out) < length {
		c, err := randomFrom(all)
		if err != nil {
			return "", err
		}
		out = append(out, c)
	}
	// Fisher-Yates with crypto/rand indices.
	for i := len(out) - 1; i > 0; i-- {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return "", err
		}
		j := int(n.Int64())
		out[i], out[j] = out[j], out[i]
	}
	return string(out), nil
}

func randomFrom(set string) (byte, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(set))))
	if err != nil {
		return 0, err
	}
	return set[n.Int64()], nil
}

// GenerateAPIKey returns a url-safe random token with 32 bytes of
// entropy, matching the shape of keys issued by the original service.
func GenerateAPIKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
