package identity

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is the signup policy baseline.
const MinPasswordLength = 6

// bcryptCost stays at the library default; raising it is a deliberate
// operational decision because it changes login latency.
const bcryptCost = bcrypt.DefaultCost

// CheckPasswordPolicy validates a plain password against signup policy.
func CheckPasswordPolicy(plain string) error {
	if len(plain) < MinPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, MinPasswordLength)
	}
	// bcrypt truncates beyond 72 bytes; reject instead of silently weakening.
	if len(plain) > 72 {
		return fmt.Errorf("%w: password too long", ErrInvalidInput)
	}
	return nil
}

// HashPassword returns a bcrypt hash of plain.
func HashPassword(plain string) (string, error) {
	if err := CheckPasswordPolicy(plain); err != nil {
		return "", err
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword reports whether plain matches the stored bcrypt hash.
// A mismatch is (false, nil); only malformed hashes produce an error.
func VerifyPassword(plain, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, err
}
