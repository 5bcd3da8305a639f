// Package token issues and verifies the signed session tokens that ride in
// Chirp's auth cookie. Tokens are HS256 JWTs carrying only the user id.
package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	issuer = "chirp"

	// minSecretBytes rejects secrets short enough to brute-force.
	minSecretBytes = 32
)

// ErrInvalidToken is returned for any token that fails verification,
// including expired and malformed ones.
var ErrInvalidToken = errors.New("invalid_token")

// Config holds the signing material and token lifetime.
type Config struct {
	Secret string
	TTL    time.Duration
}

// Manager signs and verifies session tokens.
type Manager struct {
	secret []byte
	ttl    time.Duration
}

// NewManager validates the config and constructs a Manager.
func NewManager(cfg Config) (*Manager, error) {
	secret := strings.TrimSpace(cfg.Secret)
	if len(secret) < minSecretBytes {
		return nil, fmt.Errorf("token: secret must be at least %d bytes", minSecretBytes)
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Manager{secret: []byte(secret), ttl: ttl}, nil
}

// TTL reports the configured token lifetime.
func (m *Manager) TTL() time.Duration { return m.ttl }

// Issue signs a token for userID and returns it with its expiry.
func (m *Manager) Issue(userID string, now time.Time) (string, time.Time, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", time.Time{}, errors.New("token: empty user id")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}
	exp := now.Add(m.ttl)

	claims := jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Verify checks signature, issuer and expiry, returning the user id.
func (m *Manager) Verify(raw string, now time.Time) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidToken
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &claims,
		func(t *jwt.Token) (any, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims.Subject, nil
}
