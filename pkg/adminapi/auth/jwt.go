// Package auth mints and validates the single operator token the admin API
// accepts. There is no user database: one HMAC key is generated in memory
// when the daemon starts, one token is signed against it, and that token is
// printed to the log once for the operator to copy.
package auth

import (
	"crypto/rand"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid or expired token")
)

// Claims is the JWT payload for the operator token. It carries no identity
// beyond "this holder may administer this daemon".
type Claims struct {
	jwt.RegisteredClaims
}

// Service signs and validates the operator token against an in-memory HMAC
// key generated at construction time.
type Service struct {
	secret []byte
	issuer string
}

// NewService generates a fresh random signing key.
func NewService(issuer string) (*Service, error) {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, err
	}
	return &Service{secret: secret, issuer: issuer}, nil
}

// Mint signs a new operator token valid for ttl.
func (s *Service) Mint(ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Validate parses and verifies a bearer token, returning ErrInvalidToken for
// any failure (expired, wrong signature, malformed).
func (s *Service) Validate(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
