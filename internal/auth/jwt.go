// Package auth provides JWT token management binding API callers to wallet
// identity labels.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenExpiry is how long an issued token stays valid.
const TokenExpiry = 15 * time.Minute

// DefaultLeeway for token validation.
const DefaultLeeway = 30 * time.Second

var (
	// ErrInvalidToken is returned when token validation fails.
	ErrInvalidToken = errors.New("invalid token")

	// ErrExpiredToken is returned when the token has expired.
	ErrExpiredToken = errors.New("token has expired")

	// ErrEmptyIdentity is returned when the identity label is empty.
	ErrEmptyIdentity = errors.New("identity label cannot be empty")
)

// Claims are the JWT claims carried by gateway tokens. The registered
// subject holds the wallet identity label.
type Claims struct {
	jwt.RegisteredClaims
}

// Service handles JWT token operations.
type Service struct {
	secret []byte
	leeway time.Duration
}

// NewService creates a Service signing with the given secret.
func NewService(secret string) *Service {
	return &Service{
		secret: []byte(secret),
		leeway: DefaultLeeway,
	}
}

// NewServiceWithLeeway creates a Service with custom validation leeway.
func NewServiceWithLeeway(secret string, leeway time.Duration) *Service {
	return &Service{
		secret: []byte(secret),
		leeway: leeway,
	}
}

// GenerateToken creates a token whose subject is the given wallet identity
// label.
func (s *Service) GenerateToken(identity string) (string, error) {
	if identity == "" {
		return "", ErrEmptyIdentity
	}

	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenExpiry)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// ValidateToken verifies the token signature and expiry and returns the
// wallet identity label it was issued for.
func (s *Service) ValidateToken(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	}, jwt.WithLeeway(s.leeway), jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpiredToken
		}
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
