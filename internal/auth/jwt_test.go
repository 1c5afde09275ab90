package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret-at-least-32-characters"

func TestGenerateAndValidateToken(t *testing.T) {
	svc := NewService(testSecret)

	token, err := svc.GenerateToken("alice")
	if err != nil {
		t.Fatalf("GenerateToken() returned error: %v", err)
	}
	if token == "" {
		t.Fatal("GenerateToken() returned empty token")
	}

	identity, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken() returned error: %v", err)
	}
	if identity != "alice" {
		t.Errorf("identity = %q, want alice", identity)
	}
}

func TestGenerateTokenEmptyIdentity(t *testing.T) {
	svc := NewService(testSecret)
	if _, err := svc.GenerateToken(""); !errors.Is(err, ErrEmptyIdentity) {
		t.Errorf("error = %v, want ErrEmptyIdentity", err)
	}
}

func TestValidateTokenFailures(t *testing.T) {
	svc := NewService(testSecret)

	t.Run("garbage token", func(t *testing.T) {
		if _, err := svc.ValidateToken("not.a.jwt"); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("error = %v, want ErrInvalidToken", err)
		}
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewService("a-completely-different-secret-value")
		token, err := other.GenerateToken("alice")
		if err != nil {
			t.Fatalf("GenerateToken() returned error: %v", err)
		}
		if _, err := svc.ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("error = %v, want ErrInvalidToken", err)
		}
	})

	t.Run("expired token", func(t *testing.T) {
		// No leeway so a just-expired token fails immediately
		strict := NewServiceWithLeeway(testSecret, 0)

		claims := Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "alice",
				IssuedAt:  jwt.NewNumericDate(time.Now().Add(-time.Hour)),
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			},
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
		if err != nil {
			t.Fatalf("sign: %v", err)
		}

		if _, err := strict.ValidateToken(token); !errors.Is(err, ErrExpiredToken) {
			t.Errorf("error = %v, want ErrExpiredToken", err)
		}
	})

	t.Run("unsigned algorithm rejected", func(t *testing.T) {
		claims := Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "alice",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
		if err != nil {
			t.Fatalf("sign: %v", err)
		}

		if _, err := svc.ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("error = %v, want ErrInvalidToken", err)
		}
	})

	t.Run("missing subject rejected", func(t *testing.T) {
		claims := Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
		if err != nil {
			t.Fatalf("sign: %v", err)
		}

		if _, err := svc.ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("error = %v, want ErrInvalidToken", err)
		}
	})
}
