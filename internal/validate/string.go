// Package validate provides centralized input validation for the ledger
// gateway API. Every value that ends up in a ledger transaction argument
// passes through here before any session is opened.
package validate

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// String validation errors
var (
	ErrStringTooShort    = errors.New("string is too short")
	ErrStringTooLong     = errors.New("string is too long")
	ErrInvalidCharacters = errors.New("string contains invalid characters")
	ErrEmpty             = errors.New("string is empty")
)

// StringConstraints defines validation constraints for a string.
type StringConstraints struct {
	MinLength      int            // Minimum length (0 = no minimum)
	MaxLength      int            // Maximum length (0 = no maximum)
	AllowedPattern *regexp.Regexp // Optional regex pattern for allowed characters
	AllowEmpty     bool           // Whether empty strings are allowed
	TrimSpace      bool           // Whether to trim whitespace before validation
}

// String validates a string against the given constraints.
// Returns the validated (and optionally trimmed) string and an error if validation fails.
func String(s string, constraints StringConstraints) (string, error) {
	if constraints.TrimSpace {
		s = strings.TrimSpace(s)
	}

	if s == "" {
		if !constraints.AllowEmpty {
			return "", ErrEmpty
		}
		return s, nil
	}

	// Character count, not byte count
	length := utf8.RuneCountInString(s)

	if constraints.MinLength > 0 && length < constraints.MinLength {
		return "", fmt.Errorf("%w: got %d chars, need at least %d", ErrStringTooShort, length, constraints.MinLength)
	}

	if constraints.MaxLength > 0 && length > constraints.MaxLength {
		return "", fmt.Errorf("%w: got %d chars, maximum is %d", ErrStringTooLong, length, constraints.MaxLength)
	}

	if constraints.AllowedPattern != nil && !constraints.AllowedPattern.MatchString(s) {
		return "", fmt.Errorf("%w: does not match required pattern", ErrInvalidCharacters)
	}

	return s, nil
}

var (
	identityPattern = regexp.MustCompile(`^[A-Za-z0-9@_\-\.]+$`)
	policyIDPattern = regexp.MustCompile(`^[A-Za-z0-9_\-]+$`)
)

// Identity validates a wallet identity reference:
// - 1-64 characters
// - Letters, numbers, at-sign, dash, underscore, period only
func Identity(ref string) (string, error) {
	return String(ref, StringConstraints{
		MinLength:      1,
		MaxLength:      64,
		AllowedPattern: identityPattern,
		AllowEmpty:     false,
		TrimSpace:      true,
	})
}

// PolicyID validates a policy identifier as it appears in a URL path:
// - 1-128 characters
// - Letters, numbers, dash, underscore only (covers UUIDs and seeded IDs)
func PolicyID(id string) (string, error) {
	return String(id, StringConstraints{
		MinLength:      1,
		MaxLength:      128,
		AllowedPattern: policyIDPattern,
		AllowEmpty:     false,
		TrimSpace:      true,
	})
}

// Field validates a free-text policy field bound for a transaction argument:
// - Required (not empty)
// - Max 1024 characters
func Field(value string) (string, error) {
	return String(value, StringConstraints{
		MinLength:  1,
		MaxLength:  1024,
		AllowEmpty: false,
		TrimSpace:  true,
	})
}
