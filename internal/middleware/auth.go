package middleware

import (
	"io"
	"net/http"
	"strings"
)

// TokenValidator validates a bearer token and returns the wallet identity
// label it was issued for.
type TokenValidator interface {
	ValidateToken(token string) (string, error)
}

// RequireAuth is a middleware that validates Authorization: Bearer tokens
// and records the token's identity for the request. Handlers use the
// recorded identity in place of any userID supplied in the request.
func RequireAuth(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				writeAuthError(w, r, "Missing bearer token")
				return
			}

			identity, err := validator.ValidateToken(token)
			if err != nil {
				writeAuthError(w, r, "Invalid or expired token")
				return
			}

			SetIdentity(r.Context(), identity)
			next.ServeHTTP(w, r)
		})
	}
}

func writeAuthError(w http.ResponseWriter, r *http.Request, message string) {
	SetErrorCode(r.Context(), "auth_failed")
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = io.WriteString(w, `{"error":{"code":"auth_failed","message":"`+message+`"}}`)
}
