package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/trapeze-h2020/ledger-gateway/internal/auth"
	"github.com/trapeze-h2020/ledger-gateway/internal/ledger"
	"github.com/trapeze-h2020/ledger-gateway/internal/validate"
)

// TokenIssuer mints signed access tokens for a wallet identity.
type TokenIssuer interface {
	GenerateToken(identity string) (string, error)
}

// AuthHandlers provides the token endpoint. Tokens are only issued for
// identities that are actually enrolled in the wallet, so a stolen label
// alone is not enough to obtain one ledger-signed session later on a
// network that rejects the credentials.
type AuthHandlers struct {
	issuer   TokenIssuer
	resolver ledger.IdentityResolver
}

// NewAuthHandlers creates the token endpoint handler.
func NewAuthHandlers(issuer TokenIssuer, resolver ledger.IdentityResolver) *AuthHandlers {
	return &AuthHandlers{issuer: issuer, resolver: resolver}
}

// TokenRequest is the request body for POST /auth/token.
type TokenRequest struct {
	UserID string `json:"userID"`
}

// TokenResponse is the response body for a successfully issued token.
type TokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expiresIn"`
}

// Token handles POST /auth/token - exchanges an enrolled wallet identity
// for a short-lived bearer token.
func (h *AuthHandlers) Token(w http.ResponseWriter, r *http.Request) {
	var req TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	identity, err := validate.Identity(req.UserID)
	if err != nil {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, fmt.Sprintf("userID: %v", err))
		return
	}

	if _, err := h.resolver.Resolve(identity); err != nil {
		if errors.Is(err, ledger.ErrIdentityNotFound) {
			WriteError(w, r.Context(), http.StatusUnauthorized, ErrCodeAuthFailed, "Unknown identity")
			return
		}
		slog.ErrorContext(r.Context(), "identity lookup failed", "error", err)
		WriteError(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "Internal server error")
		return
	}

	token, err := h.issuer.GenerateToken(identity)
	if err != nil {
		slog.ErrorContext(r.Context(), "token generation failed", "error", err)
		WriteError(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "Internal server error")
		return
	}

	writeJSON(w, r.Context(), http.StatusOK, TokenResponse{
		Token:     token,
		ExpiresIn: int(auth.TokenExpiry.Seconds()),
	})
}
