package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/trapeze-h2020/ledger-gateway/internal/ledger"
)

func TestRouterNotFound(t *testing.T) {
	handler := newTestRouter(ledger.NewInMemoryLedger())

	paths := []string{"/", "/nope", "/policies/p1/extra", "/api/policies"}
	for _, path := range paths {
		rec := doRequest(t, handler, http.MethodGet, path, nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("GET %s status = %d, want %d", path, rec.Code, http.StatusNotFound)
			continue
		}
		if code := decodeErrorCode(t, rec); code != ErrCodeNotFound {
			t.Errorf("GET %s error code = %q, want %q", path, code, ErrCodeNotFound)
		}
	}
}

func TestRouterMethodRouting(t *testing.T) {
	handler := newTestRouter(ledger.NewInMemoryLedger())

	// PATCH is not part of the surface anywhere
	req := httptest.NewRequest(http.MethodPatch, "/policies/p1", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("PATCH /policies/p1 status = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}
}

func TestRouterAuthGuard(t *testing.T) {
	denyAll := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			WriteError(w, r.Context(), http.StatusUnauthorized, ErrCodeAuthFailed, "Missing token")
		})
	}

	handler := NewRouter(RouterConfig{
		Policies:    NewPolicyHandlers(ledger.NewInMemoryLedger(), "mychannel", "trapeze"),
		Health:      NewHealthHandlers(HealthHandlersConfig{}),
		RequireAuth: denyAll,
	})

	// Policy routes are guarded
	rec := doRequest(t, handler, http.MethodGet, "/policies", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("GET /policies status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}

	// Probes stay open
	rec = doRequest(t, handler, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("GET /health status = %d, want %d", rec.Code, http.StatusOK)
	}
}
