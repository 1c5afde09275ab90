package api

import (
	"net/http"
)

// Middleware wraps an http.Handler with cross-cutting behavior.
type Middleware func(http.Handler) http.Handler

// RouterConfig carries the handlers and per-route middleware the router
// composes. Optional entries (Auth, Metrics, middleware) may be nil.
type RouterConfig struct {
	Policies *PolicyHandlers
	Health   *HealthHandlers
	Auth     *AuthHandlers

	// Metrics is the Prometheus exposition handler mounted at /metrics.
	Metrics http.Handler

	// RequireAuth guards the policy routes when token auth is enabled.
	RequireAuth Middleware

	// WriteLimit rate-limits the state-mutating policy routes on top of
	// the global limit applied to the whole router.
	WriteLimit Middleware
}

// NewRouter builds the HTTP routing table. Routes are registered with
// method-qualified patterns; anything that matches no route falls through
// to a structured 404 so clients never see the default plain-text page.
func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	guard := func(h http.HandlerFunc) http.Handler {
		var handler http.Handler = h
		if cfg.RequireAuth != nil {
			handler = cfg.RequireAuth(handler)
		}
		return handler
	}
	guardWrite := func(h http.HandlerFunc) http.Handler {
		handler := guard(h)
		if cfg.WriteLimit != nil {
			handler = cfg.WriteLimit(handler)
		}
		return handler
	}

	mux.Handle("POST /init", guardWrite(cfg.Policies.InitLedger))
	mux.Handle("POST /policies", guardWrite(cfg.Policies.CreatePolicy))
	mux.Handle("GET /policies", guard(cfg.Policies.ListPolicies))
	mux.Handle("GET /policies/{id}", guard(cfg.Policies.GetPolicy))
	mux.Handle("PUT /policies/{id}", guardWrite(cfg.Policies.UpdatePolicy))
	mux.Handle("DELETE /policies/{id}", guardWrite(cfg.Policies.DeletePolicy))

	if cfg.Auth != nil {
		mux.HandleFunc("POST /auth/token", cfg.Auth.Token)
	}
	if cfg.Health != nil {
		mux.HandleFunc("GET /health", cfg.Health.Health)
		mux.HandleFunc("GET /ready", cfg.Health.Ready)
	}
	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics)
	}

	mux.HandleFunc("/", NotFound)

	return mux
}

// NotFound is the catch-all for unmatched routes.
func NotFound(w http.ResponseWriter, r *http.Request) {
	WriteError(w, r.Context(), http.StatusNotFound, ErrCodeNotFound, "Resource not found")
}
