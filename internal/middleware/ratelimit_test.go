package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type failingStore struct{}

func (failingStore) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	return 0, errors.New("store unavailable")
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimitConfigValidate(t *testing.T) {
	if err := (RateLimitConfig{RequestsPerWindow: 10, WindowDuration: time.Minute}).Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}
	if err := (RateLimitConfig{RequestsPerWindow: 0, WindowDuration: time.Minute}).Validate(); err == nil {
		t.Error("zero RequestsPerWindow accepted")
	}
	if err := (RateLimitConfig{RequestsPerWindow: 10}).Validate(); err == nil {
		t.Error("zero WindowDuration accepted")
	}
}

func TestRateLimit(t *testing.T) {
	t.Run("allows under limit, blocks over", func(t *testing.T) {
		cfg := RateLimitConfig{RequestsPerWindow: 3, WindowDuration: time.Minute}
		handler := RateLimit(cfg, NewMemoryCounterStore(), nil)(okHandler())

		for i := 0; i < 3; i++ {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/policies", nil))
			if rec.Code != http.StatusOK {
				t.Fatalf("request %d status = %d, want 200", i+1, rec.Code)
			}
		}

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/policies", nil))
		if rec.Code != http.StatusTooManyRequests {
			t.Fatalf("status = %d, want 429", rec.Code)
		}
		if rec.Header().Get("Retry-After") == "" {
			t.Error("429 response carries no Retry-After")
		}
	})

	t.Run("limits are per client IP", func(t *testing.T) {
		cfg := RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Minute}
		handler := RateLimit(cfg, NewMemoryCounterStore(), nil)(okHandler())

		first := httptest.NewRequest(http.MethodGet, "/policies", nil)
		first.Header.Set("X-Forwarded-For", "10.0.0.1")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, first)
		if rec.Code != http.StatusOK {
			t.Fatalf("first client status = %d, want 200", rec.Code)
		}

		second := httptest.NewRequest(http.MethodGet, "/policies", nil)
		second.Header.Set("X-Forwarded-For", "10.0.0.2")
		rec = httptest.NewRecorder()
		handler.ServeHTTP(rec, second)
		if rec.Code != http.StatusOK {
			t.Errorf("second client status = %d, want 200 (independent budget)", rec.Code)
		}
	})

	t.Run("fails open when the store errors", func(t *testing.T) {
		cfg := RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Minute}
		handler := RateLimit(cfg, failingStore{}, nil)(okHandler())

		for i := 0; i < 5; i++ {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/policies", nil))
			if rec.Code != http.StatusOK {
				t.Fatalf("request %d status = %d, want 200 when store is down", i+1, rec.Code)
			}
		}
	})
}

func TestMemoryCounterStoreWindowReset(t *testing.T) {
	store := NewMemoryCounterStore()
	ctx := context.Background()

	if n, _ := store.Incr(ctx, "k", 10*time.Millisecond); n != 1 {
		t.Fatalf("first Incr = %d, want 1", n)
	}
	if n, _ := store.Incr(ctx, "k", 10*time.Millisecond); n != 2 {
		t.Fatalf("second Incr = %d, want 2", n)
	}

	time.Sleep(15 * time.Millisecond)

	if n, _ := store.Incr(ctx, "k", 10*time.Millisecond); n != 1 {
		t.Errorf("Incr after window expiry = %d, want 1", n)
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		forwarded  string
		want       string
	}{
		{"remote addr with port", "192.168.1.5:50000", "", "192.168.1.5"},
		{"single forwarded entry", "10.0.0.1:1234", "203.0.113.7", "203.0.113.7"},
		{"forwarded chain takes first", "10.0.0.1:1234", "203.0.113.7,10.0.0.2", "203.0.113.7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if got := clientIP(req); got != tt.want {
				t.Errorf("clientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
