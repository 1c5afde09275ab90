package middleware

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimitConfig defines the rate limiting configuration.
type RateLimitConfig struct {
	// RequestsPerWindow is the maximum number of requests allowed per window.
	// Must be > 0.
	RequestsPerWindow int
	// WindowDuration is the time window for the rate limit.
	// Must be > 0.
	WindowDuration time.Duration
}

// Validate checks that the RateLimitConfig has valid values.
func (c RateLimitConfig) Validate() error {
	if c.RequestsPerWindow <= 0 {
		return fmt.Errorf("RequestsPerWindow must be > 0 (got %d)", c.RequestsPerWindow)
	}
	if c.WindowDuration <= 0 {
		return fmt.Errorf("WindowDuration must be > 0 (got %s)", c.WindowDuration)
	}
	return nil
}

// defaultGlobalLimit is the default global rate limit (100 requests per minute).
var defaultGlobalLimit = RateLimitConfig{
	RequestsPerWindow: 100,
	WindowDuration:    time.Minute,
}

// defaultWriteLimit is the default limit for ledger write endpoints
// (20 requests per minute). Writes cost consensus resources, so they get a
// tighter budget than reads.
var defaultWriteLimit = RateLimitConfig{
	RequestsPerWindow: 20,
	WindowDuration:    time.Minute,
}

// DefaultGlobalLimit returns a copy of the default global rate limit config.
func DefaultGlobalLimit() RateLimitConfig {
	return defaultGlobalLimit
}

// DefaultWriteLimit returns a copy of the default write endpoint rate limit config.
func DefaultWriteLimit() RateLimitConfig {
	return defaultWriteLimit
}

// CounterStore counts requests per key within a fixed window. Incr returns
// the count including the current request.
type CounterStore interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// MemoryCounterStore is an in-process CounterStore. Suitable for a single
// instance; use the Redis store when running multiple replicas.
type MemoryCounterStore struct {
	mu      sync.Mutex
	windows map[string]*countWindow
}

type countWindow struct {
	count   int64
	resetAt time.Time
}

// NewMemoryCounterStore creates a new in-memory counter store.
func NewMemoryCounterStore() *MemoryCounterStore {
	return &MemoryCounterStore{
		windows: make(map[string]*countWindow),
	}
}

// Incr increments the counter for key, starting a new window if the
// previous one expired.
func (s *MemoryCounterStore) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	w, ok := s.windows[key]
	if !ok || now.After(w.resetAt) {
		w = &countWindow{resetAt: now.Add(window)}
		s.windows[key] = w
	}
	w.count++
	return w.count, nil
}

// RedisCounterStore is a Redis-backed CounterStore for multi-instance
// deployments.
type RedisCounterStore struct {
	client *redis.Client
}

// NewRedisCounterStore creates a counter store on the given Redis client.
func NewRedisCounterStore(client *redis.Client) *RedisCounterStore {
	return &RedisCounterStore{client: client}
}

// Incr increments the counter for key and sets the window expiry on first
// increment.
func (s *RedisCounterStore) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}
	if count == 1 {
		if err := s.client.Expire(ctx, key, window).Err(); err != nil {
			return count, fmt.Errorf("failed to set rate limit window: %w", err)
		}
	}
	return count, nil
}

// RateLimit is a middleware that enforces a fixed-window per-client-IP rate
// limit. Store errors fail open: a broken counter backend must not take the
// gateway down with it.
func RateLimit(cfg RateLimitConfig, store CounterStore, metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			endpoint := normalizePath(r.URL.Path)
			if metrics != nil {
				metrics.rateLimitRequests.WithLabelValues(endpoint).Inc()
			}

			key := "ratelimit:" + endpoint + ":" + clientIP(r)
			count, err := store.Incr(r.Context(), key, cfg.WindowDuration)
			if err != nil {
				if metrics != nil {
					metrics.rateLimitStoreErrs.Inc()
				}
				next.ServeHTTP(w, r)
				return
			}

			if count > int64(cfg.RequestsPerWindow) {
				if metrics != nil {
					metrics.rateLimitBlocked.WithLabelValues(endpoint).Inc()
				}
				SetErrorCode(r.Context(), "rate_limited")
				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				w.Header().Set("Retry-After", strconv.Itoa(int(cfg.WindowDuration.Seconds())))
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = io.WriteString(w, `{"error":{"code":"rate_limited","message":"Too many requests"}}`)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP extracts the client address, preferring the first entry of
// X-Forwarded-For when present.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		for i := 0; i < len(fwd); i++ {
			if fwd[i] == ',' {
				return fwd[:i]
			}
		}
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
