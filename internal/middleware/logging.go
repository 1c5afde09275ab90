package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"
)

// metaKey is the context key for per-request metadata.
type metaKey struct{}

// requestMeta carries fields that handlers record after routing (identity
// reference, error code) back to the logging middleware. Writes go through
// the shared holder, so no re-threading of contexts is needed.
type requestMeta struct {
	mu       sync.Mutex
	identity string
	code     string
}

// WithRequestMeta attaches a metadata holder to the context. The Logging
// middleware does this for every request; tests can call it directly.
func WithRequestMeta(ctx context.Context) context.Context {
	return context.WithValue(ctx, metaKey{}, &requestMeta{})
}

// SetIdentity records the caller's identity reference for the current
// request. It is a no-op when no metadata holder is attached.
func SetIdentity(ctx context.Context, identity string) {
	if meta, ok := ctx.Value(metaKey{}).(*requestMeta); ok {
		meta.mu.Lock()
		meta.identity = identity
		meta.mu.Unlock()
	}
}

// GetIdentity retrieves the recorded identity reference. Returns empty
// string if none was set.
func GetIdentity(ctx context.Context) string {
	if meta, ok := ctx.Value(metaKey{}).(*requestMeta); ok {
		meta.mu.Lock()
		defer meta.mu.Unlock()
		return meta.identity
	}
	return ""
}

// SetErrorCode records an error code for the current request so the logging
// middleware can attach it to the access log entry.
func SetErrorCode(ctx context.Context, code string) {
	if meta, ok := ctx.Value(metaKey{}).(*requestMeta); ok {
		meta.mu.Lock()
		meta.code = code
		meta.mu.Unlock()
	}
}

// GetErrorCode retrieves the recorded error code. Returns empty string if
// none was set.
func GetErrorCode(ctx context.Context) string {
	if meta, ok := ctx.Value(metaKey{}).(*requestMeta); ok {
		meta.mu.Lock()
		defer meta.mu.Unlock()
		return meta.code
	}
	return ""
}

// responseWriter wraps http.ResponseWriter to capture status code and response size.
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	size        int
	wroteHeader bool
}

// WriteHeader captures the status code before writing it. Only the first
// call sets the status code, matching http.ResponseWriter behavior.
func (rw *responseWriter) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.statusCode = code
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(code)
}

// Write captures the response size and writes the data.
func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.size += n
	return n, err
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

// NewLogger creates an slog.Logger based on the environment.
// In production (env == "production"), it returns a JSON handler.
// Otherwise, it returns a text handler for development.
func NewLogger(env string) *slog.Logger {
	var handler slog.Handler
	if env == "production" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
	}
	return slog.New(handler)
}

// Logging is a middleware that logs HTTP requests with structured fields.
// It captures: method, path, status, latency (ms), request ID, identity
// (if present), response size, and error_code (for error responses).
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := newResponseWriter(w)
			r = r.WithContext(WithRequestMeta(r.Context()))

			next.ServeHTTP(rw, r)

			latency := time.Since(start).Milliseconds()

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rw.statusCode),
				slog.Int64("latency_ms", latency),
				slog.Int("size", rw.size),
			}

			if requestID := GetRequestID(r.Context()); requestID != "" {
				attrs = append(attrs, slog.String("request_id", requestID))
			}

			if identity := GetIdentity(r.Context()); identity != "" {
				attrs = append(attrs, slog.String("identity", identity))
			}

			if rw.statusCode >= 400 {
				if errorCode := GetErrorCode(r.Context()); errorCode != "" {
					attrs = append(attrs, slog.String("error_code", errorCode))
				}
			}

			if rw.statusCode >= 500 {
				logger.LogAttrs(r.Context(), slog.LevelError, "request completed", attrs...)
			} else if rw.statusCode >= 400 {
				logger.LogAttrs(r.Context(), slog.LevelWarn, "request completed", attrs...)
			} else {
				logger.LogAttrs(r.Context(), slog.LevelInfo, "request completed", attrs...)
			}
		})
	}
}
