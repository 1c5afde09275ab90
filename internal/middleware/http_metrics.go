package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// normalizePath converts paths with dynamic segments to route patterns to
// prevent cardinality explosion in metrics. /policies/abc-123 maps to
// /policies/{id}.
func normalizePath(path string) string {
	staticRoutes := map[string]bool{
		"/":           true,
		"/init":       true,
		"/policies":   true,
		"/auth/token": true,
		"/health":     true,
		"/ready":      true,
		"/metrics":    true,
	}

	if staticRoutes[path] {
		return path
	}

	if strings.HasPrefix(path, "/policies/") {
		parts := strings.Split(path, "/")
		if len(parts) == 3 && parts[2] != "" {
			return "/policies/{id}"
		}
	}

	return "/other"
}

// HTTPMetrics is a middleware that records request duration, count and
// response size with normalized path labels.
func HTTPMetrics(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if metrics == nil {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			rw := newResponseWriter(w)

			next.ServeHTTP(rw, r)

			path := normalizePath(r.URL.Path)
			status := strconv.Itoa(rw.statusCode)

			metrics.httpRequestDuration.WithLabelValues(r.Method, path, status).Observe(time.Since(start).Seconds())
			metrics.httpRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
			metrics.httpResponseSize.WithLabelValues(r.Method, path, status).Observe(float64(rw.size))
		})
	}
}
