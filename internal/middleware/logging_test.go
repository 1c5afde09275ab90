package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRequestMeta(t *testing.T) {
	t.Run("set and get through the holder", func(t *testing.T) {
		ctx := WithRequestMeta(context.Background())

		SetIdentity(ctx, "alice")
		SetErrorCode(ctx, "ledger_error")

		if got := GetIdentity(ctx); got != "alice" {
			t.Errorf("GetIdentity() = %q, want alice", got)
		}
		if got := GetErrorCode(ctx); got != "ledger_error" {
			t.Errorf("GetErrorCode() = %q, want ledger_error", got)
		}
	})

	t.Run("setters are no-ops without a holder", func(t *testing.T) {
		ctx := context.Background()

		SetIdentity(ctx, "alice")
		SetErrorCode(ctx, "x")

		if got := GetIdentity(ctx); got != "" {
			t.Errorf("GetIdentity() = %q, want empty", got)
		}
		if got := GetErrorCode(ctx); got != "" {
			t.Errorf("GetErrorCode() = %q, want empty", got)
		}
	})

	t.Run("writes survive derived contexts", func(t *testing.T) {
		ctx := WithRequestMeta(context.Background())
		derived := context.WithValue(ctx, struct{ k string }{"x"}, "y")

		// A handler writing through a derived context must still be
		// visible to the middleware holding the original one.
		SetIdentity(derived, "alice")
		if got := GetIdentity(ctx); got != "alice" {
			t.Errorf("GetIdentity(parent) = %q, want alice", got)
		}
	})
}

func TestLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	handler := RequestID(Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		SetIdentity(r.Context(), "alice")
		SetErrorCode(r.Context(), "ledger_error")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{}}`))
	})))

	req := httptest.NewRequest(http.MethodPost, "/policies", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log entry %q: %v", buf.String(), err)
	}

	if entry["method"] != "POST" {
		t.Errorf("method = %v, want POST", entry["method"])
	}
	if entry["path"] != "/policies" {
		t.Errorf("path = %v, want /policies", entry["path"])
	}
	if entry["status"] != float64(http.StatusBadRequest) {
		t.Errorf("status = %v, want 400", entry["status"])
	}
	if entry["identity"] != "alice" {
		t.Errorf("identity = %v, want alice (recorded after routing)", entry["identity"])
	}
	if entry["error_code"] != "ledger_error" {
		t.Errorf("error_code = %v, want ledger_error", entry["error_code"])
	}
	if entry["request_id"] == "" || entry["request_id"] == nil {
		t.Error("request_id missing from log entry")
	}
	if entry["level"] != "WARN" {
		t.Errorf("level = %v, want WARN for a 4xx", entry["level"])
	}
}

func TestLoggingStatusDefaults(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	// Handler that never calls WriteHeader
	handler := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log entry: %v", err)
	}
	if entry["status"] != float64(http.StatusOK) {
		t.Errorf("status = %v, want 200 default", entry["status"])
	}
	if entry["size"] != float64(2) {
		t.Errorf("size = %v, want 2", entry["size"])
	}
}

func TestResponseWriterFirstHeaderWins(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := newResponseWriter(rec)

	rw.WriteHeader(http.StatusBadRequest)
	rw.WriteHeader(http.StatusOK)

	if rw.statusCode != http.StatusBadRequest {
		t.Errorf("statusCode = %d, want %d", rw.statusCode, http.StatusBadRequest)
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("recorded code = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}
