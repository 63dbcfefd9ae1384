package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"nonsense", slog.LevelDebug},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLogLevel(tt.input); got != tt.want {
				t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestRequestLogging(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(RequestLogging(log))
	router.Get("/admin/stores", func(w http.ResponseWriter, r *http.Request) {
		ContextWithLogAttrs(r.Context(), slog.String("cache", "miss"), slog.Int("upstream_status", http.StatusTeapot))
		w.WriteHeader(http.StatusTeapot)
	})
	router.Get("/admin/limited", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	router.Get("/admin/broken", func(w http.ResponseWriter, r *http.Request) {
		ContextWithLogAttrs(r.Context(), slog.Int("upstream_status", http.StatusBadGateway))
		w.WriteHeader(http.StatusBadGateway)
	})
	router.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if buf.Len() != 0 {
		t.Fatalf("health requests should not be logged, got %s", buf.String())
	}

	tests := []struct {
		target    string
		wantLevel string
		wantMsg   string
	}{
		{"/admin/stores?limit=5&offset=0", "INFO", "request proxied"},
		{"/admin/limited", "WARN", "request completed"},
		{"/admin/broken", "WARN", "request proxied"},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			buf.Reset()
			router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tt.target, nil))

			lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
			if len(lines) != 1 {
				t.Fatalf("expected 1 log line, got %d: %s", len(lines), buf.String())
			}
			var entry map[string]any
			if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
				t.Fatalf("log line is not JSON: %v", err)
			}
			if entry["level"] != tt.wantLevel || entry["msg"] != tt.wantMsg {
				t.Errorf("level/msg = %v/%v, want %v/%v", entry["level"], entry["msg"], tt.wantLevel, tt.wantMsg)
			}
			if entry["peer"] != "192.0.2.1:1234" {
				t.Errorf("peer = %v", entry["peer"])
			}
			if entry["request_id"] == "" {
				t.Error("request_id not set")
			}
		})
	}

	buf.Reset()
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/admin/stores?limit=5&offset=0", nil))
	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatal(err)
	}
	if entry["cache"] != "miss" || entry["upstream_status"] != float64(http.StatusTeapot) {
		t.Errorf("context attributes missing from final log line: %v", entry)
	}
	if entry["query_params"] != float64(2) {
		t.Errorf("query_params = %v, want 2", entry["query_params"])
	}
}

func TestContextRequestLoggerFallback(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if ContextRequestLogger(req.Context()) == nil {
		t.Fatal("expected default logger when none is stored in the context")
	}
}
