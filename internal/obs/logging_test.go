package obs

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

func TestNewLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "json", "nonsense")
	if logger.GetLevel() != zerolog.InfoLevel {
		t.Fatalf("expected info fallback, got %s", logger.GetLevel())
	}
	logger.Debug().Msg("hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug line written at info level: %s", buf.String())
	}

	if got := newLogger(&buf, "json", "WARN").GetLevel(); got != zerolog.WarnLevel {
		t.Fatalf("expected warn, got %s", got)
	}
}

func TestRequestLoggerLevelsAndSkip(t *testing.T) {
	var buf bytes.Buffer
	rl := RequestLogger{Logger: zerolog.New(&buf), Skip: SkipPaths("/health/")}
	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/orders/x" {
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/x", nil)
	req = req.WithContext(context.WithValue(req.Context(), middleware.RequestIDKey, "req-7"))
	handler.ServeHTTP(httptest.NewRecorder(), req)
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health/live", nil))

	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("expected exactly one access line, got %q: %v", buf.String(), err)
	}
	if line["level"] != "warn" || line["status"] != float64(http.StatusNotFound) || line["request_id"] != "req-7" {
		t.Fatalf("unexpected access line %v", line)
	}
}
