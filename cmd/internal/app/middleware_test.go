package app

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWithRequestLogging_LogsStatusAndPath(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))

	h := WithRequestLogging(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}), log)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/messages/users", nil))

	if rr.Code != http.StatusTeapot {
		t.Fatalf("status=%d, want passthrough 418", rr.Code)
	}

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if entry["path"] != "/api/messages/users" {
		t.Fatalf("path=%v", entry["path"])
	}
	if entry["status"] != float64(http.StatusTeapot) {
		t.Fatalf("status=%v", entry["status"])
	}
	if entry["bytes"] != float64(len("short and stout")) {
		t.Fatalf("bytes=%v", entry["bytes"])
	}
}

func TestWithRequestLogging_SkipsProbes(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))

	h := WithRequestLogging(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), log)

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	}
	if buf.Len() != 0 {
		t.Fatalf("probe requests were logged: %q", buf.String())
	}
}

func TestLoggingResponseWriter_PreservesUnwrap(t *testing.T) {
	t.Parallel()

	rr := httptest.NewRecorder()
	lrw := &loggingResponseWriter{ResponseWriter: rr, status: http.StatusOK}

	if got := lrw.Unwrap(); got != http.ResponseWriter(rr) {
		t.Fatalf("Unwrap returned %T, want the wrapped recorder", got)
	}

	// Flush must not panic even when the underlying writer supports it.
	lrw.Flush()
	if !rr.Flushed {
		t.Fatalf("flush was not forwarded")
	}

	n, err := lrw.ReadFrom(strings.NewReader("payload"))
	if err != nil || n != int64(len("payload")) {
		t.Fatalf("ReadFrom=(%d,%v)", n, err)
	}
	if lrw.bytes != int64(len("payload")) {
		t.Fatalf("bytes=%d", lrw.bytes)
	}
}
