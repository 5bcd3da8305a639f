package app

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newMemoryApp(t *testing.T, cfg Config) *App {
	t.Helper()
	a, err := New(cfg, testLogger())
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	t.Cleanup(a.closeStores)
	return a
}

func TestRegisterHTTP_ServesRuntimeEndpoints(t *testing.T) {
	a := newMemoryApp(t, Config{})

	mux := http.NewServeMux()
	registerHTTP(mux, a)

	ts := httptest.NewServer(mux)
	defer ts.Close()

	cases := []struct {
		path string
		want int
	}{
		{path: "/healthz", want: http.StatusOK},
		{path: "/readyz", want: http.StatusOK},
		{path: "/metrics", want: http.StatusOK},
		{path: "/api/auth/check", want: http.StatusUnauthorized},
		{path: "/api/messages/users", want: http.StatusUnauthorized},
	}

	for _, tc := range cases {
		resp, err := http.Get(ts.URL + tc.path)
		if err != nil {
			t.Fatalf("get %s: %v", tc.path, err)
		}
		_ = resp.Body.Close()
		if resp.StatusCode != tc.want {
			t.Fatalf("%s status=%d want=%d", tc.path, resp.StatusCode, tc.want)
		}
	}
}

func TestReadyz_RequiresDBWhenConfigured(t *testing.T) {
	a := newMemoryApp(t, Config{ReadinessRequireDB: true})

	mux := http.NewServeMux()
	registerHTTP(mux, a)

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz status=%d, want 503 without a database", rr.Code)
	}
}

func TestNew_RejectsShortConfiguredSecret(t *testing.T) {
	if _, err := New(Config{JWTSecret: "short"}, testLogger()); err == nil {
		t.Fatalf("expected error for short CHIRP_JWT_SECRET")
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("CHIRP_HTTP_ADDR", "127.0.0.1:9999")
	t.Setenv("CHIRP_LOG_LEVEL", "debug")
	t.Setenv("CHIRP_DB_MAX_CONNS", "4")
	t.Setenv("CHIRP_HTTP_READ_TIMEOUT", "bogus")

	cfg := LoadConfig()
	if cfg.HTTPAddr != "127.0.0.1:9999" {
		t.Fatalf("HTTPAddr=%q", cfg.HTTPAddr)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("LogLevel=%q", cfg.LogLevel)
	}
	if cfg.DBMaxConns != 4 {
		t.Fatalf("DBMaxConns=%d", cfg.DBMaxConns)
	}
	// Unparseable values fall back to the default.
	if cfg.ReadTimeout != 30*time.Second {
		t.Fatalf("ReadTimeout=%v, want default", cfg.ReadTimeout)
	}
}
