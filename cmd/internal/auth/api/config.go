package authapi

import (
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config controls auth API behavior and cookie defaults.
type Config struct {
	CookieName   string
	CookiePath   string
	CookieDomain string
	CookieSecure bool

	TrustProxy   bool
	MaxBodyBytes int64

	LoginIPMax    int
	LoginIPWindow time.Duration
}

// LoadConfigFromEnv loads auth config from environment variables with safe defaults.
//
// CookieSecure defaults to false so local HTTP development works; production
// deployments terminate TLS and must set CHIRP_AUTH_COOKIE_SECURE=true.
func LoadConfigFromEnv() Config {
	cfg := Config{
		CookieName:    envString("CHIRP_AUTH_COOKIE_NAME", "jwt"),
		CookiePath:    envString("CHIRP_AUTH_COOKIE_PATH", "/"),
		CookieDomain:  envString("CHIRP_AUTH_COOKIE_DOMAIN", ""),
		CookieSecure:  envBool("CHIRP_AUTH_COOKIE_SECURE", false),
		TrustProxy:    envBool("CHIRP_AUTH_TRUST_PROXY", false),
		MaxBodyBytes:  envInt64("CHIRP_AUTH_MAX_BODY_BYTES", 10<<20), // profile pics arrive base64-inlined
		LoginIPMax:    envInt("CHIRP_AUTH_LOGIN_IP_MAX", 20),
		LoginIPWindow: envDuration("CHIRP_AUTH_LOGIN_IP_WINDOW", 5*time.Minute),
	}

	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 10 << 20
	}
	if cfg.CookieName == "" {
		cfg.CookieName = "jwt"
	}
	if cfg.CookiePath == "" {
		cfg.CookiePath = "/"
	}

	return cfg
}

// SameSite is fixed rather than configured: the cookie is only ever read by
// same-origin XHR and the WebSocket upgrade.
func (c Config) SameSite() http.SameSite { return http.SameSiteStrictMode }

func envString(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
