package authapi

import (
	"net"
	"net/http"
	"strings"
)

// clientIP extracts the caller address, honoring proxy headers only when the
// deployment says the proxy is trusted.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		for _, part := range strings.Split(r.Header.Get("X-Forwarded-For"), ",") {
			if ip := net.ParseIP(strings.TrimSpace(part)); ip != nil {
				return ip.String()
			}
		}
		if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
			return ip.String()
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}
