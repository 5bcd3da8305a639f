package authapi

import (
	"sync"
	"time"
)

// loginThrottle counts failed logins per client IP over a sliding window.
// It is in-memory and per-instance, which matches the single-node deployment.
type loginThrottle struct {
	max    int
	window time.Duration

	mu       sync.Mutex
	failures map[string][]time.Time
}

func newLoginThrottle(max int, window time.Duration) *loginThrottle {
	return &loginThrottle{
		max:      max,
		window:   window,
		failures: make(map[string][]time.Time),
	}
}

func (t *loginThrottle) blocked(ip string, now time.Time) bool {
	if t.max <= 0 || ip == "" {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.prune(ip, now)) >= t.max
}

func (t *loginThrottle) record(ip string, now time.Time) {
	if t.max <= 0 || ip == "" {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.failures[ip] = append(t.prune(ip, now), now)
}

// prune drops entries outside the window. Callers hold t.mu.
func (t *loginThrottle) prune(ip string, now time.Time) []time.Time {
	cut := now.Add(-t.window)
	kept := t.failures[ip][:0]
	for _, ts := range t.failures[ip] {
		if ts.After(cut) {
			kept = append(kept, ts)
		}
	}
	if len(kept) == 0 {
		delete(t.failures, ip)
		return nil
	}
	t.failures[ip] = kept
	return kept
}
