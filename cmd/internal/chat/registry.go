// Package chat contains Chirp's realtime presence and message-delivery layer:
// the connection registry, presence broadcaster, message relay, and the
// WebSocket gateway that feeds them.
package chat

import (
	"sort"
	"sync"
)

// Registry maps a user id to its currently live connection id.
//
// Invariant: at most one connection per user. A later Admit for the same user
// replaces the earlier mapping; the replaced connection stays attached to the
// hub but is no longer a delivery target.
//
// The registry is an explicit object (not package state) so tests can run
// independent instances side by side.
type Registry struct {
	mu    sync.Mutex
	conns map[string]string // user id -> connection id
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]string)}
}

// Admit registers connID as userID's live connection, replacing any earlier one.
// An empty userID is ignored: the connection stays anonymous and
// presence-invisible (auth was already enforced at the HTTP layer).
func (r *Registry) Admit(userID, connID string) {
	if userID == "" || connID == "" {
		return
	}
	r.mu.Lock()
	r.conns[userID] = connID
	r.mu.Unlock()
}

// Remove drops the entry whose value is connID.
// It is a no-op when the mapping was already replaced by a newer connection.
func (r *Registry) Remove(connID string) {
	if connID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for userID, c := range r.conns {
		if c == connID {
			delete(r.conns, userID)
			return
		}
	}
}

// Lookup returns the live connection id for userID.
// Absence means "not deliverable live", never an error.
func (r *Registry) Lookup(userID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[userID]
	return c, ok
}

// Users returns the currently registered user ids, sorted.
// Receivers must treat the result as a set; sorting only keeps the
// broadcast payload deterministic.
func (r *Registry) Users() []string {
	r.mu.Lock()
	out := make([]string, 0, len(r.conns))
	for userID := range r.conns {
		out = append(out, userID)
	}
	r.mu.Unlock()

	sort.Strings(out)
	return out
}
