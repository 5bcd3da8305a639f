package chat

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	v1 "chirp/contracts/chat/v1"
)

// Hub owns the connection registry and the live client set, and implements
// the presence broadcaster and the message relay on top of them.
//
// Delivery guarantees:
//   - Presence: every Admit/Remove pushes the full online set, as one event,
//     to every attached connection (anonymous ones included).
//   - Relay: at-most-once, best-effort. No ack, no retry; a miss or a full
//     send queue loses only the live push, never the durable copy.
type Hub struct {
	log      *slog.Logger
	metrics  *Metrics
	registry *Registry

	mu      sync.Mutex
	clients map[string]*Client // connection id -> client
}

// NewHub constructs a Hub around the given registry.
func NewHub(log *slog.Logger, registry *Registry, metrics *Metrics) *Hub {
	if log == nil {
		log = slog.Default()
	}
	if registry == nil {
		registry = NewRegistry()
	}
	return &Hub{
		log:      log,
		metrics:  metrics,
		registry: registry,
		clients:  make(map[string]*Client),
	}
}

// Registry exposes the underlying registry (read paths, tests).
func (h *Hub) Registry() *Registry { return h.registry }

// OnlineUsers returns the current online-user set, sorted.
func (h *Hub) OnlineUsers() []string { return h.registry.Users() }

// Attach adds a connected client. A client with a user id is admitted into
// the registry and triggers a presence broadcast; an anonymous client only
// receives broadcasts.
func (h *Hub) Attach(c *Client) {
	if c == nil || c.ConnID == "" {
		return
	}

	h.mu.Lock()
	h.clients[c.ConnID] = c
	h.mu.Unlock()
	h.metrics.connAttached()

	if c.UserID == "" {
		h.log.Debug("hub.attach.anonymous", "conn_id", c.ConnID)
		return
	}

	h.registry.Admit(c.UserID, c.ConnID)
	h.log.Info("hub.attach", "user_id", c.UserID, "conn_id", c.ConnID)
	h.broadcastPresence()
}

// Detach removes a client on disconnect and signals its shutdown.
// Registered clients trigger a presence broadcast; the registry removal is a
// no-op when a newer connection already replaced this one.
func (h *Hub) Detach(connID string) {
	if connID == "" {
		return
	}

	h.mu.Lock()
	c := h.clients[connID]
	delete(h.clients, connID)
	h.mu.Unlock()

	if c == nil {
		return
	}
	h.metrics.connDetached()

	// Close after removal so broadcasters never hold a pointer to a client
	// whose goroutines are being torn down.
	c.Close()

	if c.UserID == "" {
		h.log.Debug("hub.detach.anonymous", "conn_id", connID)
		return
	}

	h.registry.Remove(connID)
	h.log.Info("hub.detach", "user_id", c.UserID, "conn_id", connID)
	h.broadcastPresence()
}

// Relay pushes an already-persisted message to the receiver's live connection,
// if any. A miss is a silent no-op: the durable copy already exists and the
// recipient sees it on the next history load.
//
// The lookup is deliberately not atomic with registry mutation; a recipient
// disconnecting in between loses only the live push.
func (h *Hub) Relay(msg v1.Message) {
	connID, ok := h.registry.Lookup(msg.ReceiverID)
	if !ok {
		h.metrics.missed()
		h.log.Debug("relay.miss", "receiver_id", msg.ReceiverID, "message_id", msg.ID)
		return
	}

	h.mu.Lock()
	c := h.clients[connID]
	h.mu.Unlock()
	if c == nil {
		h.metrics.missed()
		return
	}

	env, err := newEnvelope(v1.EventNewMessage, msg)
	if err != nil {
		h.log.Error("relay.encode.fail", "err", err, "message_id", msg.ID)
		return
	}

	if h.enqueue(c, env) {
		h.metrics.delivered()
		h.log.Debug("relay.push", "receiver_id", msg.ReceiverID, "conn_id", connID, "message_id", msg.ID)
	}
}

// broadcastPresence pushes the full online-user set to every attached client.
// Always the full set, never deltas; receivers treat the payload as a set.
func (h *Hub) broadcastPresence() {
	users := h.registry.Users()
	h.metrics.online(len(users))

	env, err := newEnvelope(v1.EventOnlineUsers, users)
	if err != nil {
		h.log.Error("presence.encode.fail", "err", err)
		return
	}

	h.mu.Lock()
	targets := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.Unlock()

	for _, c := range targets {
		h.enqueue(c, env)
	}

	h.metrics.broadcast()
	h.log.Debug("presence.broadcast", "online", len(users))
}

// enqueue is non-blocking: a shutting-down client or a full queue drops the
// envelope rather than stalling the caller.
func (h *Hub) enqueue(c *Client, env v1.Envelope) bool {
	if c == nil {
		return false
	}

	select {
	case <-c.Done():
		return false
	default:
	}

	select {
	case c.Send <- env:
		return true
	default:
		h.metrics.dropped()
		h.log.Debug("hub.send.drop", "conn_id", c.ConnID, "event", env.Event)
		return false
	}
}

func newEnvelope(event string, payload any) (v1.Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return v1.Envelope{}, err
	}
	return v1.Envelope{
		Event:   event,
		ID:      NewRandomHex(10),
		TS:      time.Now().UTC(),
		Payload: raw,
	}, nil
}
