package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"sync"

	"github.com/coder/websocket"

	v1 "chirp/contracts/chat/v1"
)

const socketReadLimit = 1 << 20

// Handler receives the payload of an envelope for a subscribed event.
type Handler func(payload json.RawMessage)

// Subscription identifies one registered handler.
type Subscription struct {
	event string
	id    int
}

// Socket is a read-only realtime connection. The server pushes envelopes;
// the client never writes application frames.
//
// Handlers run on the socket's read goroutine, one at a time. Unsubscribe is
// synchronous: once it returns the handler will not be invoked again.
// Handlers must not call Subscribe or Unsubscribe.
type Socket struct {
	conn *websocket.Conn

	mu     sync.Mutex
	nextID int
	subs   map[string]map[int]Handler

	done    chan struct{}
	readErr error
}

// DialSocket connects to wsURL, identifying as userID. An empty userID gives
// an anonymous connection: it receives presence but never appears in it.
func DialSocket(ctx context.Context, wsURL, userID string) (*Socket, error) {
	if userID != "" {
		sep := "?"
		if len(wsURL) > 0 && containsQuery(wsURL) {
			sep = "&"
		}
		wsURL += sep + "userId=" + url.QueryEscape(userID)
	}

	conn, resp, err := websocket.Dial(ctx, wsURL, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	conn.SetReadLimit(socketReadLimit)

	s := &Socket{
		conn: conn,
		subs: make(map[string]map[int]Handler),
		done: make(chan struct{}),
	}
	go s.readLoop()
	return s, nil
}

func containsQuery(raw string) bool {
	for i := 0; i < len(raw); i++ {
		if raw[i] == '?' {
			return true
		}
	}
	return false
}

// Subscribe registers h for envelopes with the given event name.
func (s *Socket) Subscribe(event string, h Handler) *Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	if s.subs[event] == nil {
		s.subs[event] = make(map[int]Handler)
	}
	s.subs[event][s.nextID] = h
	return &Subscription{event: event, id: s.nextID}
}

// Unsubscribe removes a subscription. Safe to call twice and with nil.
func (s *Socket) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs[sub.event], sub.id)
}

// Done is closed when the connection ends, for any reason.
func (s *Socket) Done() <-chan struct{} { return s.done }

// Err reports why the connection ended. Nil until Done is closed; nil after
// a local Close.
func (s *Socket) Err() error {
	select {
	case <-s.done:
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.readErr
	default:
		return nil
	}
}

// Close tears the connection down. The read loop exits and Done closes.
func (s *Socket) Close() error {
	return s.conn.Close(websocket.StatusNormalClosure, "bye")
}

func (s *Socket) readLoop() {
	defer close(s.done)

	for {
		_, data, err := s.conn.Read(context.Background())
		if err != nil {
			s.mu.Lock()
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure && !errors.Is(err, context.Canceled) {
				s.readErr = err
			}
			s.mu.Unlock()
			return
		}

		var env v1.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}
		if env.Validate() != nil {
			continue
		}

		// Dispatch under the lock so Unsubscribe is synchronous with
		// respect to handler execution.
		s.mu.Lock()
		for _, h := range s.subs[env.Event] {
			h(env.Payload)
		}
		s.mu.Unlock()
	}
}
