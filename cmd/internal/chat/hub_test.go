package chat

import (
	"encoding/json"
	"io"
	"log/slog"
	"reflect"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	v1 "chirp/contracts/chat/v1"
)

func newTestRegisterer() prometheus.Registerer { return prometheus.NewRegistry() }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recvEnvelope pops one envelope from a client queue without blocking the test forever.
func recvEnvelope(t *testing.T, c *Client) v1.Envelope {
	t.Helper()
	select {
	case env := <-c.Send:
		return env
	case <-time.After(time.Second):
		t.Fatalf("no envelope received for %s", c.ConnID)
		return v1.Envelope{}
	}
}

func recvPresence(t *testing.T, c *Client) []string {
	t.Helper()
	env := recvEnvelope(t, c)
	if env.Event != v1.EventOnlineUsers {
		t.Fatalf("event=%q want=%q", env.Event, v1.EventOnlineUsers)
	}
	var users []string
	if err := json.Unmarshal(env.Payload, &users); err != nil {
		t.Fatalf("decode presence payload: %v", err)
	}
	return users
}

func assertNoEnvelope(t *testing.T, c *Client) {
	t.Helper()
	select {
	case env := <-c.Send:
		t.Fatalf("unexpected envelope for %s: event=%q", c.ConnID, env.Event)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_PresenceBroadcastPerMutation(t *testing.T) {
	t.Parallel()

	h := NewHub(testLogger(), NewRegistry(), nil)

	a := NewClient("A", "c1", 8)
	h.Attach(a)
	if got := recvPresence(t, a); !reflect.DeepEqual(got, []string{"A"}) {
		t.Fatalf("after admit A: %v", got)
	}

	b := NewClient("B", "c2", 8)
	h.Attach(b)
	want := []string{"A", "B"}
	if got := recvPresence(t, a); !reflect.DeepEqual(got, want) {
		t.Fatalf("A sees %v want %v", got, want)
	}
	if got := recvPresence(t, b); !reflect.DeepEqual(got, want) {
		t.Fatalf("B sees %v want %v", got, want)
	}

	h.Detach("c1")
	if got := recvPresence(t, b); !reflect.DeepEqual(got, []string{"B"}) {
		t.Fatalf("after remove c1: %v", got)
	}

	// Exactly one broadcast per mutation: queues are drained now.
	assertNoEnvelope(t, b)
}

func TestHub_AnonymousReceivesPresenceButStaysInvisible(t *testing.T) {
	t.Parallel()

	h := NewHub(testLogger(), NewRegistry(), nil)

	anon := NewClient("", "c0", 8)
	h.Attach(anon)
	// Anonymous admission mutates nothing, so no broadcast fires.
	assertNoEnvelope(t, anon)

	a := NewClient("A", "c1", 8)
	h.Attach(a)

	if got := recvPresence(t, anon); !reflect.DeepEqual(got, []string{"A"}) {
		t.Fatalf("anonymous client must receive broadcasts, got %v", got)
	}
}

func TestHub_ReplacementKeepsUserOnline(t *testing.T) {
	t.Parallel()

	h := NewHub(testLogger(), NewRegistry(), nil)

	old := NewClient("A", "c1", 8)
	h.Attach(old)
	recvPresence(t, old)

	// Same user reconnects before the old transport notices.
	fresh := NewClient("A", "c2", 8)
	h.Attach(fresh)
	recvPresence(t, fresh)

	// The stale disconnect must not knock the user offline.
	h.Detach("c1")
	if got := recvPresence(t, fresh); !reflect.DeepEqual(got, []string{"A"}) {
		t.Fatalf("after stale detach: %v", got)
	}
	if c, ok := h.Registry().Lookup("A"); !ok || c != "c2" {
		t.Fatalf("Lookup=%q,%v want c2,true", c, ok)
	}
}

func TestHub_RelayPushesToRecipientOnly(t *testing.T) {
	t.Parallel()

	h := NewHub(testLogger(), NewRegistry(), nil)

	a := NewClient("A", "c1", 8)
	b := NewClient("B", "c2", 8)
	h.Attach(a)
	h.Attach(b)
	recvPresence(t, a)
	recvPresence(t, a)
	recvPresence(t, b)

	msg := v1.Message{
		ID:         "m1",
		SenderID:   "A",
		ReceiverID: "B",
		Text:       "hi",
		CreatedAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	h.Relay(msg)

	env := recvEnvelope(t, b)
	if env.Event != v1.EventNewMessage {
		t.Fatalf("event=%q want=%q", env.Event, v1.EventNewMessage)
	}
	var got v1.Message
	if err := json.Unmarshal(env.Payload, &got); err != nil {
		t.Fatalf("decode message payload: %v", err)
	}
	if !reflect.DeepEqual(got, msg) {
		t.Fatalf("payload=%+v want=%+v", got, msg)
	}

	// The sender never sees their own message through the relay.
	assertNoEnvelope(t, a)
	assertNoEnvelope(t, b)
}

func TestHub_RelayMissIsSilent(t *testing.T) {
	t.Parallel()

	h := NewHub(testLogger(), NewRegistry(), nil)

	a := NewClient("A", "c1", 8)
	h.Attach(a)
	recvPresence(t, a)

	h.Relay(v1.Message{ID: "m1", SenderID: "A", ReceiverID: "offline", Text: "hi"})

	assertNoEnvelope(t, a)
}

func TestHub_EnqueueDropsOnFullQueue(t *testing.T) {
	t.Parallel()

	h := NewHub(testLogger(), NewRegistry(), nil)

	// Queue of one: the admission broadcast fills it.
	a := NewClient("A", "c1", 1)
	h.Attach(a)

	// This broadcast is dropped for A rather than blocking the hub.
	b := NewClient("B", "c2", 8)
	h.Attach(b)

	if got := recvPresence(t, a); !reflect.DeepEqual(got, []string{"A"}) {
		t.Fatalf("first queued broadcast=%v", got)
	}
	assertNoEnvelope(t, a)
}

func TestHub_MetricsWiring(t *testing.T) {
	t.Parallel()

	// Metrics must be optional and a populated instance must not panic.
	h := NewHub(testLogger(), NewRegistry(), NewMetrics(newTestRegisterer()))

	a := NewClient("A", "c1", 8)
	h.Attach(a)
	recvPresence(t, a)
	h.Relay(v1.Message{ID: "m1", SenderID: "A", ReceiverID: "nobody"})
	h.Detach("c1")
}
