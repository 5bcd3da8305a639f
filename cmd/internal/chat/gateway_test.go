package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	v1 "chirp/contracts/chat/v1"
)

func newTestGateway(t *testing.T) (*Gateway, *Hub) {
	t.Helper()
	t.Setenv("CHIRP_WS_ORIGIN_REQUIRED", "false")

	hub := NewHub(testLogger(), NewRegistry(), nil)
	return NewGateway(testLogger(), hub), hub
}

func dialWS(t *testing.T, baseURL, userID string) *websocket.Conn {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(baseURL, "http") + "/ws"
	if userID != "" {
		wsURL += "?userId=" + userID
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, resp, err := websocket.Dial(ctx, wsURL, nil)
	if resp != nil && resp.Body != nil {
		defer func() { _ = resp.Body.Close() }()
	}
	if err != nil {
		t.Fatalf("dial %s: %v", wsURL, err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "test done") })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) v1.Envelope {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var env v1.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if err := env.Validate(); err != nil {
		t.Fatalf("invalid envelope on the wire: %v", err)
	}
	return env
}

func readPresence(t *testing.T, conn *websocket.Conn) []string {
	t.Helper()
	env := readEnvelope(t, conn)
	if env.Event != v1.EventOnlineUsers {
		t.Fatalf("event=%q want=%q", env.Event, v1.EventOnlineUsers)
	}
	var users []string
	if err := json.Unmarshal(env.Payload, &users); err != nil {
		t.Fatalf("decode presence: %v", err)
	}
	return users
}

func TestGateway_AdmissionAndPresence(t *testing.T) {
	gw, _ := newTestGateway(t)
	ts := httptest.NewServer(gw)
	defer ts.Close()

	a := dialWS(t, ts.URL, "A")
	if got := readPresence(t, a); !reflect.DeepEqual(got, []string{"A"}) {
		t.Fatalf("A admission broadcast=%v", got)
	}

	b := dialWS(t, ts.URL, "B")
	want := []string{"A", "B"}
	if got := readPresence(t, a); !reflect.DeepEqual(got, want) {
		t.Fatalf("A sees %v want %v", got, want)
	}
	if got := readPresence(t, b); !reflect.DeepEqual(got, want) {
		t.Fatalf("B sees %v want %v", got, want)
	}

	// A disconnects; B observes the shrunken set.
	_ = a.Close(websocket.StatusNormalClosure, "logout")
	if got := readPresence(t, b); !reflect.DeepEqual(got, []string{"B"}) {
		t.Fatalf("after A left: %v", got)
	}
}

func TestGateway_AnonymousConnectionIsPresenceInvisible(t *testing.T) {
	gw, _ := newTestGateway(t)
	ts := httptest.NewServer(gw)
	defer ts.Close()

	anon := dialWS(t, ts.URL, "")

	// Admission runs just after the handshake; give the handler a beat
	// before triggering the broadcast the anonymous peer should observe.
	time.Sleep(100 * time.Millisecond)

	_ = dialWS(t, ts.URL, "A")
	if got := readPresence(t, anon); !reflect.DeepEqual(got, []string{"A"}) {
		t.Fatalf("anonymous client sees %v", got)
	}
}

func TestGateway_RelayDeliversToRecipientConnection(t *testing.T) {
	gw, hub := newTestGateway(t)
	ts := httptest.NewServer(gw)
	defer ts.Close()

	a := dialWS(t, ts.URL, "A")
	b := dialWS(t, ts.URL, "B")
	readPresence(t, a)
	readPresence(t, a)
	readPresence(t, b)

	msg := v1.Message{
		ID:         "m1",
		SenderID:   "A",
		ReceiverID: "B",
		Text:       "hi",
		CreatedAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	hub.Relay(msg)

	env := readEnvelope(t, b)
	if env.Event != v1.EventNewMessage {
		t.Fatalf("event=%q want=%q", env.Event, v1.EventNewMessage)
	}
	var got v1.Message
	if err := json.Unmarshal(env.Payload, &got); err != nil {
		t.Fatalf("decode message: %v", err)
	}
	if !reflect.DeepEqual(got, msg) {
		t.Fatalf("payload=%+v want=%+v", got, msg)
	}

	// Nothing must arrive at the sender; a short read deadline proves it.
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	if _, _, err := a.Read(ctx); err == nil {
		t.Fatalf("sender must not receive its own relayed message")
	}
}

func TestGateway_RejectsDisallowedOrigin(t *testing.T) {
	t.Setenv("CHIRP_WS_ORIGIN_REQUIRED", "true")
	t.Setenv("CHIRP_WS_ALLOWED_ORIGINS", "http://localhost")

	hub := NewHub(testLogger(), NewRegistry(), nil)
	ts := httptest.NewServer(NewGateway(testLogger(), hub))
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?userId=A"

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	hdr := make(http.Header)
	hdr.Set("Origin", "http://evil.example")
	conn, resp, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{HTTPHeader: hdr})
	if resp != nil && resp.Body != nil {
		defer func() { _ = resp.Body.Close() }()
	}
	if err == nil {
		_ = conn.Close(websocket.StatusNormalClosure, "test done")
		t.Fatalf("dial from disallowed origin must fail")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 response, got %+v", resp)
	}
}

func TestGateway_DisconnectRemovesFromRegistry(t *testing.T) {
	gw, hub := newTestGateway(t)
	ts := httptest.NewServer(gw)
	defer ts.Close()

	a := dialWS(t, ts.URL, "A")
	readPresence(t, a)

	if _, ok := hub.Registry().Lookup("A"); !ok {
		t.Fatalf("expected A registered after dial")
	}

	_ = a.Close(websocket.StatusNormalClosure, "bye")

	deadline := time.Now().Add(3 * time.Second)
	for {
		if _, ok := hub.Registry().Lookup("A"); !ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("A still registered after disconnect")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
