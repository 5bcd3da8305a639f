// Package v1 defines the Chirp chat wire contract.
//
// This package is intentionally stable and dependency-light.
// It is shared between server and clients to keep the push-event
// protocol authoritative in one place.
package v1

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Push-event names (wire-stable, server -> client).
const (
	// EventOnlineUsers carries the full online-user set to every connection.
	EventOnlineUsers = "getOnlineUsers"
	// EventNewMessage carries one persisted message to its recipient only.
	EventNewMessage = "newMessage"
)

// Envelope is the canonical wire wrapper for every push event.
type Envelope struct {
	Event   string          `json:"event"`
	ID      string          `json:"id,omitempty"`
	TS      time.Time       `json:"ts,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

// Validate performs structural validation for an Envelope.
func (e Envelope) Validate() error {
	if e.Event == "" {
		return errors.New("missing field: event")
	}
	switch e.Event {
	case EventOnlineUsers, EventNewMessage:
	default:
		return fmt.Errorf("unknown event: %q", e.Event)
	}
	if e.Payload == nil {
		return errors.New("missing field: payload")
	}
	return nil
}

// Message is the canonical persisted message value.
//
// A message carries text, an image, or both; the persistence layer rejects a
// message with neither. The relay treats it as immutable once stored.
type Message struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Text       string    `json:"text,omitempty"`
	Image      string    `json:"image,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Belongs reports whether the message is part of the conversation with peerID,
// regardless of direction.
func (m Message) Belongs(peerID string) bool {
	if peerID == "" {
		return false
	}
	return m.SenderID == peerID || m.ReceiverID == peerID
}

// User is the public account representation exchanged over the API.
// The password hash never leaves the server.
type User struct {
	ID         string    `json:"id"`
	FullName   string    `json:"fullName"`
	Email      string    `json:"email"`
	ProfilePic string    `json:"profilePic,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}
