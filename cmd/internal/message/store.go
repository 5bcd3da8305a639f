// Package message implements Chirp's message persistence and its HTTP API.
//
// The store assigns the canonical id + timestamp on save; the realtime layer
// only ever sees already-persisted messages.
package message

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	v1 "chirp/contracts/chat/v1"
)

// ErrInvalidInput is the stable kind for rejected save requests.
var ErrInvalidInput = errors.New("invalid_input")

// SaveInput describes a message save request.
// At least one of Text or Image must be present.
type SaveInput struct {
	SenderID   string
	ReceiverID string
	Text       string
	Image      string
	Now        time.Time
}

func (in SaveInput) validate() (SaveInput, error) {
	in.SenderID = strings.TrimSpace(in.SenderID)
	in.ReceiverID = strings.TrimSpace(in.ReceiverID)
	in.Text = strings.TrimSpace(in.Text)

	if in.SenderID == "" || in.ReceiverID == "" {
		return in, fmt.Errorf("%w: sender and receiver are required", ErrInvalidInput)
	}
	if in.Text == "" && in.Image == "" {
		return in, fmt.Errorf("%w: message needs text or image", ErrInvalidInput)
	}
	if len([]rune(in.Text)) > maxMessageChars {
		return in, fmt.Errorf("%w: message too long (max %d chars)", ErrInvalidInput, maxMessageChars)
	}
	if len(in.Image) > maxImageBytes {
		return in, fmt.Errorf("%w: image too large", ErrInvalidInput)
	}
	return in, nil
}

// Store persists and queries messages.
//
// Requirements:
//   - Save assigns id + createdAt and returns the canonical stored form.
//   - ListBetween returns the full conversation between two users, both
//     directions, in chronological order.
type Store interface {
	Save(ctx context.Context, in SaveInput) (v1.Message, error)
	ListBetween(ctx context.Context, userA, userB string) ([]v1.Message, error)
	Close() error
}
