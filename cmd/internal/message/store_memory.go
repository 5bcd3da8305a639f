package message

import (
	"context"
	"sync"
	"time"

	"chirp/cmd/identity/ids"
	v1 "chirp/contracts/chat/v1"
)

// MemoryStore is the message store used when no database is configured.
// It backs dev mode and unit tests.
type MemoryStore struct {
	mu    sync.Mutex
	pairs map[pairKey][]v1.Message
}

// pairKey is direction-independent: (a,b) and (b,a) map to the same key.
type pairKey struct {
	lo, hi string
}

func newPairKey(a, b string) pairKey {
	if a > b {
		a, b = b, a
	}
	return pairKey{lo: a, hi: b}
}

// NewMemoryStore constructs an empty in-memory message store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		pairs: make(map[pairKey][]v1.Message),
	}
}

// Close closes the store (noop for in-memory).
func (s *MemoryStore) Close() error { return nil }

// Save persists a message, assigning id + createdAt.
func (s *MemoryStore) Save(ctx context.Context, in SaveInput) (v1.Message, error) {
	in, err := in.validate()
	if err != nil {
		return v1.Message{}, err
	}
	if err := ctx.Err(); err != nil {
		return v1.Message{}, err
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	id, err := ids.NewULID(now)
	if err != nil {
		return v1.Message{}, err
	}

	msg := v1.Message{
		ID:         id,
		SenderID:   in.SenderID,
		ReceiverID: in.ReceiverID,
		Text:       in.Text,
		Image:      in.Image,
		CreatedAt:  now,
	}

	key := newPairKey(in.SenderID, in.ReceiverID)

	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := append(s.pairs[key], msg)
	if len(msgs) > memMaxMessagesPerPair {
		msgs = msgs[len(msgs)-memMaxMessagesPerPair:]
	}
	s.pairs[key] = msgs

	return msg, nil
}

// ListBetween returns the conversation between two users in chronological order.
func (s *MemoryStore) ListBetween(ctx context.Context, userA, userB string) ([]v1.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.pairs[newPairKey(userA, userB)]
	// Appended in save order under one lock, so the slice is already
	// chronological; copy to keep the internal slice private.
	out := make([]v1.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}
