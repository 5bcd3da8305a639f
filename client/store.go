package client

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	v1 "chirp/contracts/chat/v1"
)

// ErrNoPeerSelected is returned by SendMessage before SetSelectedPeer.
var ErrNoPeerSelected = errors.New("chirp: no peer selected")

// ChatStore holds the client-side chat state: the sidebar users, the open
// conversation and the online set. It reconciles realtime pushes against the
// selected peer, so a message from someone else never lands in the open
// thread.
type ChatStore struct {
	api     *API
	session *Session

	mu       sync.Mutex
	selected string
	messages []v1.Message
	users    []v1.User
	online   []string

	msgSub      *Subscription
	presenceSub *Subscription
}

// NewChatStore builds a store over an authenticated session.
func NewChatStore(api *API, session *Session) *ChatStore {
	return &ChatStore{api: api, session: session}
}

// LoadUsers refreshes the sidebar user list.
func (st *ChatStore) LoadUsers(ctx context.Context) ([]v1.User, error) {
	users, err := st.api.Users(ctx)
	if err != nil {
		return nil, err
	}

	st.mu.Lock()
	st.users = users
	st.mu.Unlock()
	return users, nil
}

// Users returns the last loaded sidebar list.
func (st *ChatStore) Users() []v1.User {
	st.mu.Lock()
	defer st.mu.Unlock()
	out := make([]v1.User, len(st.users))
	copy(out, st.users)
	return out
}

// SetSelectedPeer opens the conversation with peerID and loads its history.
// An empty peerID closes the conversation.
func (st *ChatStore) SetSelectedPeer(ctx context.Context, peerID string) error {
	st.mu.Lock()
	st.selected = peerID
	st.messages = nil
	st.mu.Unlock()

	if peerID == "" {
		return nil
	}

	msgs, err := st.api.Messages(ctx, peerID)
	if err != nil {
		return err
	}

	st.mu.Lock()
	// Only install the history if the selection has not moved on.
	if st.selected == peerID {
		st.messages = msgs
	}
	st.mu.Unlock()
	return nil
}

// SelectedPeer returns the open conversation's peer id, if any.
func (st *ChatStore) SelectedPeer() string {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.selected
}

// Messages returns the open conversation, oldest first.
func (st *ChatStore) Messages() []v1.Message {
	st.mu.Lock()
	defer st.mu.Unlock()
	out := make([]v1.Message, len(st.messages))
	copy(out, st.messages)
	return out
}

// OnlineUsers returns the latest presence set.
func (st *ChatStore) OnlineUsers() []string {
	st.mu.Lock()
	defer st.mu.Unlock()
	out := make([]string, len(st.online))
	copy(out, st.online)
	return out
}

// SendMessage sends to the selected peer and appends the stored message to
// the open conversation. The realtime push for a sent message goes only to
// the receiver, so the sender's thread is fed from the HTTP response.
func (st *ChatStore) SendMessage(ctx context.Context, text, image string) (v1.Message, error) {
	st.mu.Lock()
	peerID := st.selected
	st.mu.Unlock()

	if peerID == "" {
		return v1.Message{}, ErrNoPeerSelected
	}

	msg, err := st.api.SendMessage(ctx, peerID, text, image)
	if err != nil {
		return v1.Message{}, err
	}

	st.mu.Lock()
	if st.selected == peerID {
		st.messages = append(st.messages, msg)
	}
	st.mu.Unlock()
	return msg, nil
}

// SubscribeToMessages starts feeding realtime pushes into the open
// conversation. Calling it again replaces the previous subscription, so a
// re-render never doubles deliveries.
func (st *ChatStore) SubscribeToMessages() error {
	sock := st.session.Socket()
	if sock == nil {
		return errors.New("chirp: not connected")
	}

	st.UnsubscribeFromMessages()

	sub := sock.Subscribe(v1.EventNewMessage, func(payload json.RawMessage) {
		var msg v1.Message
		if err := json.Unmarshal(payload, &msg); err != nil {
			return
		}

		st.mu.Lock()
		if st.selected != "" && msg.Belongs(st.selected) {
			st.messages = append(st.messages, msg)
		}
		st.mu.Unlock()
	})

	st.mu.Lock()
	st.msgSub = sub
	st.mu.Unlock()
	return nil
}

// UnsubscribeFromMessages stops feeding the open conversation. Idempotent.
func (st *ChatStore) UnsubscribeFromMessages() {
	st.mu.Lock()
	sub := st.msgSub
	st.msgSub = nil
	st.mu.Unlock()

	if sub == nil {
		return
	}
	if sock := st.session.Socket(); sock != nil {
		sock.Unsubscribe(sub)
	}
}

// SubscribeToPresence keeps the online set current. Replaces any previous
// presence subscription.
func (st *ChatStore) SubscribeToPresence() error {
	sock := st.session.Socket()
	if sock == nil {
		return errors.New("chirp: not connected")
	}

	st.UnsubscribeFromPresence()

	sub := sock.Subscribe(v1.EventOnlineUsers, func(payload json.RawMessage) {
		var users []string
		if err := json.Unmarshal(payload, &users); err != nil {
			return
		}

		st.mu.Lock()
		st.online = users
		st.mu.Unlock()
	})

	st.mu.Lock()
	st.presenceSub = sub
	st.mu.Unlock()
	return nil
}

// UnsubscribeFromPresence stops presence updates. Idempotent.
func (st *ChatStore) UnsubscribeFromPresence() {
	st.mu.Lock()
	sub := st.presenceSub
	st.presenceSub = nil
	st.mu.Unlock()

	if sub == nil {
		return
	}
	if sock := st.session.Socket(); sock != nil {
		sock.Unsubscribe(sub)
	}
}
