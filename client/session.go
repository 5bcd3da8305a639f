package client

import (
	"context"
	"errors"
	"sync"

	v1 "chirp/contracts/chat/v1"
)

// SessionState is the realtime connection lifecycle.
type SessionState int

const (
	StateDisconnected SessionState = iota
	StateConnecting
	StateConnected
)

func (s SessionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// ErrNotAuthenticated is returned by Connect before a successful Signup,
// Login or Check.
var ErrNotAuthenticated = errors.New("chirp: not authenticated")

// Session ties an authenticated identity to at most one realtime connection.
// Connecting twice is a no-op; losing the connection drops the state back to
// disconnected so the caller can reconnect.
type Session struct {
	api *API

	mu     sync.Mutex
	state  SessionState
	socket *Socket
	user   *v1.User
}

// NewSession wraps an API client.
func NewSession(api *API) *Session {
	return &Session{api: api}
}

// Signup registers an account and authenticates the session.
func (s *Session) Signup(ctx context.Context, fullName, email, password string) (v1.User, error) {
	u, err := s.api.Signup(ctx, fullName, email, password)
	if err != nil {
		return v1.User{}, err
	}
	s.setUser(u)
	return u, nil
}

// Login authenticates the session against an existing account.
func (s *Session) Login(ctx context.Context, email, password string) (v1.User, error) {
	u, err := s.api.Login(ctx, email, password)
	if err != nil {
		return v1.User{}, err
	}
	s.setUser(u)
	return u, nil
}

// Check restores the identity from an existing session cookie.
func (s *Session) Check(ctx context.Context) (v1.User, error) {
	u, err := s.api.Check(ctx)
	if err != nil {
		return v1.User{}, err
	}
	s.setUser(u)
	return u, nil
}

// Logout disconnects, ends the server session and forgets the identity.
func (s *Session) Logout(ctx context.Context) error {
	s.Disconnect()

	err := s.api.Logout(ctx)

	s.mu.Lock()
	s.user = nil
	s.mu.Unlock()
	return err
}

// User returns the authenticated account, if any.
func (s *Session) User() (v1.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return v1.User{}, false
	}
	return *s.user, true
}

// State reports the realtime connection state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Socket returns the live connection, or nil when disconnected.
func (s *Session) Socket() *Socket {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.socket
}

// Connect opens the realtime connection for the authenticated user. It is a
// no-op when already connecting or connected.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.user == nil {
		s.mu.Unlock()
		return ErrNotAuthenticated
	}
	if s.state != StateDisconnected {
		s.mu.Unlock()
		return nil
	}
	s.state = StateConnecting
	userID := s.user.ID
	s.mu.Unlock()

	sock, err := DialSocket(ctx, s.api.WSURL(), userID)

	s.mu.Lock()
	defer s.mu.Unlock()

	// Disconnect may have raced the dial.
	if s.state != StateConnecting {
		if sock != nil {
			_ = sock.Close()
		}
		return nil
	}
	if err != nil {
		s.state = StateDisconnected
		return err
	}

	s.state = StateConnected
	s.socket = sock
	go s.watch(sock)
	return nil
}

// Disconnect closes the realtime connection. Synchronous: when it returns
// the session is disconnected, though Done on a previously obtained socket
// may close shortly after.
func (s *Session) Disconnect() {
	s.mu.Lock()
	sock := s.socket
	s.socket = nil
	s.state = StateDisconnected
	s.mu.Unlock()

	if sock != nil {
		_ = sock.Close()
	}
}

// watch resets the state when the connection dies underneath us.
func (s *Session) watch(sock *Socket) {
	<-sock.Done()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.socket == sock {
		s.socket = nil
		s.state = StateDisconnected
	}
}

func (s *Session) setUser(u v1.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = &u
}
