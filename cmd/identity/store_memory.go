package identity

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"chirp/cmd/identity/ids"
)

// MemoryStore is the account store used when no database is configured.
// It backs dev mode and unit tests.
type MemoryStore struct {
	mu      sync.Mutex
	byID    map[string]User
	byEmail map[string]string // email_norm -> user id
}

// NewMemoryStore constructs an empty in-memory account store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:    make(map[string]User),
		byEmail: make(map[string]string),
	}
}

// Close closes the store (noop for in-memory).
func (s *MemoryStore) Close() error { return nil }

// CreateUser registers a new account, hashing the password.
func (s *MemoryStore) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	fullName := NormalizeFullName(in.FullName)
	email := NormalizeEmail(in.Email)
	if fullName == "" || email == "" {
		return User{}, fmt.Errorf("%w: full name and email are required", ErrInvalidInput)
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return User{}, err
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	id, err := ids.NewULID(now)
	if err != nil {
		return User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[email]; exists {
		return User{}, ConflictError{Op: "identity.CreateUser", Field: "email"}
	}

	u := User{
		ID:           id,
		FullName:     fullName,
		Email:        email,
		EmailNorm:    email,
		PasswordHash: hash,
		CreatedAt:    now,
	}
	s.byID[id] = u
	s.byEmail[email] = id
	return u, nil
}

// GetUserByID returns the account with the given id.
func (s *MemoryStore) GetUserByID(ctx context.Context, id string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[id]
	if !ok {
		return User{}, NotFoundError{Op: "identity.GetUserByID", Resource: "user"}
	}
	return u, nil
}

// GetUserByEmail returns the account with the given (normalized) email.
func (s *MemoryStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byEmail[NormalizeEmail(email)]
	if !ok {
		return User{}, NotFoundError{Op: "identity.GetUserByEmail", Resource: "user"}
	}
	return s.byID[id], nil
}

// ListOthers returns every account except excludeID, newest first.
func (s *MemoryStore) ListOthers(ctx context.Context, excludeID string) ([]User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	out := make([]User, 0, len(s.byID))
	for id, u := range s.byID {
		if id == excludeID {
			continue
		}
		out = append(out, u)
	}
	s.mu.Unlock()

	// ULIDs are time-ordered, so id order is creation order.
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

// UpdateProfilePic replaces the profile picture for userID.
func (s *MemoryStore) UpdateProfilePic(ctx context.Context, userID, profilePic string, now time.Time) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	if profilePic == "" {
		return User{}, fmt.Errorf("%w: profile pic is required", ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[userID]
	if !ok {
		return User{}, NotFoundError{Op: "identity.UpdateProfilePic", Resource: "user"}
	}
	u.ProfilePic = profilePic
	s.byID[userID] = u
	return u, nil
}
