package identity

import (
	"context"
	"time"

	v1 "chirp/contracts/chat/v1"
)

// User is Chirp's canonical account record.
// PasswordHash is server-side only and must never cross the API boundary.
type User struct {
	ID        string
	FullName  string
	Email     string
	EmailNorm string

	PasswordHash string
	ProfilePic   string

	CreatedAt time.Time
}

// Public converts the account record to its API representation.
func (u User) Public() v1.User {
	return v1.User{
		ID:         u.ID,
		FullName:   u.FullName,
		Email:      u.Email,
		ProfilePic: u.ProfilePic,
		CreatedAt:  u.CreatedAt,
	}
}

// CreateUserInput describes a signup request.
// Password must already satisfy policy (see password.go); the store hashes it.
type CreateUserInput struct {
	FullName string
	Email    string
	Password string
	Now      time.Time
}

// Store is the account persistence boundary.
//
// Error contract:
//   - CreateUser returns ConflictError{Field: "email"} on duplicate email.
//   - Get* return an error satisfying IsNotFound when no row matches.
type Store interface {
	CreateUser(ctx context.Context, in CreateUserInput) (User, error)
	GetUserByID(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)

	// ListOthers returns every user except excludeID, newest first.
	// It backs the chat sidebar.
	ListOthers(ctx context.Context, excludeID string) ([]User, error)

	UpdateProfilePic(ctx context.Context, userID, profilePic string, now time.Time) (User, error)

	Close() error
}
