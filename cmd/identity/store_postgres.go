package identity

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"chirp/cmd/identity/ids"
)

// PostgresStore is a Store backed by PostgreSQL.
//
// Ownership model:
// - PostgresStore does NOT own the pgx pool. The caller must close the pool.
// - Close() is therefore a no-op.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures PostgresStore behavior.
type PostgresOption func(*PostgresStore) error

// WithSchema sets the DB schema used by this store (default: "chirp").
// The schema name is validated and safely quoted in queries.
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return errors.New("identity: empty schema")
		}
		if !isValidPGIdent(schema) {
			return errors.New("identity: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a Postgres-backed account Store.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{
		pool:   pool,
		schema: "chirp",
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, errors.New("identity: nil pool")
	}
	return st, nil
}

// Close is a no-op because the pool is owned by the caller.
func (s *PostgresStore) Close() error { return nil }

const userColumns = `id, full_name, email, email_norm, password_hash, profile_pic, created_at`

// CreateUser registers a new account, hashing the password.
func (s *PostgresStore) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
	if s == nil || s.pool == nil {
		return User{}, errors.New("identity: nil store")
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

	users := pgIdent(s.schema, "users")

	var u User
	err = s.pool.QueryRow(ctx,
		`INSERT INTO `+users+` (id, full_name, email, email_norm, password_hash, profile_pic, created_at)
		 VALUES ($1, $2, $3, $4, $5, '', $6)
		 RETURNING `+userColumns,
		id, fullName, email, email, hash, now,
	).Scan(&u.ID, &u.FullName, &u.Email, &u.EmailNorm, &u.PasswordHash, &u.ProfilePic, &u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return User{}, ConflictError{Op: "identity.CreateUser", Field: "email"}
		}
		return User{}, err
	}
	return u, nil
}

// GetUserByID returns the account with the given id.
func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (User, error) {
	users := pgIdent(s.schema, "users")

	var u User
	err := s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM `+users+` WHERE id = $1`, id,
	).Scan(&u.ID, &u.FullName, &u.Email, &u.EmailNorm, &u.PasswordHash, &u.ProfilePic, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, NotFoundError{Op: "identity.GetUserByID", Resource: "user"}
	}
	if err != nil {
		return User{}, err
	}
	return u, nil
}

// GetUserByEmail returns the account with the given (normalized) email.
func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	users := pgIdent(s.schema, "users")

	var u User
	err := s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM `+users+` WHERE email_norm = $1`, NormalizeEmail(email),
	).Scan(&u.ID, &u.FullName, &u.Email, &u.EmailNorm, &u.PasswordHash, &u.ProfilePic, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, NotFoundError{Op: "identity.GetUserByEmail", Resource: "user"}
	}
	if err != nil {
		return User{}, err
	}
	return u, nil
}

// ListOthers returns every account except excludeID, newest first.
func (s *PostgresStore) ListOthers(ctx context.Context, excludeID string) ([]User, error) {
	users := pgIdent(s.schema, "users")

	rows, err := s.pool.Query(ctx,
		`SELECT `+userColumns+` FROM `+users+` WHERE id <> $1 ORDER BY id DESC`, excludeID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]User, 0, 32)
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.FullName, &u.Email, &u.EmailNorm, &u.PasswordHash, &u.ProfilePic, &u.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateProfilePic replaces the profile picture for userID.
func (s *PostgresStore) UpdateProfilePic(ctx context.Context, userID, profilePic string, now time.Time) (User, error) {
	if profilePic == "" {
		return User{}, fmt.Errorf("%w: profile pic is required", ErrInvalidInput)
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	users := pgIdent(s.schema, "users")

	var u User
	err := s.pool.QueryRow(ctx,
		`UPDATE `+users+` SET profile_pic = $2, updated_at = $3 WHERE id = $1
		 RETURNING `+userColumns,
		userID, profilePic, now,
	).Scan(&u.ID, &u.FullName, &u.Email, &u.EmailNorm, &u.PasswordHash, &u.ProfilePic, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, NotFoundError{Op: "identity.UpdateProfilePic", Resource: "user"}
	}
	if err != nil {
		return User{}, err
	}
	return u, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	// 23505 = unique_violation
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var pgIdentRE = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func isValidPGIdent(s string) bool {
	return pgIdentRE.MatchString(s)
}

func pgIdent(schema, table string) string {
	// pgx.Identifier safely quotes identifiers, preventing SQL injection.
	return pgx.Identifier{schema, table}.Sanitize()
}
