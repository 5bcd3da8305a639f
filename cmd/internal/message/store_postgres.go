package message

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"chirp/cmd/identity/ids"
	v1 "chirp/contracts/chat/v1"
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
			return errors.New("message: empty schema")
		}
		if !isValidPGIdent(schema) {
			return errors.New("message: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a Postgres-backed message Store.
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
		return nil, errors.New("message: nil pool")
	}
	return st, nil
}

// Close is a no-op because the pool is owned by the caller.
func (s *PostgresStore) Close() error { return nil }

// Save persists a message, assigning id + createdAt.
func (s *PostgresStore) Save(ctx context.Context, in SaveInput) (v1.Message, error) {
	if s == nil || s.pool == nil {
		return v1.Message{}, errors.New("message: nil store")
	}
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

	messages := pgIdent(s.schema, "messages")

	if _, err := s.pool.Exec(ctx,
		`INSERT INTO `+messages+` (id, sender_id, receiver_id, text, image, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		id, in.SenderID, in.ReceiverID, in.Text, in.Image, now,
	); err != nil {
		return v1.Message{}, err
	}

	return v1.Message{
		ID:         id,
		SenderID:   in.SenderID,
		ReceiverID: in.ReceiverID,
		Text:       in.Text,
		Image:      in.Image,
		CreatedAt:  now,
	}, nil
}

// ListBetween returns the conversation between two users in chronological order.
// Ordering is by id: ULIDs are time-ordered, so id order is creation order
// even when created_at timestamps collide.
func (s *PostgresStore) ListBetween(ctx context.Context, userA, userB string) ([]v1.Message, error) {
	if s == nil || s.pool == nil {
		return nil, errors.New("message: nil store")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	messages := pgIdent(s.schema, "messages")

	rows, err := s.pool.Query(ctx,
		`SELECT id, sender_id, receiver_id, text, image, created_at
		   FROM `+messages+`
		  WHERE (sender_id = $1 AND receiver_id = $2)
		     OR (sender_id = $2 AND receiver_id = $1)
		  ORDER BY id ASC`,
		userA, userB,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]v1.Message, 0, 64)
	for rows.Next() {
		var m v1.Message
		if err := rows.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Text, &m.Image, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

var pgIdentRE = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func isValidPGIdent(s string) bool {
	return pgIdentRE.MatchString(s)
}

func pgIdent(schema, table string) string {
	// pgx.Identifier safely quotes identifiers, preventing SQL injection.
	return pgx.Identifier{schema, table}.Sanitize()
}
