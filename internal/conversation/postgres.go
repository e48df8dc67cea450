package conversation

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS conversation_turns (
	id         BIGSERIAL PRIMARY KEY,
	session_id UUID        NOT NULL,
	role       TEXT        NOT NULL CHECK (role IN ('user', 'assistant')),
	content    TEXT        NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS conversation_turns_session_idx ON conversation_turns (session_id, id);
`

// PostgresStore persists turns in the conversation_turns table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the table and index if they are missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create conversation schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Append(ctx context.Context, turn Turn) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO conversation_turns (session_id, role, content, created_at) VALUES ($1, $2, $3, $4)`,
		turn.SessionID, string(turn.Role), turn.Content, turn.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert turn: %w", err)
	}
	return nil
}

func (s *PostgresStore) History(ctx context.Context, sessionID uuid.UUID) ([]Turn, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT role, content, created_at FROM conversation_turns WHERE session_id = $1 ORDER BY id`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer rows.Close()

	turns := []Turn{}
	for rows.Next() {
		t := Turn{SessionID: sessionID}
		var role string
		if err := rows.Scan(&role, &t.Content, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		t.Role = Role(role)
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read turns: %w", err)
	}
	if len(turns) == 0 {
		return nil, ErrSessionNotFound
	}
	return turns, nil
}
