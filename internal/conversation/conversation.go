// Package conversation keeps the per-session message history shown by the
// chat UI. The responder never reads it.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

var ErrSessionNotFound = errors.New("session not found")

// Turn is one message in a session, in append order.
type Turn struct {
	SessionID uuid.UUID `json:"sessionId"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store is an append-only log of turns grouped by session.
type Store interface {
	Append(ctx context.Context, turn Turn) error
	History(ctx context.Context, sessionID uuid.UUID) ([]Turn, error)
}

// Start opens a new session seeded with the assistant's welcome message.
func Start(ctx context.Context, store Store, welcome string) (uuid.UUID, []Turn, error) {
	id := uuid.New()
	turn := Turn{SessionID: id, Role: RoleAssistant, Content: welcome, CreatedAt: time.Now().UTC()}
	if err := store.Append(ctx, turn); err != nil {
		return uuid.Nil, nil, fmt.Errorf("start session: %w", err)
	}
	return id, []Turn{turn}, nil
}

// Record appends a user message and the reply given to it.
func Record(ctx context.Context, store Store, sessionID uuid.UUID, message, reply string) error {
	now := time.Now().UTC()
	turns := []Turn{
		{SessionID: sessionID, Role: RoleUser, Content: message, CreatedAt: now},
		{SessionID: sessionID, Role: RoleAssistant, Content: reply, CreatedAt: now},
	}
	for _, t := range turns {
		if err := store.Append(ctx, t); err != nil {
			return fmt.Errorf("record %s turn: %w", t.Role, err)
		}
	}
	return nil
}
