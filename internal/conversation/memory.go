package conversation

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore keeps history in process memory. It is lost on restart.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID][]Turn
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[uuid.UUID][]Turn)}
}

func (m *MemoryStore) Append(ctx context.Context, turn Turn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[turn.SessionID] = append(m.sessions[turn.SessionID], turn)
	return nil
}

func (m *MemoryStore) History(ctx context.Context, sessionID uuid.UUID) ([]Turn, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	turns, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out, nil
}
