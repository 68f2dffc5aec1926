package session

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/askdata/backend/internal/storage/models"
)

// Store keeps per-session conversation turns. History is append-only;
// sessions live for the process (or Redis TTL) lifetime.
type Store interface {
	Append(ctx context.Context, sessionID string, turn models.Turn) error
	History(ctx context.Context, sessionID string) ([]models.Turn, error)
}

// LastContext renders the most recent turn into the prompt block handed to
// the SQL drafter. Empty history yields an empty string.
func LastContext(ctx context.Context, store Store, sessionID string) string {
	turns, err := store.History(ctx, sessionID)
	if err != nil || len(turns) == 0 {
		return ""
	}

	last := turns[len(turns)-1]
	return fmt.Sprintf(
		"Previous question: %s\nPrevious SQL: %s\nPrevious columns: [%s]\n",
		last.Question, last.SQL, strings.Join(last.Columns, ", "),
	)
}

// MemoryStore is the default store: a process-local map guarded by a
// read-write mutex.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]models.Turn
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string][]models.Turn)}
}

func (s *MemoryStore) Append(_ context.Context, sessionID string, turn models.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[sessionID] = append(s.sessions[sessionID], turn)
	return nil
}

func (s *MemoryStore) History(_ context.Context, sessionID string) ([]models.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	turns := s.sessions[sessionID]
	out := make([]models.Turn, len(turns))
	copy(out, turns)
	return out, nil
}
