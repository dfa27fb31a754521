// Package sessions provides in-memory chat session management, keyed by
// (workspace, user), for multi-turn conversations used by the agentic
// query pipeline.
package sessions

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/corewire/assistant-core/internal/store"
	"github.com/corewire/assistant-core/pkg/models"
)

// MemorySessionStore is a thread-safe in-memory implementation of the
// chat session store.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*models.ChatSession // key: session ID
}

// NewMemorySessionStore creates a new in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]*models.ChatSession),
	}
}

// CreateSession stores a new session.
func (s *MemorySessionStore) CreateSession(_ context.Context, session *models.ChatSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[session.ID]; exists {
		return fmt.Errorf("session %s already exists", session.ID)
	}
	now := time.Now().UTC()
	session.CreatedAt = now
	session.UpdatedAt = now
	s.sessions[session.ID] = session
	return nil
}

// GetSession retrieves a session by ID.
func (s *MemorySessionStore) GetSession(_ context.Context, sessionID string) (*models.ChatSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return session, nil
}

// UpdateSession replaces the session state.
func (s *MemorySessionStore) UpdateSession(_ context.Context, session *models.ChatSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[session.ID]; !exists {
		return store.ErrNotFound
	}
	session.UpdatedAt = time.Now().UTC()
	s.sessions[session.ID] = session
	return nil
}

// AppendMessage appends a message to the session's transcript.
func (s *MemorySessionStore) AppendMessage(_ context.Context, sessionID string, msg models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, exists := s.sessions[sessionID]
	if !exists {
		return store.ErrNotFound
	}
	session.Messages = append(session.Messages, msg)
	session.UpdatedAt = time.Now().UTC()
	return nil
}

// ListSessions lists sessions for a (workspace, user) pair, newest first.
func (s *MemorySessionStore) ListSessions(_ context.Context, workspaceID, userID string) ([]models.ChatSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []models.ChatSession
	for _, sess := range s.sessions {
		if sess.WorkspaceID == workspaceID && sess.UserID == userID {
			result = append(result, *sess)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].UpdatedAt.After(result[j].UpdatedAt)
	})
	return result, nil
}

// DeleteSession removes a session.
func (s *MemorySessionStore) DeleteSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[sessionID]; !exists {
		return store.ErrNotFound
	}
	delete(s.sessions, sessionID)
	return nil
}
