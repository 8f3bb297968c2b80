package memory

import (
	"context"
	"sync"

	"github.com/kirillkom/pixers-assistant/internal/core/domain"
)

// Store keeps dialogue sessions in process memory. Load returns nil, nil for
// unknown conversations.
type Store struct {
	mu       sync.Mutex
	sessions map[string]domain.DialogueSession
}

func New() *Store {
	return &Store{sessions: make(map[string]domain.DialogueSession)}
}

func (s *Store) Load(_ context.Context, conversationID string) (*domain.DialogueSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[conversationID]
	if !ok {
		return nil, nil
	}
	return &session, nil
}

func (s *Store) Save(_ context.Context, session *domain.DialogueSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ConversationID] = *session
	return nil
}

func (s *Store) Delete(_ context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, conversationID)
	return nil
}
