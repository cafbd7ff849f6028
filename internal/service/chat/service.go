package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sparkforge/spark-os/backend/internal/model/chat"
	"github.com/sparkforge/spark-os/backend/internal/model/persona"
)

var (
	ErrSessionKeyRequired = errors.New("session key is required")
	ErrSessionNotFound    = errors.New("session not found")
)

// Service owns per-conversation state keyed by an opaque session key supplied
// by the transport. Each key maps to exactly one state; keys never interact.
//
// Individual operations are atomic, but a whole turn is not serialized per key.
type Service struct {
	mu       sync.RWMutex
	sessions map[string]*chat.SessionState
	personas persona.Store
	logger   *zap.Logger
	now      func() time.Time
}

// NewService bootstraps the in-memory session store.
func NewService(personas persona.Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		sessions: make(map[string]*chat.SessionState),
		personas: personas,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// GetOrCreate returns the state for key, creating a fresh tutor session on
// first contact.
func (s *Service) GetOrCreate(_ context.Context, key string) (chat.SessionState, error) {
	if key == "" {
		return chat.SessionState{}, ErrSessionKeyRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lockedGetOrCreate(key).Clone(), nil
}

// Get returns the state for key without creating one.
func (s *Service) Get(_ context.Context, key string) (chat.SessionState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.sessions[key]
	if !ok {
		return chat.SessionState{}, ErrSessionNotFound
	}
	return state.Clone(), nil
}

// SwitchPersona sets the active persona. History is left untouched. An
// unregistered id leaves the state unchanged.
func (s *Service) SwitchPersona(_ context.Context, key, personaID string) (chat.SessionState, error) {
	if key == "" {
		return chat.SessionState{}, ErrSessionKeyRequired
	}
	if _, err := s.personas.Get(personaID); err != nil {
		return chat.SessionState{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	state := s.lockedGetOrCreate(key)
	state.ActivePersonaID = personaID
	return state.Clone(), nil
}

// RecordTurn appends one turn to the stored History.
func (s *Service) RecordTurn(_ context.Context, key string, role chat.Role, personaID, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.sessions[key]
	if !ok {
		return fmt.Errorf("record turn: %w", ErrSessionNotFound)
	}
	state.History = append(state.History, chat.Turn{
		Role:      role,
		PersonaID: personaID,
		Content:   content,
		CreatedAt: s.now(),
	})
	return nil
}

// RecordEscalation appends one entry to the escalation log and returns the
// resulting log length.
func (s *Service) RecordEscalation(_ context.Context, key, message, action string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.sessions[key]
	if !ok {
		return 0, fmt.Errorf("record escalation: %w", ErrSessionNotFound)
	}
	state.Escalations = append(state.Escalations, chat.EscalationRecord{
		Timestamp: s.now(),
		Trigger:   message,
		Action:    action,
	})
	return len(state.Escalations), nil
}

// Reset discards everything stored for key. The next access starts over with
// a new session identifier.
func (s *Service) Reset(_ context.Context, key string) {
	s.mu.Lock()
	state, ok := s.sessions[key]
	delete(s.sessions, key)
	s.mu.Unlock()

	if ok {
		s.logger.Info("session reset", zap.String("session_id", state.ID))
	}
}

// Len returns the number of live sessions.
func (s *Service) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *Service) lockedGetOrCreate(key string) *chat.SessionState {
	if state, ok := s.sessions[key]; ok {
		return state
	}
	state := &chat.SessionState{
		ID:              uuid.NewString(),
		ActivePersonaID: persona.TutorID,
		History:         make([]chat.Turn, 0, 16),
		CreatedAt:       s.now(),
	}
	s.sessions[key] = state
	s.logger.Info("session created", zap.String("session_id", state.ID))
	return state
}
