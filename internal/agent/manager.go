package agent

import (
	"context"
	"errors"
	"sync"

	"github.com/jsamit27/ava/internal/domain"
)

// Manager errors callers branch on.
var (
	ErrUnknownSession = errors.New("unknown session")
	ErrTurnInProgress = errors.New("another turn is already running for this session")
)

// Manager keeps every live session's state: its domain data, its
// backend client, and its turn trace. Sessions are independent and may
// run turns concurrently; two turns for the same session are not
// allowed to race on one backend session id and one log, so each
// session carries a turn mutex that is try-locked, never waited on.
type Manager struct {
	controller *Controller

	mu       sync.RWMutex
	sessions map[string]*sessionState
}

type sessionState struct {
	data    *domain.Session
	backend Asker
	log     domain.TurnLog
	turn    sync.Mutex
}

// NewManager creates an empty session manager.
func NewManager(controller *Controller) *Manager {
	return &Manager{
		controller: controller,
		sessions:   make(map[string]*sessionState),
	}
}

// Register adds a freshly initialized session. The backend client must
// already be authenticated and bound to a new backend session.
func (m *Manager) Register(data *domain.Session, backend Asker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[data.SessionID] = &sessionState{data: data, backend: backend}
}

// FindByLead returns the live session id for a lead, if one exists.
// Session initialization reuses it instead of creating a second
// conversation thread for the same lead.
func (m *Manager) FindByLead(leadID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for id, s := range m.sessions {
		if s.data.LeadID == leadID {
			return id, true
		}
	}
	return "", false
}

// Turn runs one turn for the session. A second concurrent turn for the
// same session fails with ErrTurnInProgress instead of queueing.
func (m *Manager) Turn(ctx context.Context, sessionID, message string) (string, error) {
	m.mu.RLock()
	s := m.sessions[sessionID]
	m.mu.RUnlock()
	if s == nil {
		return "", ErrUnknownSession
	}

	if !s.turn.TryLock() {
		return "", ErrTurnInProgress
	}
	defer s.turn.Unlock()

	return m.controller.Turn(ctx, s.backend, s.data, &s.log, message), nil
}

// Logs returns the last n trace entries for the session.
func (m *Manager) Logs(sessionID string, n int) ([]domain.TurnLogEntry, error) {
	m.mu.RLock()
	s := m.sessions[sessionID]
	m.mu.RUnlock()
	if s == nil {
		return nil, ErrUnknownSession
	}
	return s.log.Recent(n), nil
}
