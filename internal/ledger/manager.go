package ledger

import (
	"sync"

	"finledger/internal/identity"
	"finledger/internal/log"
	"finledger/internal/remote"
)

// Manager hands out one Session per identity for server-side callers, where
// each request carries its own resolved identity instead of a shared
// sign-in state.
type Manager struct {
	store  remote.Store
	logger *log.Logger

	mu       sync.Mutex
	sessions map[identity.ID]*Session
	closed   bool
}

func NewManager(store remote.Store, logger *log.Logger) *Manager {
	return &Manager{
		store:    store,
		logger:   logger,
		sessions: make(map[identity.ID]*Session),
	}
}

// Session returns the live session for id, starting one on first use.
func (m *Manager) Session(id identity.ID) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	if s, ok := m.sessions[id]; ok {
		return s
	}

	s := NewSession(m.store, identity.Static(id), m.logger)
	s.Start()
	m.sessions[id] = s
	return s
}

// Close stops every managed session.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[identity.ID]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
