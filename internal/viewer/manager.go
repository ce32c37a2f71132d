package viewer

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is one viewer's visualization.
type Session struct {
	ID        string
	CreatedAt time.Time
	*Visualization
}

// State returns the visualization snapshot tagged with the session ID.
func (s *Session) State() Snapshot {
	snap := s.Visualization.State()
	snap.SessionID = s.ID
	return snap
}

// Manager owns the open sessions.
type Manager struct {
	fetcher Fetcher
	opts    Options

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a manager that loads datasets through fetcher.
func NewManager(fetcher Fetcher, opts Options) *Manager {
	return &Manager{fetcher: fetcher, opts: opts, sessions: make(map[string]*Session)}
}

// Open creates a session for captureID and loads its dataset. If loading
// fails the session is discarded and the error returned, so no half-wired
// session is ever visible.
func (m *Manager) Open(ctx context.Context, captureID string) (*Session, error) {
	viz, err := New(captureID, m.opts)
	if err != nil {
		return nil, fmt.Errorf("initializing visualization: %w", err)
	}
	if err := viz.Load(ctx, m.fetcher); err != nil {
		viz.Close()
		return nil, err
	}

	s := &Session{ID: uuid.NewString(), CreatedAt: time.Now().UTC(), Visualization: viz}
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	logf("session %s opened for capture %s", s.ID, captureID)
	return s, nil
}

// Get returns the session with id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Close closes and forgets the session with id.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	s.Close()
	logf("session %s closed", id)
	return nil
}

// List returns the open sessions, oldest first.
func (m *Manager) List() []*Session {
	m.mu.Lock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// CloseAll closes every session.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()
	for _, s := range sessions {
		s.Close()
	}
}
