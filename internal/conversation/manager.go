package conversation

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

var (
	ErrSessionNotFound = errors.New("conversation: session not found")
	ErrTooManySessions = errors.New("conversation: session limit reached")
)

// ManagerConfig bounds the in-memory session registry.
type ManagerConfig struct {
	MaxSessions int
	TTL         time.Duration
	Timeout     time.Duration
	Logger      *log.Logger
	Recorder    Recorder
	Now         func() time.Time
}

// Manager is an in-memory registry of live sessions. Nothing survives a restart.
type Manager struct {
	analyzer Analyzer
	cfg      ManagerConfig

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates an empty registry whose sessions all use analyzer.
func NewManager(analyzer Analyzer, cfg ManagerConfig) *Manager {
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Manager{
		analyzer: analyzer,
		cfg:      cfg,
		sessions: make(map[string]*Session),
	}
}

// Create starts a new session in the landing phase.
func (m *Manager) Create() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cfg.MaxSessions > 0 && len(m.sessions) >= m.cfg.MaxSessions {
		return nil, ErrTooManySessions
	}

	opts := []Option{
		WithTimeout(m.cfg.Timeout),
		WithLogger(m.cfg.Logger),
		WithClock(m.cfg.Now),
	}
	if m.cfg.Recorder != nil {
		opts = append(opts, WithRecorder(m.cfg.Recorder))
	}

	s := NewSession(uuid.NewString(), m.analyzer, opts...)
	m.sessions[s.ID()] = s
	m.cfg.Logger.Debug("session created", "session", s.ID())
	return s, nil
}

// Get looks up a live session.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, errors.Wrapf(ErrSessionNotFound, "id %q", id)
	}
	return s, nil
}

// End closes and forgets a session, discarding its transcript.
func (m *Manager) End(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return errors.Wrapf(ErrSessionNotFound, "id %q", id)
	}
	s.Close()
	return nil
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep ends sessions idle for longer than the TTL and returns how many went.
// Sessions with a request in flight are never swept.
func (m *Manager) Sweep() int {
	if m.cfg.TTL <= 0 {
		return 0
	}
	cutoff := m.cfg.Now().Add(-m.cfg.TTL)

	m.mu.Lock()
	var expired []*Session
	for id, s := range m.sessions {
		last, idle := s.idleSince()
		if idle && last.Before(cutoff) {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		s.Close()
		m.cfg.Logger.Debug("session expired", "session", s.ID())
	}
	return len(expired)
}

// Run sweeps on every interval until ctx ends.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				m.cfg.Logger.Info("expired idle sessions", "count", n)
			}
		}
	}
}
