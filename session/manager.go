package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Manager maps browser session ids to sessions and forgets the ones that
// have gone idle.
type Manager struct {
	env  *Env
	idle time.Duration
	now  func() time.Time

	m        sync.RWMutex
	sessions map[string]*entry
}

type entry struct {
	session  *Session
	lastUsed time.Time
}

// NewManager fills unset Env fields with defaults; env must not be modified
// afterwards.
func NewManager(env *Env, idle time.Duration) *Manager {
	env.setDefaults()

	return &Manager{
		env:      env,
		idle:     idle,
		now:      time.Now,
		sessions: make(map[string]*entry),
	}
}

// Get returns the session with id, marking it as used.
func (m *Manager) Get(id string) (*Session, bool) {
	m.m.Lock()
	defer m.m.Unlock()

	e, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	e.lastUsed = m.now()

	return e.session, true
}

// Create starts a new, empty session.
func (m *Manager) Create() *Session {
	s := New(uuid.NewString(), m.env)

	m.m.Lock()
	m.sessions[s.ID] = &entry{session: s, lastUsed: m.now()}
	m.m.Unlock()

	return s
}

// GetOrCreate returns the session with id or a new one when id is unknown.
func (m *Manager) GetOrCreate(id string) (s *Session, created bool) {
	if s, ok := m.Get(id); ok {
		return s, false
	}
	return m.Create(), true
}

func (m *Manager) Len() int {
	m.m.RLock()
	defer m.m.RUnlock()

	return len(m.sessions)
}

// Evict drops sessions unused for longer than the idle period and returns how
// many were removed.
func (m *Manager) Evict() int {
	if m.idle <= 0 {
		return 0
	}

	cutoff := m.now().Add(-m.idle)

	m.m.Lock()
	defer m.m.Unlock()

	n := 0
	for id, e := range m.sessions {
		if e.lastUsed.Before(cutoff) {
			delete(m.sessions, id)
			n++
		}
	}

	return n
}

// Run evicts idle sessions every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := m.Evict(); n > 0 {
				m.env.log().WithField("evicted", n).WithField("remaining", m.Len()).Infoln("Evicted idle sessions")
			}
		}
	}
}
