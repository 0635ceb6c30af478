package session

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"CellarSociety/pkg/kit"
)

// Manager owns every live session, looked up by session id. Sessions are
// created at first contact and dropped at logout or checkout completion;
// nothing here survives a restart.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	Log     *zap.Logger
	Metrics *kit.IndexMetrics
}

func NewManager(log *zap.Logger, metrics *kit.IndexMetrics) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		Log:      log,
		Metrics:  metrics,
	}
}

func (m *Manager) Create(customerID string) *Session {
	s := newSession("s_"+uuid.NewString(), customerID)

	m.mu.Lock()
	m.sessions[s.ID] = s
	n := len(m.sessions)
	m.mu.Unlock()

	m.Metrics.SetActiveSessions(n)
	if m.Log != nil {
		m.Log.Info("session created",
			zap.String("session_id", s.ID),
			zap.String("customer_id", customerID),
		)
	}
	return s
}

func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	return s, ok
}

// End drops the session and everything it scoped: cart and histories.
func (m *Manager) End(id string) bool {
	m.mu.Lock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	n := len(m.sessions)
	m.mu.Unlock()

	m.Metrics.SetActiveSessions(n)
	return ok
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
