package credentials

import "sync"

var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps the session in process memory. Useful for tests and for
// short-lived tools that should not leave tokens on disk.
type MemoryStore struct {
	mu      sync.RWMutex
	session Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Save(session Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = session
	return nil
}

func (m *MemoryStore) Load() (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session, nil
}

func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = Session{}
	return nil
}
