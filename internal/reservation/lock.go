package reservation

import "sync"

// refMutex serializes reservation writes per (reference_type, reference_id)
// so the find-then-create window in ReserveForReference cannot double-reserve
// within one process. The database's partial unique index covers writers in
// other processes.
type refMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newRefMutex() *refMutex {
	return &refMutex{locks: make(map[string]*sync.Mutex)}
}

func (m *refMutex) slot(key string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[key]
	if !ok {
		l = &sync.Mutex{}
		m.locks[key] = l
	}
	return l
}

func (m *refMutex) Lock(key string) {
	m.slot(key).Lock()
}

func (m *refMutex) Unlock(key string) {
	m.slot(key).Unlock()
}
