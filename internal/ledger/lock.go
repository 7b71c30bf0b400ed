package ledger

import (
	"sync"
	"time"
)

// keyedMutex provides one mutex per (location, sku) aggregate so that
// contention is scoped to a single stock record, never the whole ledger.
// Each slot is a 1-buffered channel; send acquires, receive releases.
type keyedMutex struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{slots: make(map[string]chan struct{})}
}

func (m *keyedMutex) slot(key string) chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.slots[key]
	if !ok {
		ch = make(chan struct{}, 1)
		m.slots[key] = ch
	}
	return ch
}

// Acquire takes the lock for key, waiting at most timeout.
// Returns false when the wait timed out.
func (m *keyedMutex) Acquire(key string, timeout time.Duration) bool {
	ch := m.slot(key)
	select {
	case ch <- struct{}{}:
		return true
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case ch <- struct{}{}:
		return true
	case <-timer.C:
		return false
	}
}

// Release frees the lock for key. Must pair with a successful Acquire.
func (m *keyedMutex) Release(key string) {
	<-m.slot(key)
}
