package deploy

import "sync"

// =============================================================================
// Per-Application Locking
// =============================================================================

// nameLocks serializes deploy/update/delete per application name. Operations
// on different names proceed independently. Locks are never removed from the
// map; the set of application names is small and bounded by real usage.
type nameLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newNameLocks() *nameLocks {
	return &nameLocks{locks: make(map[string]*sync.Mutex)}
}

// acquire locks the mutex for name and returns the matching unlock.
func (l *nameLocks) acquire(name string) func() {
	l.mu.Lock()
	m, ok := l.locks[name]
	if !ok {
		m = &sync.Mutex{}
		l.locks[name] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
