package engine

import (
	"sync"
	"time"
)

// DefaultLockTimeout is how long a task lock stays live before expiring
const DefaultLockTimeout = 30 * time.Second

// LockManager is a short-lived per-task mutex table. It makes single-task
// auto-sync idempotent against rapid repeated triggers; expired entries are
// reclaimed on the next acquire.
type LockManager struct {
	timeout time.Duration
	now     func() time.Time

	mu    sync.Mutex
	locks map[string]time.Time
}

// NewLockManager creates a lock manager with the given expiry timeout
func NewLockManager(timeout time.Duration) *LockManager {
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}
	return &LockManager{
		timeout: timeout,
		now:     time.Now,
		locks:   make(map[string]time.Time),
	}
}

// LockKey builds the canonical lock key for a task operation
func LockKey(taskID, operation string) string {
	return taskID + ":" + operation
}

// Acquire takes the lock, failing if a non-expired holder exists
func (m *LockManager) Acquire(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if acquiredAt, held := m.locks[key]; held && now.Sub(acquiredAt) < m.timeout {
		return false
	}
	m.locks[key] = now
	return true
}

// Release drops the lock
func (m *LockManager) Release(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, key)
}

// Held reports whether a live lock exists for the key
func (m *LockManager) Held(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	acquiredAt, held := m.locks[key]
	return held && m.now().Sub(acquiredAt) < m.timeout
}
