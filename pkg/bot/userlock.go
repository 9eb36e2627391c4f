package bot

import "sync"

// userLocks serializes the message pipeline per user so two messages
// from the same user cannot interleave their history and profile
// writes. Locks are never freed; the map grows with the user base,
// which is fine at this scale.
type userLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[string]*sync.Mutex)}
}

// lock blocks until the user's lock is held and returns the unlock.
func (l *userLocks) lock(userID string) func() {
	l.mu.Lock()
	m, ok := l.locks[userID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[userID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
