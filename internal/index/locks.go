package index

import "sync"

// Locks is a keyed reader/writer mutex. Builds hold the write side of a session key and
// queries the read side, so a query never observes a half-replaced index.
type Locks struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	rw   sync.RWMutex
	refs int
}

func NewLocks() *Locks {
	return &Locks{entries: make(map[string]*lockEntry)}
}

// Lock takes the write lock for key and returns its release function.
func (l *Locks) Lock(key string) (unlock func()) {
	e := l.acquire(key)
	e.rw.Lock()
	return func() {
		e.rw.Unlock()
		l.release(key)
	}
}

// RLock takes the read lock for key and returns its release function.
func (l *Locks) RLock(key string) (unlock func()) {
	e := l.acquire(key)
	e.rw.RLock()
	return func() {
		e.rw.RUnlock()
		l.release(key)
	}
}

func (l *Locks) acquire(key string) *lockEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[key]
	if !ok {
		e = &lockEntry{}
		l.entries[key] = e
	}
	e.refs++
	return e
}

func (l *Locks) release(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := l.entries[key]
	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
}

func (l *Locks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
