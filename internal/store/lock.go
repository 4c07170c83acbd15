package store

import (
	"ironfly/internal/gamestate"
	"sync"
)

// Locker serializes read-modify-write cycles on the same game. Subscription
// edits, the start command and the periodic refresh all go through it, so a
// subscriber added while a refresh is in flight is never overwritten by the
// refreshed snapshot.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewLocker() *Locker {
	return &Locker{locks: map[string]*sync.Mutex{}}
}

// Lock blocks until the game is free and returns the function releasing it.
func (l *Locker) Lock(gameName string) (unlock func()) {
	key := gamestate.Key(gameName)

	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
