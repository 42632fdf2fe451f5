package lock

import (
	"context"
	"sync"
)

// entry is a reference-counted mutex: refs tracks how many goroutines are
// currently holding or waiting on this key's lock, so KeyedLocker knows
// when it is safe to drop the entry from the map.
type entry struct {
	mu   sync.Mutex
	refs int
}

// KeyedLocker is an in-process Locker: one mutex per key, created on first
// use and garbage-collected once its last holder releases it. Safe for
// concurrent use by any number of goroutines on distinct or overlapping
// keys.
type KeyedLocker struct {
	mu      sync.Mutex
	entries map[string]*entry
}

func NewKeyedLocker() *KeyedLocker {
	return &KeyedLocker{entries: map[string]*entry{}}
}

func (l *KeyedLocker) acquire(key string) *entry {
	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &entry{}
		l.entries[key] = e
	}
	e.refs++
	l.mu.Unlock()
	return e
}

func (l *KeyedLocker) release(key string, e *entry) {
	l.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
	l.mu.Unlock()
}

// Lock blocks until key's mutex is acquired or ctx is done. Cancellation
// while waiting on e.mu still leaves a goroutine blocked on the mutex
// itself (sync.Mutex offers no cancellable Lock); the entry is released
// once that goroutine eventually acquires and immediately unlocks it.
func (l *KeyedLocker) Lock(ctx context.Context, key string) (Unlock, error) {
	e := l.acquire(key)

	acquired := make(chan struct{})
	go func() {
		e.mu.Lock()
		close(acquired)
	}()

	select {
	case <-acquired:
		var once sync.Once
		return func() {
			once.Do(func() {
				e.mu.Unlock()
				l.release(key, e)
			})
		}, nil
	case <-ctx.Done():
		// The goroutine above is still waiting on e.mu.Lock(). It owns this
		// acquire's single ref until it eventually gets the mutex and
		// releases it; releasing here too would double-decrement refs.
		go func() {
			<-acquired
			e.mu.Unlock()
			l.release(key, e)
		}()
		return nil, ctx.Err()
	}
}
