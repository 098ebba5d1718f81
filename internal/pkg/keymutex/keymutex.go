// Package keymutex provides per-key mutual exclusion with lazy eviction of
// idle entries, so operations on different keys never contend and the lock
// table does not grow without bound.
package keymutex

import "sync"

type entry struct {
	mu   sync.Mutex
	refs int
}

type KeyMutex struct {
	mu      sync.Mutex
	entries map[string]*entry
}

func New() *KeyMutex {
	return &KeyMutex{entries: make(map[string]*entry)}
}

// Lock acquires the mutex for key and returns the matching unlock function.
// Waiters on the same key are serialized; distinct keys proceed independently.
func (k *KeyMutex) Lock(key string) (unlock func()) {
	k.mu.Lock()
	e, ok := k.entries[key]
	if !ok {
		e = &entry{}
		k.entries[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Unlock()

			k.mu.Lock()
			e.refs--
			if e.refs == 0 {
				delete(k.entries, key)
			}
			k.mu.Unlock()
		})
	}
}

// Len reports the number of live lock entries. Intended for tests.
func (k *KeyMutex) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}
