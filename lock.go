package omnio

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// maxReaders bounds concurrent readers per key. A writer acquires the
// full weight, so it waits for every reader to drain and blocks new
// ones; the semaphore's FIFO queue keeps writers from starving.
const maxReaders = 1 << 30

// keyedLock is a multi-reader/single-writer lock keyed by object path.
// Acquisition is cancelable through the context. Idle keys are evicted
// so the map does not grow with the catalog.
type keyedLock struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	sem  *semaphore.Weighted
	refs int
}

func newKeyedLock() *keyedLock {
	return &keyedLock{entries: map[string]*lockEntry{}}
}

// retain returns the entry for key, creating it on first use.
func (k *keyedLock) retain(key string) *lockEntry {
	k.mu.Lock()
	defer k.mu.Unlock()

	e, ok := k.entries[key]
	if !ok {
		e = &lockEntry{sem: semaphore.NewWeighted(maxReaders)}
		k.entries[key] = e
	}

	e.refs++

	return e
}

// release drops one reference and evicts the entry when idle.
func (k *keyedLock) release(key string, e *lockEntry) {
	k.mu.Lock()
	defer k.mu.Unlock()

	e.refs--
	if e.refs == 0 {
		delete(k.entries, key)
	}
}

// RLock acquires a shared lock on key. The returned release function
// must be called exactly once on every exit path.
func (k *keyedLock) RLock(ctx context.Context, key string) (func(), error) {
	e := k.retain(key)

	if err := e.sem.Acquire(ctx, 1); err != nil {
		k.release(key, e)
		return nil, err
	}

	var once sync.Once

	return func() {
		once.Do(func() {
			e.sem.Release(1)
			k.release(key, e)
		})
	}, nil
}

// Lock acquires the exclusive lock on key. The returned release
// function must be called exactly once on every exit path.
func (k *keyedLock) Lock(ctx context.Context, key string) (func(), error) {
	e := k.retain(key)

	if err := e.sem.Acquire(ctx, maxReaders); err != nil {
		k.release(key, e)
		return nil, err
	}

	var once sync.Once

	return func() {
		once.Do(func() {
			e.sem.Release(maxReaders)
			k.release(key, e)
		})
	}, nil
}

// LockPair acquires exclusive locks on two distinct keys in a global
// order, so concurrent cross-path operations cannot deadlock.
func (k *keyedLock) LockPair(ctx context.Context, a, b string) (func(), error) {
	first, second := a, b
	if b < a {
		first, second = b, a
	}

	releaseFirst, err := k.Lock(ctx, first)
	if err != nil {
		return nil, err
	}

	releaseSecond, err := k.Lock(ctx, second)
	if err != nil {
		releaseFirst()
		return nil, err
	}

	var once sync.Once

	return func() {
		once.Do(func() {
			releaseSecond()
			releaseFirst()
		})
	}, nil
}
