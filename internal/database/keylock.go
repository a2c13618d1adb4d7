package database

import (
	"context"
	"slices"
	"strings"
	"sync"
)

// KeyLocker hands out exclusive locks on string keys, e.g. cluster IDs.
// Locks for several keys are always taken in sorted order so two callers
// asking for overlapping sets cannot deadlock each other.
type KeyLocker struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	sem  chan struct{}
	refs int // holders plus waiters; the entry is dropped at zero
}

// NewKeyLocker creates an empty locker.
func NewKeyLocker() *KeyLocker {
	return &KeyLocker{locks: make(map[string]*keyLock)}
}

// CanonicalKeys trims, drops empty entries, sorts and deduplicates keys.
func CanonicalKeys(keys []string) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Lock blocks until every key is held or ctx is done.
// The returned function releases all keys and is safe to call more than once.
func (l *KeyLocker) Lock(ctx context.Context, keys ...string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	keys = CanonicalKeys(keys)
	held := make([]string, 0, len(keys))

	for _, key := range keys {
		kl := l.ref(key)
		select {
		case kl.sem <- struct{}{}:
			held = append(held, key)
		case <-ctx.Done():
			l.unref(key)
			l.release(held)
			return nil, ctx.Err()
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.release(held) })
	}, nil
}

// Held returns the number of keys currently locked or waited on.
func (l *KeyLocker) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

func (l *KeyLocker) ref(key string) *keyLock {
	l.mu.Lock()
	defer l.mu.Unlock()
	kl, ok := l.locks[key]
	if !ok {
		kl = &keyLock{sem: make(chan struct{}, 1)}
		l.locks[key] = kl
	}
	kl.refs++
	return kl
}

func (l *KeyLocker) unref(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	kl := l.locks[key]
	kl.refs--
	if kl.refs == 0 {
		delete(l.locks, key)
	}
}

// release unlocks keys in reverse acquisition order.
func (l *KeyLocker) release(keys []string) {
	for i := len(keys) - 1; i >= 0; i-- {
		l.mu.Lock()
		kl := l.locks[keys[i]]
		l.mu.Unlock()
		<-kl.sem
		l.unref(keys[i])
	}
}
