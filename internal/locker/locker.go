// Package locker provides named exclusive locks keyed by arbitrary strings.
// Entity identifiers are the typical keys: all mutations of one identifier
// serialize on its lock while unrelated identifiers proceed concurrently.
package locker

import (
	"errors"
	"hash/fnv"
	"sync"
)

// ErrBusy is returned by TryAcquire when the key is already locked.
var ErrBusy = errors.New("lock is busy")

const shardCount = 16

type shard struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Locker is a sharded table of named mutexes, created lazily per key.
// Lock entries are kept for the lifetime of the Locker; the key space
// (entity identifiers) is small enough that eviction is not worth the
// bookkeeping.
type Locker struct {
	shards [shardCount]*shard
}

// New creates an empty Locker.
func New() *Locker {
	l := &Locker{}
	for i := range l.shards {
		l.shards[i] = &shard{locks: make(map[string]*sync.Mutex)}
	}
	return l
}

func (l *Locker) lockFor(key string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(key))
	s := l.shards[h.Sum32()%shardCount]

	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.locks[key]
	if !ok {
		m = &sync.Mutex{}
		s.locks[key] = m
	}
	return m
}

// Acquire blocks until the lock for key is available and returns a
// release function. The release function must be called exactly once,
// typically via defer.
func (l *Locker) Acquire(key string) func() {
	m := l.lockFor(key)
	m.Lock()
	return m.Unlock
}

// TryAcquire attempts to take the lock for key without blocking.
// It returns ErrBusy if the lock is held by another operation.
func (l *Locker) TryAcquire(key string) (func(), error) {
	m := l.lockFor(key)
	if !m.TryLock() {
		return nil, ErrBusy
	}
	return m.Unlock, nil
}
