package db

import "sync"

// KeyedLock serializes in-process access per job id. It backs the per-job
// mutual exclusion for orchestrator operations; the durable guard across
// processes is the optimistic status update in JobRepository.UpdateStatusIf,
// this lock only keeps local callers from racing the processor.
type KeyedLock struct {
	mu    sync.Mutex
	locks map[uint]*sync.Mutex
}

// NewKeyedLock creates an empty keyed lock
func NewKeyedLock() *KeyedLock {
	return &KeyedLock{locks: make(map[uint]*sync.Mutex)}
}

// Lock acquires the mutex for the given key, creating it on first use.
// Locks are retained for the process lifetime; the key space is job ids,
// which is small enough not to need eviction.
func (k *KeyedLock) Lock(key uint) {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()
	m.Lock()
}

// Unlock releases the mutex for the given key
func (k *KeyedLock) Unlock(key uint) {
	k.mu.Lock()
	m, ok := k.locks[key]
	k.mu.Unlock()
	if ok {
		m.Unlock()
	}
}
