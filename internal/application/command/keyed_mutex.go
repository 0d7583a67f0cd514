package command

import (
	"hash/fnv"
	"sync"
)

// keyedMutex serializes work per string key using a fixed set of lock
// stripes. Two callers with the same key never run their critical sections
// concurrently; distinct keys may share a stripe, which costs throughput
// but never correctness.
type keyedMutex struct {
	stripes []sync.Mutex
}

const defaultLockStripes = 128

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{stripes: make([]sync.Mutex, defaultLockStripes)}
}

func (m *keyedMutex) lock(key string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	mu := &m.stripes[h.Sum32()%uint32(len(m.stripes))]
	mu.Lock()
	return mu
}
