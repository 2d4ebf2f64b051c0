package sessions

import (
	"hash/fnv"
	"sync"
)

// stripedLock serializes work per key using a fixed pool of mutexes.
// A nil *stripedLock never blocks.
type stripedLock struct {
	stripes []sync.Mutex
}

func newStripedLock(n int) *stripedLock {
	if n <= 0 {
		return nil
	}
	return &stripedLock{stripes: make([]sync.Mutex, n)}
}

func (s *stripedLock) lock(key string) (unlock func()) {
	if s == nil {
		return func() {}
	}
	h := fnv.New32a()
	h.Write([]byte(key))
	mu := &s.stripes[h.Sum32()%uint32(len(s.stripes))]
	mu.Lock()
	return mu.Unlock
}
