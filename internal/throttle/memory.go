package throttle

import (
	"context"
	"sync"
	"time"
)

type bucket struct {
	count   int64
	expires time.Time
}

// MemoryStore keeps counters in process. It backs tests and single-instance
// development; multiple replicas need RedisStore.
type MemoryStore struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
	calls   int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{buckets: make(map[string]*bucket), now: time.Now}
}

func (s *MemoryStore) Incr(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.calls++
	if s.calls%1024 == 0 {
		s.sweep(now)
	}

	b, ok := s.buckets[key]
	if !ok || !now.Before(b.expires) {
		b = &bucket{expires: now.Add(window)}
		s.buckets[key] = b
	}
	b.count++
	return b.count, b.expires.Sub(now), nil
}

// Len reports live buckets.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweep(s.now())
	return len(s.buckets)
}

func (s *MemoryStore) sweep(now time.Time) {
	for k, b := range s.buckets {
		if !now.Before(b.expires) {
			delete(s.buckets, k)
		}
	}
}
