package core

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps tokens in a process-local map. It is the development
// and test backend; a deployment with more than one replica swaps in
// RedisStore behind the same port.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]AuthToken
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]AuthToken),
	}
}

func (s *MemoryStore) Save(_ context.Context, t AuthToken, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[t.TokenHash] = t
	return nil
}

func (s *MemoryStore) Get(_ context.Context, hash string) (*AuthToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.data[hash]
	if !ok {
		return nil, ErrNotFound
	}
	return &t, nil
}

func (s *MemoryStore) MarkUsed(_ context.Context, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.data[hash]
	if !ok {
		return ErrNotFound
	}
	if t.Used {
		return ErrUsed
	}
	t.Used = true
	s.data[hash] = t
	return nil
}

func (s *MemoryStore) IncrementAttempts(_ context.Context, hash string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.data[hash]
	if !ok {
		return 0, nil
	}
	t.Attempts++
	s.data[hash] = t
	return t.Attempts, nil
}

func (s *MemoryStore) Delete(_ context.Context, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, hash)
	return nil
}

func (s *MemoryStore) SweepExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for hash, t := range s.data {
		if !t.ExpiresAt.After(now) {
			delete(s.data, hash)
			removed++
		}
	}
	return removed, nil
}
