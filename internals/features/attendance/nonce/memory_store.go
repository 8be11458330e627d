package nonce

import (
	"context"
	"sync"
	"time"
)

// MemoryStore: implementasi ketiga untuk test & development single
// process. Memegang kontrak yang sama persis dengan dua backend nyata.
type MemoryStore struct {
	mu   sync.Mutex
	ttl  time.Duration
	used map[string]time.Time // nonce -> expiry
	now  func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:  ttl,
		used: make(map[string]time.Time),
		now:  time.Now,
	}
}

func (s *MemoryStore) IsUsed(ctx context.Context, nonce string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.used[nonce]
	if !ok {
		return false, nil
	}
	if s.now().After(exp) {
		delete(s.used, nonce)
		return false, nil
	}
	return true, nil
}

func (s *MemoryStore) Consume(ctx context.Context, nonce string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if exp, ok := s.used[nonce]; ok && !s.now().After(exp) {
		return false, nil
	}
	s.used[nonce] = s.now().Add(s.ttl)
	return true, nil
}
