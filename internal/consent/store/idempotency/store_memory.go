package idempotency

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"pharmatrace/pkg/platform/sentinel"
)

type memoryEntry struct {
	entry
	expires time.Time
}

// InMemoryStore is a process-local Store for single-instance deployments and tests.
type InMemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{entries: make(map[string]memoryEntry), now: time.Now}
}

func (s *InMemoryStore) get(key string) (memoryEntry, bool) {
	e, ok := s.entries[key]
	if ok && !s.now().Before(e.expires) {
		delete(s.entries, key)
		return memoryEntry{}, false
	}
	return e, ok
}

func (s *InMemoryStore) Reserve(_ context.Context, key string, ttl time.Duration) (string, *Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.get(key); ok {
		if e.Done {
			rec := *e.Record
			return "", &rec, nil
		}
		return "", nil, fmt.Errorf("idempotency key %q: %w", key, sentinel.ErrInFlight)
	}
	token := uuid.NewString()
	s.entries[key] = memoryEntry{entry: entry{Token: token}, expires: s.now().Add(ttl)}
	return token, nil, nil
}

func (s *InMemoryStore) Complete(_ context.Context, key, token string, rec Record, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.get(key)
	if !ok || e.Token != token {
		return fmt.Errorf("idempotency key %q: %w", key, sentinel.ErrConflict)
	}
	s.entries[key] = memoryEntry{entry: entry{Token: token, Done: true, Record: &rec}, expires: s.now().Add(ttl)}
	return nil
}

func (s *InMemoryStore) Release(_ context.Context, key, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.get(key); ok && e.Token == token {
		delete(s.entries, key)
	}
	return nil
}
