// Package ratelimit bounds how often one caller may hit an endpoint, using a
// sliding window held in memory or in Redis.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Result is the outcome of one Allow call.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Store counts requests per key over a sliding window.
type Store interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (Result, error)
}

// InMemoryStore is a single-process Store. Keys whose window has emptied are
// dropped, and idle keys are swept at most once per window.
type InMemoryStore struct {
	mu        sync.Mutex
	windows   map[string]*slidingWindow
	lastSweep time.Time
	now       func() time.Time
}

type slidingWindow struct {
	hits   []time.Time
	length time.Duration
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{windows: make(map[string]*slidingWindow), now: time.Now}
}

func (s *InMemoryStore) Allow(_ context.Context, key string, limit int, window time.Duration) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now.Sub(s.lastSweep) >= window {
		s.sweep(now)
	}

	w, ok := s.windows[key]
	if !ok {
		w = &slidingWindow{}
	}
	w.length = window
	w.hits = prune(w.hits, now.Add(-window))
	if len(w.hits) >= limit {
		reset := now.Add(window)
		if len(w.hits) > 0 {
			reset = w.hits[0].Add(window)
			s.windows[key] = w
		} else {
			delete(s.windows, key)
		}
		return Result{Allowed: false, Limit: limit, ResetAt: reset}, nil
	}

	w.hits = append(w.hits, now)
	s.windows[key] = w
	return Result{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - len(w.hits),
		ResetAt:   w.hits[0].Add(window),
	}, nil
}

// sweep deletes every key whose newest hit has left its window.
func (s *InMemoryStore) sweep(now time.Time) {
	for key, w := range s.windows {
		if len(w.hits) == 0 || !w.hits[len(w.hits)-1].After(now.Add(-w.length)) {
			delete(s.windows, key)
		}
	}
	s.lastSweep = now
}

// prune drops timestamps at or before cutoff. hits is ordered oldest first.
func prune(hits []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for ; i < len(hits); i++ {
		if hits[i].After(cutoff) {
			break
		}
	}
	return hits[i:]
}
