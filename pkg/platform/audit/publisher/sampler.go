package publisher

import (
	"math/rand/v2"
	"sync"

	audit "pharmatrace/pkg/platform/audit"
)

// Sampler thins operations events. Compliance events are never sampled.
type Sampler struct {
	mu          sync.RWMutex
	defaultRate float64
	byAction    map[audit.AuditEvent]float64
	roll        func() float64
}

// NewSampler keeps operations events with probability rate (clamped to [0,1]).
func NewSampler(rate float64) *Sampler {
	return &Sampler{
		defaultRate: clampRate(rate),
		byAction:    make(map[audit.AuditEvent]float64),
		roll:        rand.Float64, //nolint:gosec // sampling doesn't need crypto rand
	}
}

// SetRate overrides the rate for one action.
func (s *Sampler) SetRate(action audit.AuditEvent, rate float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byAction[action] = clampRate(rate)
}

// Keep reports whether event should be recorded.
func (s *Sampler) Keep(event audit.Event) bool {
	if event.Category == audit.CategoryCompliance {
		return true
	}
	s.mu.RLock()
	rate, ok := s.byAction[audit.AuditEvent(event.Action)]
	if !ok {
		rate = s.defaultRate
	}
	s.mu.RUnlock()

	switch rate {
	case 0:
		return false
	case 1:
		return true
	}
	return s.roll() < rate
}

func clampRate(rate float64) float64 {
	return min(max(rate, 0), 1)
}
