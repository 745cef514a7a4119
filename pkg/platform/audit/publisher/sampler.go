package publisher

import (
	"math/rand/v2"
	"sync"

	audit "civictrust/pkg/platform/audit"
)

// sampler thins out operations-category events. Compliance and security
// events are always kept.
type sampler struct {
	mu     sync.RWMutex
	rate   float64
	byOp   map[audit.Operation]float64
	random func() float64
}

func newSampler(rate float64) *sampler {
	return &sampler{rate: clampRate(rate), byOp: make(map[audit.Operation]float64), random: rand.Float64}
}

func (s *sampler) setRate(op audit.Operation, rate float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byOp[op] = clampRate(rate)
}

func (s *sampler) keep(event audit.Event) bool {
	if event.Operation.Category() != audit.CategoryOperations {
		return true
	}
	s.mu.RLock()
	rate, ok := s.byOp[event.Operation]
	if !ok {
		rate = s.rate
	}
	s.mu.RUnlock()
	if rate >= 1 {
		return true
	}
	return s.random() < rate //nolint:gosec // sampling does not need crypto rand
}

func clampRate(rate float64) float64 {
	if rate < 0 {
		return 0
	}
	if rate > 1 {
		return 1
	}
	return rate
}
