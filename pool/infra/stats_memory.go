package infra

import (
	"context"
	"strconv"
	"sync"

	"pool-gatekeeper/pool/domain"
)

type DecisionCounters struct {
	Admitted   int64
	Downgraded int64
	Denied     int64
}

func (c *DecisionCounters) bump(outcome domain.Outcome) {
	switch outcome {
	case domain.OutcomeAdmitted:
		c.Admitted++
	case domain.OutcomeDowngraded:
		c.Downgraded++
	case domain.OutcomeDenied:
		c.Denied++
	}
}

// MemoryStatsStore é uma implementação simples em memória.
// Útil para testes e desenvolvimento.
//
// Não faz expiração e não é indicada para produção.
type MemoryStatsStore struct {
	mu         sync.Mutex
	total      DecisionCounters
	byResource map[string]DecisionCounters
}

func NewMemoryStatsStore() *MemoryStatsStore {
	return &MemoryStatsStore{byResource: make(map[string]DecisionCounters)}
}

// Record implementa domain.StatsStore.
func (s *MemoryStatsStore) Record(_ context.Context, ev domain.DecisionEvent) error {
	resource := strconv.Itoa(ev.ResourceID)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.total.bump(ev.Outcome)
	c := s.byResource[resource]
	c.bump(ev.Outcome)
	s.byResource[resource] = c
	return nil
}

func (s *MemoryStatsStore) Total() DecisionCounters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

func (s *MemoryStatsStore) ByResource() map[string]DecisionCounters {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]DecisionCounters, len(s.byResource))
	for k, v := range s.byResource {
		out[k] = v
	}
	return out
}
