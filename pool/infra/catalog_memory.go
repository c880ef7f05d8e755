package infra

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"pool-gatekeeper/pool/domain"
)

// MemoryCatalog é um catálogo de limites em memória, carregado na subida do
// processo (e mutável só por tooling administrativo/testes via Set).
type MemoryCatalog struct {
	mu     sync.RWMutex
	limits map[int]domain.Limits
}

func NewMemoryCatalog(limits ...domain.Limits) (*MemoryCatalog, error) {
	c := &MemoryCatalog{limits: make(map[int]domain.Limits, len(limits))}
	for _, l := range limits {
		if err := c.Set(l); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Set provisiona (ou substitui) os limites de um recurso.
func (c *MemoryCatalog) Set(l domain.Limits) error {
	if err := l.Validate(); err != nil {
		return fmt.Errorf("limits for resource %d: %w", l.ResourceID, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.limits[l.ResourceID] = l
	return nil
}

// Get implementa domain.Catalog.
func (c *MemoryCatalog) Get(_ context.Context, resourceID int) (domain.Limits, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	l, ok := c.limits[resourceID]
	if !ok {
		return domain.Limits{}, fmt.Errorf("%w: resource %d", domain.ErrLimitNotFound, resourceID)
	}
	return l, nil
}

// List implementa domain.Catalog, ordenado por recurso.
func (c *MemoryCatalog) List(_ context.Context) ([]domain.Limits, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]domain.Limits, 0, len(c.limits))
	for _, l := range c.limits {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ResourceID < out[j].ResourceID })
	return out, nil
}
