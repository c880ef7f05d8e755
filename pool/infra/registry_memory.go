package infra

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"pool-gatekeeper/pool/domain"
)

// MemoryRegistry guarda as reservas em um mapa com mutex.
//
// Serve para testes e para deployment de instância única: a seção crítica do
// mutex é o que garante que Put recheca o uso de forma atômica com a
// escrita. Em multi-instância use RedisRegistry.
//
// A expiração é aplicada na leitura; Sweep/StartJanitor apagam fisicamente
// as reservas vencidas, mas não são necessários para correção.
type MemoryRegistry struct {
	mu      sync.Mutex
	entries map[int]map[string]domain.Reservation

	now          func() time.Time
	cleanupEvery time.Duration
}

type MemoryRegistryOption func(*MemoryRegistry)

// WithRegistryClock injeta o relógio (testes de expiração).
func WithRegistryClock(now func() time.Time) MemoryRegistryOption {
	return func(r *MemoryRegistry) { r.now = now }
}

// WithRegistryCleanupEvery ajusta o período do janitor.
func WithRegistryCleanupEvery(d time.Duration) MemoryRegistryOption {
	return func(r *MemoryRegistry) { r.cleanupEvery = d }
}

func NewMemoryRegistry(opts ...MemoryRegistryOption) *MemoryRegistry {
	r := &MemoryRegistry{
		entries:      make(map[int]map[string]domain.Reservation),
		now:          time.Now,
		cleanupEvery: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CurrentUsage implementa domain.Registry.
func (r *MemoryRegistry) CurrentUsage(_ context.Context, resourceID int) (int, error) {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	return r.usageLocked(resourceID, now), nil
}

// Put implementa domain.Registry. A soma de uso é refeita dentro do mutex,
// junto com a escrita: duas admissões concorrentes nunca estouram o teto.
func (r *MemoryRegistry) Put(_ context.Context, res domain.Reservation, ceiling int) error {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	byRun := r.entries[res.ResourceID]
	if existing, ok := byRun[res.RunID]; ok && !existing.Expired(now) {
		return fmt.Errorf("%w: run %s on resource %d", domain.ErrDuplicateReservation, res.RunID, res.ResourceID)
	}

	if r.usageLocked(res.ResourceID, now)+res.Parallel > ceiling {
		return fmt.Errorf("%w: resource %d", domain.ErrCapacityRevoked, res.ResourceID)
	}

	if byRun == nil {
		byRun = make(map[string]domain.Reservation)
		r.entries[res.ResourceID] = byRun
	}
	byRun[res.RunID] = res
	return nil
}

// Remove implementa domain.Registry.
func (r *MemoryRegistry) Remove(_ context.Context, resourceID int, runID string) (int, error) {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	byRun := r.entries[resourceID]
	res, ok := byRun[runID]
	if !ok {
		return 0, fmt.Errorf("%w: run %s on resource %d", domain.ErrReservationNotFound, runID, resourceID)
	}

	delete(byRun, runID)
	if res.Expired(now) {
		// Já tinha devolvido a capacidade via expiração.
		return 0, fmt.Errorf("%w: run %s on resource %d (expired)", domain.ErrReservationNotFound, runID, resourceID)
	}
	return res.Parallel, nil
}

// ListActive implementa domain.Registry. Ordena por criação para o status
// ficar estável.
func (r *MemoryRegistry) ListActive(_ context.Context, resourceID int) ([]domain.Reservation, error) {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.Reservation, 0, len(r.entries[resourceID]))
	for _, res := range r.entries[resourceID] {
		if !res.Expired(now) {
			out = append(out, res)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].RunID < out[j].RunID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Sweep apaga fisicamente as reservas expiradas.
func (r *MemoryRegistry) Sweep() {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	for resourceID, byRun := range r.entries {
		for runID, res := range byRun {
			if res.Expired(now) {
				delete(byRun, runID)
			}
		}
		if len(byRun) == 0 {
			delete(r.entries, resourceID)
		}
	}
}

// StartJanitor inicia uma goroutine que varre reservas vencidas
// periodicamente. Pare cancelando o contexto.
func (r *MemoryRegistry) StartJanitor(ctx context.Context) {
	if r.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(r.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				r.Sweep()
			}
		}
	}()
}

func (r *MemoryRegistry) usageLocked(resourceID int, now time.Time) int {
	usage := 0
	for _, res := range r.entries[resourceID] {
		if !res.Expired(now) {
			usage += res.Parallel
		}
	}
	return usage
}
