package infra

import (
	"context"
	"errors"
	"testing"
	"time"

	"pool-gatekeeper/pool/domain"
)

func newReservation(resource int, runID string, parallel int, now time.Time, ttl time.Duration) domain.Reservation {
	return domain.Reservation{
		ResourceID:        resource,
		RunID:             runID,
		Parallel:          parallel,
		RequestedParallel: parallel,
		CreatedAt:         now,
		ExpiresAt:         now.Add(ttl),
	}
}

func TestMemoryRegistry_UsageSumsActiveReservations(t *testing.T) {
	r := NewMemoryRegistry()
	ctx := context.Background()
	now := time.Now()

	for _, res := range []domain.Reservation{
		newReservation(4, "a", 8, now, time.Hour),
		newReservation(4, "b", 4, now, time.Hour),
		newReservation(7, "c", 16, now, time.Hour), // outro recurso, não conta
	} {
		if err := r.Put(ctx, res, 1000); err != nil {
			t.Fatalf("put %s: %v", res.RunID, err)
		}
	}

	usage, err := r.CurrentUsage(ctx, 4)
	if err != nil {
		t.Fatalf("usage: %v", err)
	}
	if usage != 12 {
		t.Fatalf("expected usage=12, got %d", usage)
	}
}

func TestMemoryRegistry_PutRejectsOverCeiling(t *testing.T) {
	r := NewMemoryRegistry()
	ctx := context.Background()
	now := time.Now()

	if err := r.Put(ctx, newReservation(4, "a", 90, now, time.Hour), 95); err != nil {
		t.Fatalf("put: %v", err)
	}

	err := r.Put(ctx, newReservation(4, "b", 8, now, time.Hour), 95)
	if !errors.Is(err, domain.ErrCapacityRevoked) {
		t.Fatalf("expected ErrCapacityRevoked, got %v", err)
	}

	// Empate no teto entra.
	if err := r.Put(ctx, newReservation(4, "c", 5, now, time.Hour), 95); err != nil {
		t.Fatalf("put at ceiling: %v", err)
	}
}

func TestMemoryRegistry_PutRejectsDuplicateRun(t *testing.T) {
	r := NewMemoryRegistry()
	ctx := context.Background()
	now := time.Now()

	if err := r.Put(ctx, newReservation(4, "a", 8, now, time.Hour), 95); err != nil {
		t.Fatalf("put: %v", err)
	}
	err := r.Put(ctx, newReservation(4, "a", 2, now, time.Hour), 95)
	if !errors.Is(err, domain.ErrDuplicateReservation) {
		t.Fatalf("expected ErrDuplicateReservation, got %v", err)
	}
}

func TestMemoryRegistry_RemoveReturnsParallelThenNotFound(t *testing.T) {
	r := NewMemoryRegistry()
	ctx := context.Background()

	if err := r.Put(ctx, newReservation(4, "a", 8, time.Now(), time.Hour), 95); err != nil {
		t.Fatalf("put: %v", err)
	}

	released, err := r.Remove(ctx, 4, "a")
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if released != 8 {
		t.Fatalf("expected released=8, got %d", released)
	}

	_, err = r.Remove(ctx, 4, "a")
	if !errors.Is(err, domain.ErrReservationNotFound) {
		t.Fatalf("expected ErrReservationNotFound, got %v", err)
	}
}

func TestMemoryRegistry_ExpiredReservationsAreInvisible(t *testing.T) {
	now := time.Now()
	current := now
	r := NewMemoryRegistry(WithRegistryClock(func() time.Time { return current }))
	ctx := context.Background()

	if err := r.Put(ctx, newReservation(4, "a", 8, now, time.Hour), 95); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := r.Put(ctx, newReservation(4, "b", 4, now, 3*time.Hour), 95); err != nil {
		t.Fatalf("put: %v", err)
	}

	current = now.Add(2 * time.Hour)

	usage, _ := r.CurrentUsage(ctx, 4)
	if usage != 4 {
		t.Fatalf("expected usage=4 after expiry of a, got %d", usage)
	}

	active, _ := r.ListActive(ctx, 4)
	if len(active) != 1 || active[0].RunID != "b" {
		t.Fatalf("expected only b active, got %+v", active)
	}

	// Remove de reserva expirada devolve NotFound (capacidade já voltou).
	if _, err := r.Remove(ctx, 4, "a"); !errors.Is(err, domain.ErrReservationNotFound) {
		t.Fatalf("expected ErrReservationNotFound for expired run, got %v", err)
	}

	// O run_id expirado pode ser reutilizado.
	if err := r.Put(ctx, newReservation(4, "b2", 8, current, time.Hour), 95); err != nil {
		t.Fatalf("put after expiry: %v", err)
	}
}

func TestMemoryRegistry_SweepDeletesExpiredRows(t *testing.T) {
	now := time.Now()
	current := now
	r := NewMemoryRegistry(WithRegistryClock(func() time.Time { return current }))
	ctx := context.Background()

	if err := r.Put(ctx, newReservation(4, "a", 8, now, time.Minute), 95); err != nil {
		t.Fatalf("put: %v", err)
	}

	current = now.Add(time.Hour)
	r.Sweep()

	r.mu.Lock()
	_, stillThere := r.entries[4]
	r.mu.Unlock()
	if stillThere {
		t.Fatalf("expected expired rows to be physically removed")
	}
}

func TestMemoryRegistry_ListActiveOrdersByCreation(t *testing.T) {
	r := NewMemoryRegistry()
	ctx := context.Background()
	now := time.Now()

	for i, runID := range []string{"c", "a", "b"} {
		res := newReservation(4, runID, 2, now.Add(time.Duration(i)*time.Second), time.Hour)
		if err := r.Put(ctx, res, 95); err != nil {
			t.Fatalf("put %s: %v", runID, err)
		}
	}

	active, _ := r.ListActive(ctx, 4)
	if len(active) != 3 {
		t.Fatalf("expected 3 active, got %d", len(active))
	}
	if active[0].RunID != "c" || active[1].RunID != "a" || active[2].RunID != "b" {
		t.Fatalf("expected creation order c,a,b, got %+v", active)
	}
}
