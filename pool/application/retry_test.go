package application

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"pool-gatekeeper/pool/domain"
)

// scriptedAcquirer devolve respostas pré-programadas, uma por chamada.
type scriptedAcquirer struct {
	calls   int
	decs    []domain.Decision
	errs    []error
}

func (s *scriptedAcquirer) Acquire(context.Context, AcquireRequest) (domain.Decision, error) {
	i := s.calls
	s.calls++
	if i >= len(s.decs) {
		return domain.Decision{}, fmt.Errorf("unexpected call %d", i)
	}
	return s.decs[i], s.errs[i]
}

func noSleep(t *testing.T, slept *[]time.Duration) func(context.Context, time.Duration) error {
	t.Helper()
	return func(_ context.Context, d time.Duration) error {
		*slept = append(*slept, d)
		return nil
	}
}

func TestAcquireWithRetry_SleepsServerSuggestedWaitOnDeny(t *testing.T) {
	a := &scriptedAcquirer{
		decs: []domain.Decision{
			{Allowed: false, WaitSeconds: 30},
			{Allowed: false, WaitSeconds: 40},
			{Allowed: true, Parallel: 8},
		},
		errs: []error{nil, nil, nil},
	}

	var slept []time.Duration
	dec, err := AcquireWithRetry(context.Background(), a, AcquireRequest{ResourceID: 4, RunID: "r"}, RetryPolicy{
		MaxAttempts: 5,
		Sleep:       noSleep(t, &slept),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !dec.Allowed || dec.Parallel != 8 {
		t.Fatalf("expected final admit, got %+v", dec)
	}
	if a.calls != 3 {
		t.Fatalf("expected 3 calls, got %d", a.calls)
	}
	if len(slept) != 2 || slept[0] != 30*time.Second || slept[1] != 40*time.Second {
		t.Fatalf("expected sleeps of 30s and 40s, got %v", slept)
	}
}

func TestAcquireWithRetry_GivesUpAfterMaxAttempts(t *testing.T) {
	deny := domain.Decision{Allowed: false, WaitSeconds: 30}
	a := &scriptedAcquirer{
		decs: []domain.Decision{deny, deny, deny},
		errs: []error{nil, nil, nil},
	}

	var slept []time.Duration
	_, err := AcquireWithRetry(context.Background(), a, AcquireRequest{}, RetryPolicy{
		MaxAttempts: 3,
		Sleep:       noSleep(t, &slept),
	})
	if !errors.Is(err, ErrRetriesExhausted) {
		t.Fatalf("expected ErrRetriesExhausted, got %v", err)
	}
	if a.calls != 3 {
		t.Fatalf("expected 3 calls, got %d", a.calls)
	}
	// A última negativa não dorme: o caller já desistiu.
	if len(slept) != 2 {
		t.Fatalf("expected 2 sleeps, got %v", slept)
	}
}

func TestAcquireWithRetry_BacksOffOnTransientError(t *testing.T) {
	transient := fmt.Errorf("%w: timeout", domain.ErrStoreUnavailable)
	a := &scriptedAcquirer{
		decs: []domain.Decision{{}, {}, {Allowed: true, Parallel: 4}},
		errs: []error{transient, transient, nil},
	}

	var slept []time.Duration
	dec, err := AcquireWithRetry(context.Background(), a, AcquireRequest{}, RetryPolicy{
		MaxAttempts: 5,
		Sleep:       noSleep(t, &slept),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !dec.Allowed {
		t.Fatalf("expected admit after transient errors, got %+v", dec)
	}
	if len(slept) != 2 {
		t.Fatalf("expected 2 backoff sleeps, got %v", slept)
	}
	for i, d := range slept {
		if d <= 0 {
			t.Fatalf("backoff sleep %d must be positive, got %s", i, d)
		}
	}
}

func TestAcquireWithRetry_FatalErrorsStopImmediately(t *testing.T) {
	for _, fatal := range []error{
		fmt.Errorf("%w: bad request", domain.ErrInvalidArgument),
		fmt.Errorf("%w: resource 9", domain.ErrLimitNotFound),
		fmt.Errorf("%w: run r", domain.ErrDuplicateReservation),
	} {
		a := &scriptedAcquirer{decs: []domain.Decision{{}}, errs: []error{fatal}}

		var slept []time.Duration
		_, err := AcquireWithRetry(context.Background(), a, AcquireRequest{}, RetryPolicy{Sleep: noSleep(t, &slept)})
		if !errors.Is(err, fatal) {
			t.Fatalf("expected %v to propagate, got %v", fatal, err)
		}
		if a.calls != 1 || len(slept) != 0 {
			t.Fatalf("expected a single call without sleep for %v", fatal)
		}
	}
}

func TestAcquireWithRetry_ContextCancelAbortsSleep(t *testing.T) {
	deny := domain.Decision{Allowed: false, WaitSeconds: 30}
	a := &scriptedAcquirer{
		decs: []domain.Decision{deny, deny},
		errs: []error{nil, nil},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := AcquireWithRetry(ctx, a, AcquireRequest{}, RetryPolicy{MaxAttempts: 5})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if a.calls != 1 {
		t.Fatalf("expected a single call before the cancelled sleep, got %d", a.calls)
	}
}
