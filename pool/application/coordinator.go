package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"pool-gatekeeper/pool/domain"
)

// DefaultReservationTTL é o horizonte de expiração de uma reserva quando o
// coordenador não é configurado com outro valor. Cobre o crash do caller:
// depois disso a capacidade volta sozinha.
const DefaultReservationTTL = 24 * time.Hour

// Quantas vezes o ciclo ler-decidir-gravar é repetido quando o Put
// condicional perde a corrida para outro acquire concorrente.
const putAttempts = 3

// Coordinator é a fachada acquire/release/status.
//
// Ele compõe catálogo, registry, decisão pura e estimador. A serialização
// fica no registry (Put condicional ao teto); aqui só se repete o ciclo
// quando a decisão foi invalidada por corrida.
type Coordinator struct {
	Catalog   domain.Catalog
	Registry  domain.Registry
	Stats     domain.StatsStore // opcional, best-effort
	Estimator WaitEstimator

	// TTL das reservas; <= 0 usa DefaultReservationTTL.
	TTL time.Duration

	// Now é injetável para testes; nil usa time.Now.
	Now func() time.Time
}

// AcquireRequest é o pedido de admissão de um batch.
type AcquireRequest struct {
	ResourceID int
	RunID      string
	OwnerID    string
	Label      string
	Parallel   int
}

// ReleaseResult informa o que um release devolveu ao pool.
type ReleaseResult struct {
	Released     bool
	Parallel     int
	CurrentUsage int
}

// ResourceStatus é o agregado read-only por recurso.
type ResourceStatus struct {
	ResourceID     int
	Name           string
	MaxConnections int
	Threshold      int
	CurrentUsage   int
	Available      int
	ActiveCount    int
	Active         []domain.Reservation
}

// Acquire lê limites e uso, decide e, se admitido, grava a reserva.
//
// O Put é condicionado ao teto: se outro acquire consumir a capacidade entre
// a leitura e a escrita, o ciclo recomeça (até putAttempts vezes) e, se a
// corrida persistir, a resposta vira Deny com estimativa de espera.
func (c *Coordinator) Acquire(ctx context.Context, req AcquireRequest) (domain.Decision, error) {
	if req.ResourceID <= 0 {
		return domain.Decision{}, fmt.Errorf("%w: resource_id is required", domain.ErrInvalidArgument)
	}
	if req.RunID == "" {
		return domain.Decision{}, fmt.Errorf("%w: run_id is required", domain.ErrInvalidArgument)
	}

	limits, err := c.Catalog.Get(ctx, req.ResourceID)
	if err != nil {
		return domain.Decision{}, err
	}

	now := c.now()
	threshold := limits.Threshold()

	for attempt := 0; attempt < putAttempts; attempt++ {
		usage, err := c.Registry.CurrentUsage(ctx, req.ResourceID)
		if err != nil {
			return domain.Decision{}, err
		}

		dec, err := Decide(limits, usage, req.Parallel)
		if err != nil {
			return domain.Decision{}, err
		}
		if !dec.Allowed {
			return c.deny(ctx, req.ResourceID, dec)
		}

		res := domain.Reservation{
			ResourceID:        req.ResourceID,
			RunID:             req.RunID,
			OwnerID:           req.OwnerID,
			Label:             req.Label,
			Parallel:          dec.Parallel,
			RequestedParallel: req.Parallel,
			CreatedAt:         now,
			ExpiresAt:         now.Add(c.ttl()),
		}

		switch err := c.Registry.Put(ctx, res, threshold); {
		case err == nil:
			c.record(ctx, req.ResourceID, dec)
			return dec, nil
		case errors.Is(err, domain.ErrCapacityRevoked):
			// Perdeu a corrida para outro acquire; uso mudou, decide de novo.
			log.Printf("pool: acquire race on resource %d (run %s), retrying decision", req.ResourceID, req.RunID)
		default:
			return domain.Decision{}, err
		}
	}

	// Corrida persistente: trata como capacidade esgotada agora.
	usage, err := c.Registry.CurrentUsage(ctx, req.ResourceID)
	if err != nil {
		return domain.Decision{}, err
	}
	return c.deny(ctx, req.ResourceID, domain.Decision{
		Allowed:           false,
		RequestedParallel: req.Parallel,
		Reason:            domain.ReasonLimitExceeded,
		CurrentUsage:      usage,
		Available:         threshold - usage,
	})
}

// deny completa uma decisão negada com espera estimada e posição na fila.
func (c *Coordinator) deny(ctx context.Context, resourceID int, dec domain.Decision) (domain.Decision, error) {
	active, err := c.Registry.ListActive(ctx, resourceID)
	if err != nil {
		return domain.Decision{}, err
	}
	dec.WaitSeconds = int(c.Estimator.Estimate(len(active)).Seconds())
	dec.QueuePosition = len(active) + 1
	c.record(ctx, resourceID, dec)
	return dec, nil
}

// Release devolve as conexões de um run. Idempotente: reserva inexistente ou
// já expirada é sucesso com zero conexões liberadas.
func (c *Coordinator) Release(ctx context.Context, resourceID int, runID string) (ReleaseResult, error) {
	if resourceID <= 0 {
		return ReleaseResult{}, fmt.Errorf("%w: resource_id is required", domain.ErrInvalidArgument)
	}
	if runID == "" {
		return ReleaseResult{}, fmt.Errorf("%w: run_id is required", domain.ErrInvalidArgument)
	}

	released, err := c.Registry.Remove(ctx, resourceID, runID)
	switch {
	case errors.Is(err, domain.ErrReservationNotFound):
		log.Printf("pool: release of unknown reservation (resource %d, run %s), treating as no-op", resourceID, runID)
		released = 0
	case err != nil:
		return ReleaseResult{}, err
	}

	usage, err := c.Registry.CurrentUsage(ctx, resourceID)
	if err != nil {
		return ReleaseResult{}, err
	}

	return ReleaseResult{Released: true, Parallel: released, CurrentUsage: usage}, nil
}

// Status monta o agregado de um recurso sem mutação de estado.
func (c *Coordinator) Status(ctx context.Context, resourceID int) (ResourceStatus, error) {
	limits, err := c.Catalog.Get(ctx, resourceID)
	if err != nil {
		return ResourceStatus{}, err
	}
	return c.statusFor(ctx, limits)
}

// Summary lista o status de todos os recursos provisionados no catálogo.
func (c *Coordinator) Summary(ctx context.Context) ([]ResourceStatus, error) {
	all, err := c.Catalog.List(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]ResourceStatus, 0, len(all))
	for _, limits := range all {
		st, err := c.statusFor(ctx, limits)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

func (c *Coordinator) statusFor(ctx context.Context, limits domain.Limits) (ResourceStatus, error) {
	active, err := c.Registry.ListActive(ctx, limits.ResourceID)
	if err != nil {
		return ResourceStatus{}, err
	}

	usage := 0
	for _, r := range active {
		usage += r.Parallel
	}

	threshold := limits.Threshold()
	return ResourceStatus{
		ResourceID:     limits.ResourceID,
		Name:           limits.Name,
		MaxConnections: limits.MaxConnections,
		Threshold:      threshold,
		CurrentUsage:   usage,
		Available:      threshold - usage,
		ActiveCount:    len(active),
		Active:         active,
	}, nil
}

func (c *Coordinator) record(ctx context.Context, resourceID int, dec domain.Decision) {
	if c.Stats == nil {
		return
	}
	outcome := domain.OutcomeAdmitted
	switch {
	case !dec.Allowed:
		outcome = domain.OutcomeDenied
	case dec.Downgraded:
		outcome = domain.OutcomeDowngraded
	}
	_ = c.Stats.Record(ctx, domain.DecisionEvent{
		ResourceID: resourceID,
		Outcome:    outcome,
		Parallel:   dec.Parallel,
		At:         c.now(),
	})
}

func (c *Coordinator) ttl() time.Duration {
	if c.TTL > 0 {
		return c.TTL
	}
	return DefaultReservationTTL
}

func (c *Coordinator) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}
