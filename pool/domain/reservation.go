package domain

import (
	"context"
	"time"
)

// Reservation é o registro de conexões em posse de uma execução de batch.
//
// Chave lógica: (ResourceID, RunID). A reserva expira em ExpiresAt para que
// um caller que morreu sem release não vaze capacidade para sempre.
type Reservation struct {
	ResourceID int
	RunID      string // único por tentativa de execução
	OwnerID    string // identificador lógico do job (não-único)
	Label      string // metadado livre (ex: tabela destino)

	Parallel          int // grau concedido
	RequestedParallel int // grau pedido; > Parallel quando houve downgrade

	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired informa se a reserva já passou do TTL no instante dado.
func (r Reservation) Expired(now time.Time) bool {
	return !r.ExpiresAt.After(now)
}

// Downgraded informa se a reserva foi admitida com grau rebaixado.
func (r Reservation) Downgraded() bool {
	return r.RequestedParallel > r.Parallel
}

// Registry é o dono exclusivo das reservas em andamento.
//
// Contratos:
//   - CurrentUsage soma Parallel das reservas não-expiradas do recurso.
//   - Put insere condicionado ao teto: a soma de uso é reconferida de forma
//     atômica com a escrita (seção crítica em memória, script no redis).
//     Falha com ErrDuplicateReservation se o run_id já tem reserva ativa e
//     com ErrCapacityRevoked se a inserção estouraria o teto.
//   - Remove apaga a reserva e devolve o grau liberado; ErrReservationNotFound
//     se já removida/expirada (não-fatal, release é idempotente).
//   - ListActive devolve as reservas não-expiradas (usado pelo estimador de
//     espera e pelo status).
//
// A expiração é aplicada na leitura; varredura física é opcional.
type Registry interface {
	CurrentUsage(ctx context.Context, resourceID int) (int, error)
	Put(ctx context.Context, r Reservation, ceiling int) error
	Remove(ctx context.Context, resourceID int, runID string) (int, error)
	ListActive(ctx context.Context, resourceID int) ([]Reservation, error)
}
