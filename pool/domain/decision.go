package domain

import (
	"context"
	"time"
)

// Razões retornadas junto com a decisão, no formato que o caller já espera.
const (
	ReasonPartialCapacity = "partial_capacity_available"
	ReasonLimitExceeded   = "connection_limit_exceeded"
)

// Decision é o resultado transitório de uma checagem de admissão.
// Não é persistida: Admit/Downgrade geram uma Reservation, Deny não muda nada.
type Decision struct {
	Allowed bool

	// Grau concedido quando Allowed; igual ao pedido em Admit,
	// menor (e >= MinParallel) em Downgrade.
	Parallel          int
	Downgraded        bool
	RequestedParallel int

	// Preenchidos quando negado: quanto dormir e posição informativa na fila.
	// Não há fila real; a ordem entre callers esperando não é garantida.
	WaitSeconds   int
	QueuePosition int

	Reason       string
	CurrentUsage int
	Available    int
}

// Outcome classifica a decisão para fins de estatística.
type Outcome string

const (
	OutcomeAdmitted   Outcome = "admitted"
	OutcomeDowngraded Outcome = "downgraded"
	OutcomeDenied     Outcome = "denied"
)

// DecisionEvent é o evento registrado a cada decisão de admissão.
//
// Propositalmente agnóstico de transporte. Cuidado com cardinalidade ao
// persistir (recursos são poucos; run_ids não entram no evento).
type DecisionEvent struct {
	ResourceID int
	Outcome    Outcome
	Parallel   int
	At         time.Time
}

// StatsStore é a estratégia de persistência das estatísticas de decisão.
//
// Implementações podem gravar em redis, memória, etc. O adapter trata erro
// como best-effort (não derruba a request por falha de estatística).
type StatsStore interface {
	Record(ctx context.Context, ev DecisionEvent) error
}
