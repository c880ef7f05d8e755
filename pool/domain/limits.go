package domain

import (
	"context"
	"fmt"
)

// Limits descreve o teto de conexões de um banco de origem.
//
// Provisionado por operação (fora do core); o controlador só lê.
type Limits struct {
	ResourceID int
	Name       string
	DBType     string // oracle, mysql, postgresql...

	MaxConnections   int
	ThresholdPercent int // 0–100; capacidade usável = Max * Percent / 100

	DefaultParallel int
	MinParallel     int // piso do downgrade; >= 1
}

// Threshold calcula o teto usável em conexões (floor inteiro).
// Empate (uso + pedido == threshold) admite: o limite é inclusivo.
func (l Limits) Threshold() int {
	return l.MaxConnections * l.ThresholdPercent / 100
}

// Validate confere os invariantes: min <= default <= max e percent em 0–100.
func (l Limits) Validate() error {
	if l.MaxConnections <= 0 {
		return fmt.Errorf("%w: max_connections must be > 0", ErrInvalidArgument)
	}
	if l.ThresholdPercent < 0 || l.ThresholdPercent > 100 {
		return fmt.Errorf("%w: threshold_percent must be in 0..100", ErrInvalidArgument)
	}
	if l.MinParallel < 1 {
		return fmt.Errorf("%w: min_parallel must be >= 1", ErrInvalidArgument)
	}
	if l.MinParallel > l.DefaultParallel || l.DefaultParallel > l.MaxConnections {
		return fmt.Errorf("%w: expected min_parallel <= default_parallel <= max_connections", ErrInvalidArgument)
	}
	return nil
}

// Catalog obtém limites por recurso.
//
// Get retorna ErrLimitNotFound quando o recurso não foi provisionado; o
// coordenador trata isso como erro fatal de configuração, nunca como
// admissão liberada. List enumera os recursos provisionados (usado pelo
// status agregado). O catálogo é read-only para o controlador; mutação é
// assunto administrativo, fora do core. A implementação pode ler de
// memória, redis, etc.
type Catalog interface {
	Get(ctx context.Context, resourceID int) (Limits, error)
	List(ctx context.Context) ([]Limits, error)
}
