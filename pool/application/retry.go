package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"pool-gatekeeper/pool/domain"
)

// ErrRetriesExhausted indica que o caller esgotou as tentativas de acquire
// sem ser admitido. É falha do batch, não do controlador.
var ErrRetriesExhausted = errors.New("acquire retries exhausted")

// DefaultMaxAttempts replica o limite do orquestrador original.
const DefaultMaxAttempts = 20

// Acquirer é o que a política de retry precisa do coordenador.
type Acquirer interface {
	Acquire(ctx context.Context, req AcquireRequest) (domain.Decision, error)
}

// RetryPolicy descreve o loop de espera do lado do caller: em Deny dorme o
// wait_seconds sugerido; em erro transitório do store aplica backoff
// exponencial; desiste depois de MaxAttempts.
//
// No original esse loop vivia dentro do orquestrador; aqui é configuração
// explícita em vez de sleep hardcoded.
type RetryPolicy struct {
	// MaxAttempts conta toda ida ao controlador (negada ou transitória).
	// <= 0 usa DefaultMaxAttempts.
	MaxAttempts int

	// NewBackoff cria o cronograma usado em erros transitórios.
	// nil usa backoff exponencial padrão limitado a 1 minuto por espera.
	NewBackoff func() backoff.BackOff

	// Sleep é injetável em teste; nil usa espera real cancelável por ctx.
	Sleep func(ctx context.Context, d time.Duration) error
}

// AcquireWithRetry tenta adquirir até ser admitido, esgotar as tentativas ou
// o contexto encerrar. Erros não-transitórios (argumento inválido, limite
// não provisionado, run_id duplicado) interrompem na hora.
func AcquireWithRetry(ctx context.Context, a Acquirer, req AcquireRequest, p RetryPolicy) (domain.Decision, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	var bo backoff.BackOff
	if p.NewBackoff != nil {
		bo = p.NewBackoff()
	} else {
		exp := backoff.NewExponentialBackOff()
		exp.MaxInterval = time.Minute
		bo = exp
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		dec, err := a.Acquire(ctx, req)
		switch {
		case err == nil && dec.Allowed:
			return dec, nil

		case err == nil:
			// Negado: dorme o que o controlador sugeriu e tenta de novo.
			bo.Reset()
			if attempt == maxAttempts {
				break
			}
			if err := sleep(ctx, time.Duration(dec.WaitSeconds)*time.Second); err != nil {
				return domain.Decision{}, err
			}

		case errors.Is(err, domain.ErrStoreUnavailable):
			d := bo.NextBackOff()
			if d == backoff.Stop || attempt == maxAttempts {
				return domain.Decision{}, err
			}
			if err := sleep(ctx, d); err != nil {
				return domain.Decision{}, err
			}

		default:
			return domain.Decision{}, err
		}
	}

	return domain.Decision{}, fmt.Errorf("%w after %d attempts (resource %d, run %s)",
		ErrRetriesExhausted, maxAttempts, req.ResourceID, req.RunID)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
