package application

import (
	"fmt"

	"pool-gatekeeper/pool/domain"
)

// Decide avalia se um pedido de paralelismo cabe no teto do recurso.
//
// Função pura: nenhum efeito além do retorno. O coordenador é quem registra
// a reserva e preenche wait_seconds/queue_position quando a resposta é Deny.
//
// Regras:
//  1. uso + pedido <= threshold  => admite com o grau pedido (empate admite).
//  2. Senão, rebaixa por metades sucessivas com piso em MinParallel; o
//     primeiro grau que couber é concedido como downgrade.
//  3. Se nem o piso couber, nega.
func Decide(limits domain.Limits, currentUsage, requested int) (domain.Decision, error) {
	if requested <= 0 {
		return domain.Decision{}, fmt.Errorf("%w: requested parallelism must be > 0, got %d", domain.ErrInvalidArgument, requested)
	}

	threshold := limits.Threshold()

	if currentUsage+requested <= threshold {
		return domain.Decision{
			Allowed:           true,
			Parallel:          requested,
			RequestedParallel: requested,
			CurrentUsage:      currentUsage + requested,
			Available:         threshold - currentUsage - requested,
		}, nil
	}

	if adjusted, ok := findAcceptableParallel(currentUsage, threshold, requested, limits.MinParallel); ok {
		return domain.Decision{
			Allowed:           true,
			Parallel:          adjusted,
			Downgraded:        true,
			RequestedParallel: requested,
			Reason:            domain.ReasonPartialCapacity,
			CurrentUsage:      currentUsage + adjusted,
			Available:         threshold - currentUsage - adjusted,
		}, nil
	}

	return domain.Decision{
		Allowed:           false,
		RequestedParallel: requested,
		Reason:            domain.ReasonLimitExceeded,
		CurrentUsage:      currentUsage,
		Available:         threshold - currentUsage,
	}, nil
}

// findAcceptableParallel procura um grau rebaixado que caiba no teto.
//
// Invariante do loop: adjusted decresce estritamente a cada iteração
// (metade inteira), com clamp no piso; ao chegar no piso sem caber, para.
func findAcceptableParallel(currentUsage, threshold, requested, minParallel int) (int, bool) {
	adjusted := requested
	for {
		adjusted /= 2
		if adjusted < minParallel {
			adjusted = minParallel
		}
		if currentUsage+adjusted <= threshold {
			return adjusted, true
		}
		if adjusted <= minParallel {
			return 0, false
		}
	}
}
