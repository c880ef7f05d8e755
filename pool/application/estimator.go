package application

import "time"

// Defaults do estimador de espera.
const (
	DefaultMinWait = 30 * time.Second
	DefaultMaxWait = 300 * time.Second
)

// WaitEstimator estima quanto um caller negado deve dormir antes de tentar
// de novo, em função de quantas reservas estão ativas no recurso.
//
// O chute é grosseiro de propósito: base fixa mais um fator de fila a cada
// dez reservas ativas, limitado. Sem telemetria histórica de duração não dá
// para fazer melhor; o contrato que importa é o clamp em [MinWait, MaxWait]
// e a monotonicidade (mais reservas ativas => espera igual ou maior).
type WaitEstimator struct {
	MinWait time.Duration
	MaxWait time.Duration
}

// Estimate devolve a espera sugerida para um recurso com `active` reservas.
// Sempre dentro de [MinWait, MaxWait]; zero reservas => MinWait.
func (e WaitEstimator) Estimate(active int) time.Duration {
	min, max := e.bounds()
	if active <= 0 {
		return min
	}

	queueFactor := active / 10
	if queueFactor > 5 {
		queueFactor = 5
	}

	estimated := min + time.Duration(queueFactor)*10*time.Second
	if estimated > max {
		return max
	}
	if estimated < min {
		return min
	}
	return estimated
}

func (e WaitEstimator) bounds() (time.Duration, time.Duration) {
	min, max := e.MinWait, e.MaxWait
	if min <= 0 {
		min = DefaultMinWait
	}
	if max <= 0 {
		max = DefaultMaxWait
	}
	if max < min {
		max = min
	}
	return min, max
}
