package domain

import "time"

// Key identifica o caller (id do orquestrador, header, IP).
type Key string

// Limiter decide se uma ação é permitida agora.
// A infra implementa com token bucket (golang.org/x/time/rate).
type Limiter interface {
	Allow() bool
}

// LimiterStore obtém um limiter por chave. A implementação pode manter
// cache, TTL de inatividade, etc.
type LimiterStore interface {
	Get(Key) Limiter
}

// Decision é o resultado da checagem de rate limit.
type Decision struct {
	Allowed bool
	// RetryAfter vai no header Retry-After quando bloquear. 0 = sem sugestão.
	RetryAfter time.Duration
}
