// Package ratelimit fornece os middlewares HTTP que protegem a API do
// gatekeeper contra rajadas de callers: rate limit por chave (token bucket)
// e teto de requisições em voo.
//
// Camadas:
//
//   - domain: contratos (Limiter, LimiterStore, SlotPool), sem net/http
//   - application: casos de uso (decisão allow/deny, acquire com timeout)
//   - infra: token bucket com x/time/rate e semáforo por channel
//   - ratelimit (este pacote): middlewares + extração de chave do caller
//
// O gatekeeper em si já serializa a admissão no registry; estes middlewares
// só evitam que um orquestrador em loop de retry agressivo monopolize o
// endpoint. Variáveis de ambiente do binário gatekeeper (cmd/gatekeeper)
// controlam o comportamento: API_RATE_RPS, API_RATE_BURST,
// API_CONCURRENCY_MAX e API_CONCURRENCY_TIMEOUT.
package ratelimit
