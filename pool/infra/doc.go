// Package infra contém implementações concretas (infraestrutura) para os
// contratos definidos no pacote domain.
//
// Exemplos:
//   - MemoryRegistry / MemoryCatalog: mapas com mutex, para testes e um
//     deployment de instância única
//   - RedisRegistry / RedisCatalog: estado compartilhado entre instâncias,
//     com TTL nativo e admissão condicional via script Lua
//   - MemoryStatsStore / RedisStatsStore: contadores de decisão best-effort
package infra
