// Package pool fornece o adapter HTTP do gatekeeper de conexões: a API
// acquire/release/status que arbitra o uso do pool de um banco de origem
// entre execuções de batch concorrentes.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos (limites, reservas, decisão), sem net/http
//   - application: decisão de admissão, estimador de espera, coordenador e
//     política de retry do caller
//   - infra: implementações concretas (memória e redis) de catálogo,
//     registry e estatísticas
//   - pool (este pacote): handler HTTP + parse de hint + tradução de erros
//     para status/corpo JSON
//
// Fluxo de um acquire:
//
//  1. O caller manda {action:"acquire", resource_id, run_id,
//     requested_parallelism} (ou um hint Oracle no lugar do inteiro)
//  2. O coordenador lê limites e uso, decide admitir/rebaixar/negar e grava
//     a reserva com TTL quando admite
//  3. Negado => o corpo traz wait_seconds e o caller dorme e tenta de novo
//     (com limite de tentativas do lado dele)
//  4. release devolve as conexões; reserva esquecida expira pelo TTL
//
// A posição de fila retornada em Deny é informativa: não existe fila real e
// a ordem entre callers esperando não é garantida.
package pool
