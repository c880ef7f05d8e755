// Package infra contém as implementações concretas dos contratos do pacote
// domain: token bucket por chave (golang.org/x/time/rate) e semáforo de
// vagas baseado em channel.
package infra
