// Package domain define contratos de rate limit e concorrência para a API.
//
// Sem dependência de net/http nem de implementações concretas, para permitir
// testes de unidade puros.
package domain
