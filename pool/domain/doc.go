// Package domain define contratos e tipos de domínio para o controle de
// admissão do pool de conexões.
//
// Este pacote não depende de net/http nem de implementações concretas
// (memória/redis). A intenção é permitir testes de unidade puros e
// desacoplar as regras de admissão dos detalhes de infraestrutura.
package domain
