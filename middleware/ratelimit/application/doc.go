// Package application contém os casos de uso de proteção da API: decisão
// allow/deny por chave e aquisição de vaga com timeout.
//
// Depende apenas do pacote domain e não conhece net/http.
package application
