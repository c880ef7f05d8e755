// Package application contém os casos de uso do controle de admissão:
// a decisão pura (Decide), a estimativa de espera, o coordenador que
// sequencia leitura-decisão-escrita contra o registry e a política de
// retry do lado do caller.
//
// Ele depende apenas do pacote domain e não conhece net/http.
package application
