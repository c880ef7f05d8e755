package domain

import "errors"

// Erros sentinela do domínio. As camadas de application e infra embrulham
// com fmt.Errorf("%w") e o adapter HTTP despacha com errors.Is.
var (
	// ErrInvalidArgument indica entrada malformada do caller (ex: parallel <= 0,
	// run_id vazio). Não adianta repetir a chamada sem corrigir o pedido.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrLimitNotFound indica recurso sem limite provisionado no catálogo.
	// Erro de configuração: admitir sem limite seria admissão ilimitada.
	ErrLimitNotFound = errors.New("connection limits not found")

	// ErrReservationNotFound indica release de uma reserva inexistente ou já
	// expirada. Não é fatal: release é idempotente.
	ErrReservationNotFound = errors.New("reservation not found")

	// ErrDuplicateReservation indica acquire repetido com o mesmo run_id
	// enquanto a reserva anterior ainda está ativa.
	ErrDuplicateReservation = errors.New("reservation already active")

	// ErrCapacityRevoked indica que um Put condicional perdeu a corrida: entre a
	// leitura de uso e a escrita, outro acquire consumiu a capacidade.
	ErrCapacityRevoked = errors.New("capacity no longer available")

	// ErrStoreUnavailable classifica falhas transitórias do store (timeout,
	// conexão). O caller pode repetir com backoff.
	ErrStoreUnavailable = errors.New("registry store unavailable")
)
