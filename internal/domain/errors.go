package domain

import "errors"

var (
	ErrInsufficientFunds       = errors.New("insufficient funds")
	ErrNoSuchOrder             = errors.New("no such order")
	ErrInvalidMarketOrCurrency = errors.New("invalid market or currency")
	ErrInvalidOrder            = errors.New("invalid order")
	ErrInvalidAmount           = errors.New("invalid amount")

	// ErrSettlementIncomplete means the book was mutated but at least one
	// ledger credit failed; the case is left for reconciliation.
	ErrSettlementIncomplete = errors.New("settlement incomplete")

	ErrActorStopped   = errors.New("market actor stopped")
	ErrRegistryClosed = errors.New("market registry closed")
)
