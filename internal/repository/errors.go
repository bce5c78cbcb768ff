package repository

import (
	"errors"
)

var (
	ErrCampaignNotFound    = errors.New("campaign not found")
	ErrReservationNotFound = errors.New("reservation not found")
	ErrAccountNotFound     = errors.New("wallet account not found")
	ErrTransactionNotFound = errors.New("wallet transaction not found")

	// ErrStatusConflict means a conditional status update matched no row:
	// another writer moved the record first, or the transition is illegal.
	ErrStatusConflict = errors.New("status conflict")
	// ErrQuotaFull means the guarded increment found no free slot.
	ErrQuotaFull        = errors.New("campaign quota full")
	ErrCounterUnderflow = errors.New("reservation counter already zero")
	ErrBalanceNotEnough = errors.New("balance not enough")
	ErrOptimisticLock   = errors.New("optimistic lock conflict")
)
