package service

import (
	"errors"
)

// Business errors returned by the services. Handlers map each one to a
// response code; callers match with errors.Is.
var (
	ErrCampaignNotFound     = errors.New("campaign not found")
	ErrCampaignClosed       = errors.New("campaign is not accepting reservations")
	ErrQuotaExceeded        = errors.New("campaign quota exceeded")
	ErrAlreadyReserved      = errors.New("creator already holds an active reservation for this campaign")
	ErrReservationNotFound  = errors.New("reservation not found")
	ErrReservationExpired   = errors.New("reservation expired")
	ErrReservationNotActive = errors.New("reservation status does not allow this operation")
	ErrCampaignStatus       = errors.New("campaign status does not allow this operation")
	ErrUnauthorized         = errors.New("caller does not own this resource")

	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrBelowMinimum        = errors.New("amount below minimum")
	ErrAboveMaximum        = errors.New("amount above maximum")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrTransactionNotFound = errors.New("wallet transaction not found")
	ErrTransactionSettled  = errors.New("wallet transaction already settled")

	// ErrTransientConflict means the operation lost a lock or version race too
	// many times. Nothing was written; the caller may retry.
	ErrTransientConflict = errors.New("concurrent update, please retry")
)
