package domain

import "errors"

// Every consumer handler classifies its failure into one of these before
// returning to the queue runtime. Permanent errors are acknowledged without
// retry; anything else is retried up to the queue's budget and dead-lettered.
var (
	ErrValidation           = errors.New("validation failed")
	ErrInvalidAmount        = errors.New("amount must be greater than zero")
	ErrDuplicateTransaction = errors.New("duplicate transaction reference")
	ErrInsufficientBalance  = errors.New("insufficient wallet balance")
	ErrNotFound             = errors.New("not found")
	ErrAlreadyCharging      = errors.New("device already has an active charging session")
	ErrTooManyRequests      = errors.New("start requested again too soon")
	ErrDeviceTimeout        = errors.New("device did not respond in time, verify status")
	ErrDeviceUnreachable    = errors.New("device unreachable")
)

// Permanent reports whether err must not be retried. DuplicateTransaction and
// InsufficientBalance are terminal business outcomes, not infrastructure
// failures; retrying them can only repeat the same answer.
func Permanent(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrDuplicateTransaction) ||
		errors.Is(err, ErrInsufficientBalance)
}
