package domain

import "errors"

// Validation and state errors: surfaced straight to the caller, state
// unchanged. Transient I/O and irrecoverable settlement errors live next
// to the gateway package that raises them (internal/gateway.Error).
var (
	ErrBadSignature          = errors.New("bad signature")
	ErrHashMismatch          = errors.New("preimage does not match secret hash")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrPriceOutOfBand        = errors.New("quoted price out of band")
	ErrNotFound              = errors.New("order not found")
	ErrWrongStatus           = errors.New("order in wrong status for this operation")
	ErrNotOwningResolver     = errors.New("resolver does not hold this order's active commitment")
	ErrNotRescuable          = errors.New("order is not rescuable")
	ErrEscrowUnderfunded     = errors.New("escrow deposit below configured minimum")
	ErrFundsNotVerified      = errors.New("escrow balance verification failed")
)
