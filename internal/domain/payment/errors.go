package payment

import "errors"

var (
	ErrNotFound = errors.New("payment not found")
	// ErrStateConflict means a conditional transition found the payment
	// in a different state than expected. Under concurrent sweeps this
	// is a benign race: the caller logs and moves on.
	ErrStateConflict = errors.New("payment state conflict")
	// ErrAlreadySettled guards completed payments against manual retry
	// or mark-paid.
	ErrAlreadySettled = errors.New("payment already settled")
)
