package errors

import "errors"

var (
	ErrNotFound = errors.New("booking not found")

	ErrInvalidID = errors.New("invalid booking ID format")

	ErrTransactionNotFound = errors.New("payment transaction not found")

	// ErrStaleStatus reports a guarded write whose expected prior status
	// no longer matched; the booking was mutated concurrently.
	ErrStaleStatus = errors.New("booking status changed concurrently")
)
