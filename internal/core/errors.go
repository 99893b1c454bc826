package core

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is wrapped by every validation failure. Invalid input is
	// never persisted.
	ErrInvalidInput = errors.New("invalid input")

	// ErrStorageUnavailable is wrapped by every failure of the backing store.
	// The store does not retry.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

var (
	ErrEmptyCategory  = fmt.Errorf("%w: empty category", ErrInvalidInput)
	ErrInvalidAmount  = fmt.Errorf("%w: amount is not a number", ErrInvalidInput)
	ErrNegativeAmount = fmt.Errorf("%w: amount must not be negative", ErrInvalidInput)
	ErrZeroAmount     = fmt.Errorf("%w: amount must be greater than zero", ErrInvalidInput)
	ErrUnknownMonth   = fmt.Errorf("%w: unknown month", ErrInvalidInput)
)

// StorageError marks err as a storage failure of operation op.
func StorageError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorageUnavailable, op, err)
}
