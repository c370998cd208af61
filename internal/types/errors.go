package types

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by every layer. The store surfaces only
// ErrNotFound/ErrStorageFailure; services add validation and translate
// everything into one of these before it reaches a caller.
var (
	ErrNotFound          = errors.New("resource not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidTransition = errors.New("invalid order status transition")
	ErrUnknownSymbol     = errors.New("unknown symbol")
	ErrStorageFailure    = errors.New("storage failure")
)

// StorageFailure wraps a database error into the taxonomy while keeping the
// underlying cause available for logs and errors.Is checks.
func StorageFailure(err error) error {
	return fmt.Errorf("%w: %w", ErrStorageFailure, err)
}
