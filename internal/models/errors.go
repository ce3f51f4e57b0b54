package models

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the auth, repository and service
// packages wraps exactly one of these.
var (
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not found")
	ErrAlreadyExists      = errors.New("already exists")
	ErrInvalidQuantity    = errors.New("quantity must be at least 1")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrInvalidCredentials = errors.New("invalid name or password")
	ErrValidation         = errors.New("validation failed")
	ErrStorageFailure     = errors.New("storage failure")
)

var (
	ErrAccountNotFound = fmt.Errorf("account %w", ErrNotFound)
	ErrListingNotFound = fmt.Errorf("listing %w", ErrNotFound)
	ErrAccountExists   = fmt.Errorf("account name %w", ErrAlreadyExists)
	ErrNegativePrice   = fmt.Errorf("%w: price must not be negative", ErrValidation)
	ErrNegativeStock   = fmt.Errorf("%w: stock must not be negative", ErrValidation)
	ErrEmptyOrder      = fmt.Errorf("%w: order has no lines", ErrValidation)
	ErrMissingPassword = fmt.Errorf("%w: password is required", ErrValidation)
)

// StorageError wraps err as a storage failure of op.
func StorageError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorageFailure, err)
}
