// Package apperr defines the error kinds the API distinguishes. Handlers
// map kinds to HTTP statuses with errors.Is instead of string matching.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means a referenced entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrValidation means the request violated an input rule
	// (non-positive amount, wrong role, signer not a party, ...).
	ErrValidation = errors.New("validation failed")
	// ErrInsufficientFunds means a transfer would drive a balance negative.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrInconsistentState means an invariant the store guarantees was
	// violated, e.g. a user without a wallet.
	ErrInconsistentState = errors.New("inconsistent state")
)

// NotFound wraps ErrNotFound with the missing entity's name.
func NotFound(entity string) error {
	return fmt.Errorf("%s: %w", entity, ErrNotFound)
}

// Validation wraps ErrValidation with a detail message.
func Validation(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrValidation)...)
}
