package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation signals a malformed request or input.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound signals a missing resource or one the caller does not own.
	ErrNotFound = errors.New("not found")
	// ErrExpired signals a resource that exists but is no longer readable.
	ErrExpired = errors.New("expired")
	// ErrAlreadyExists signals a duplicate resource.
	ErrAlreadyExists = errors.New("already exists")
	// ErrInsufficientFunds signals a wallet balance below the requested debit.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrContactUnavailable signals a person who does not accept contact requests.
	ErrContactUnavailable = errors.New("contact unavailable")
	// ErrTransactionFailure signals a storage failure inside a transaction. Retryable.
	ErrTransactionFailure = errors.New("transaction failed")
	// ErrUnauthorized signals a missing or invalid caller identity.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")

	// ErrRateLimited signals a rate limit hit.
	ErrRateLimited = errors.New("rate limited")
	// ErrEmbeddingQuotaExceeded signals an exhausted embedding budget.
	ErrEmbeddingQuotaExceeded = errors.New("embedding quota exceeded")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
)

// ValidationError carries the offending field alongside ErrValidation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrValidation.Error(), e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError creates a field-level validation error.
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
