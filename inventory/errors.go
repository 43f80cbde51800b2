/*
errors.go - Centralized error types for the inventory engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers distinguish retryable (storage) from non-retryable (validation,
  insufficient stock, conflicts) failures via errors.Is and the helpers
  at the bottom of this file.

ERROR CATEGORIES:
  1. Validation errors - malformed/out-of-range input, unknown references
  2. Stock errors      - egress that would drive a balance negative
  3. Conflict errors   - duplicate SKU, deleting a referenced product
  4. Not-found errors  - unknown id on read/update/delete
  5. Storage errors    - underlying store unavailable or I/O failure

USAGE:
  if errors.Is(err, inventory.ErrInsufficientStock) { ... }

  var stockErr *inventory.InsufficientStockError
  if errors.As(err, &stockErr) {
      fmt.Println(stockErr.Available, stockErr.Requested)
  }

SEE ALSO:
  - ledger.go: Returns validation and storage errors
  - sales.go: Returns InsufficientStockError
  - catalog.go: Returns conflict and not-found errors
*/
package inventory

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInsufficientStock is returned when an egress would drive a product's
	// balance negative.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrValidation is the root of all input validation failures.
	ErrValidation = errors.New("validation failed")

	// ErrDuplicateSKU is returned when a product SKU is already taken.
	ErrDuplicateSKU = errors.New("duplicate sku")

	// ErrDuplicateIdempotencyKey is returned when a movement with the same
	// idempotency key already exists. Expected behavior for retries.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// ErrProductNotFound is returned when a referenced product doesn't exist.
	ErrProductNotFound = errors.New("product not found")

	// ErrProductReferenced is returned when deleting a product that has
	// ledger entries. The ledger is immutable, so deletion fails rather
	// than cascading.
	ErrProductReferenced = errors.New("product referenced by ledger")

	// ErrStorage wraps failures of the underlying store.
	ErrStorage = errors.New("storage failure")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError reports a malformed or out-of-range input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// InsufficientStockError provides details about a stock shortage.
type InsufficientStockError struct {
	ProductID int64
	Available int64
	Requested int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: available %d, requested %d",
		e.ProductID, e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// ConflictError reports a uniqueness or reference conflict.
type ConflictError struct {
	Resource string
	Detail   string
	Cause    error // ErrDuplicateSKU or ErrProductReferenced
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict on %s: %s", e.Resource, e.Detail)
}

func (e *ConflictError) Unwrap() error { return e.Cause }

// StorageError wraps an underlying store failure so callers can treat it
// as retryable without inspecting driver-specific errors.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return ErrStorage }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStorage)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrDuplicateSKU) ||
		errors.Is(err, ErrDuplicateIdempotencyKey) ||
		errors.Is(err, ErrProductReferenced)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrProductNotFound)
}

// IsConflict returns true for uniqueness/reference conflicts.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicateSKU) ||
		errors.Is(err, ErrProductReferenced) ||
		errors.Is(err, ErrDuplicateIdempotencyKey)
}
