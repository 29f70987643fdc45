/*
errors.go - Centralized error types for the commission engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers branch on the sentinels with errors.Is and read the structured
  variants with errors.As when they need the details.

ERROR CATEGORIES:
  1. Query errors - malformed resolve input (never retried)
  2. Business errors - no configured rate for a query ("not configured")
  3. Grid errors - entry validation and lookup failures in stores

USAGE:
  result, err := commission.Resolve(q)
  if errors.Is(err, commission.ErrNoMatchingGrid) {
      // prompt an admin to create a rate
  }

SEE ALSO:
  - resolver.go: Returns query and business errors
  - types.go: GridEntry.Validate returns EntryValidationError
  - store.go: Store contract for ErrEntryNotFound
*/
package commission

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidInput is returned when a query is malformed: negative premium,
	// missing provider or product type.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNoMatchingGrid is returned when no active grid entry matches a query.
	// This is a business condition, not a system fault.
	ErrNoMatchingGrid = errors.New("no matching commission grid")

	// ErrEntryNotFound is returned when a grid entry ID does not exist in scope.
	ErrEntryNotFound = errors.New("grid entry not found")

	// ErrInvalidEntry is returned when a grid entry breaks a data invariant.
	ErrInvalidEntry = errors.New("invalid grid entry")

	// ErrScopeRequired is returned when a store call is made without a scope.
	ErrScopeRequired = errors.New("scope required")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidInputError names the offending query field.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input: %s %s", e.Field, e.Reason)
}

func (e *InvalidInputError) Unwrap() error { return ErrInvalidInput }

// NoMatchingGridError echoes the query that found no rate.
type NoMatchingGridError struct {
	Provider       string
	ProductType    string
	ProductSubtype string
	Premium        decimal.Decimal
}

func (e *NoMatchingGridError) Error() string {
	subtype := e.ProductSubtype
	if subtype == "" {
		subtype = "*"
	}
	return fmt.Sprintf("no matching commission grid: provider=%s product=%s/%s premium=%s",
		e.Provider, e.ProductType, subtype, e.Premium.String())
}

func (e *NoMatchingGridError) Unwrap() error { return ErrNoMatchingGrid }

// EntryValidationError lists every invariant a grid entry breaks.
type EntryValidationError struct {
	EntryID  string
	Problems []string
}

func (e *EntryValidationError) Error() string {
	return fmt.Sprintf("invalid grid entry %q: %v", e.EntryID, e.Problems)
}

func (e *EntryValidationError) Unwrap() error { return ErrInvalidEntry }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrInvalidEntry) ||
		errors.Is(err, ErrScopeRequired)
}

// IsNotFound returns true if the error indicates a missing grid entry.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEntryNotFound)
}

// IsNotConfigured returns true if no rate is configured for the query.
func IsNotConfigured(err error) bool {
	return errors.Is(err, ErrNoMatchingGrid)
}
