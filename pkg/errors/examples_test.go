package errors_test

import (
	"fmt"

	"github.com/IGNF/ocsge-pv/pkg/errors"
)

// Example demonstrates basic error creation and checking.
func Example() {
	// Create a not found error
	err := &errors.NotFoundError{
		Resource: "parcel",
		ID:       "590350000A0123",
	}

	// Check error type
	if errors.IsNotFound(err) {
		fmt.Println("Parcel not found")
	}

	// Output: Parcel not found
}

// Example_unresolvedReference shows per-record unresolved handling.
func Example_unresolvedReference() {
	err := errors.NewUnresolvedReferenceError(42, []string{"590350000A0123"}, 1)

	// Unresolved declarations are counted, not fatal
	if errors.IsUnresolved(err) {
		fmt.Println("Declaration marked unresolved")
	}

	// Output: Declaration marked unresolved
}

// Example_scopeLock demonstrates concurrent-run detection.
func Example_scopeLock() {
	err := errors.NewScopeLockedError("pv_2024")

	// A held lock means another run is in progress
	if errors.IsScopeLocked(err) {
		fmt.Println("Another pairing run is active - aborting")
	}

	// Output: Another pairing run is active - aborting
}

// Example_transientRetry demonstrates retryable failure classification.
func Example_transientRetry() {
	err := errors.NewAPIError("graphql", 503, "service unavailable")

	// 5xx responses qualify for the retry budget
	if errors.IsTransient(err) {
		fmt.Println("Retryable failure")
	}

	// Output: Retryable failure
}

// Example_errorChaining shows chained error handling.
func Example_errorChaining() {
	baseErr := errors.New("connection reset by peer")
	transient := errors.NewTransientError("replace links", 3, baseErr)
	err := errors.NewMaterializationError("pv_2024", "replace failed", transient)

	// Both classifications hold through the chain
	if errors.IsMaterialization(err) && errors.IsTransient(err) {
		fmt.Println("Materialization failed on a transient fault")
	}

	// Output: Materialization failed on a transient fault
}

// Example_validationError shows input validation errors.
func Example_validationError() {
	threshold := -0.5
	if threshold < 0 {
		err := &errors.ValidationError{
			Field:   "threshold",
			Value:   threshold,
			Message: "threshold cannot be negative",
		}
		fmt.Println(err.Error())
	}

	// Output: validation failed for field threshold: threshold cannot be negative
}
