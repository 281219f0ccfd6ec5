// Package errors provides common domain error types for the meetscribe
// transcript engine.
//
// This package defines sentinel errors for domain conditions like "invalid
// state" or "unresolved descriptor" that are shared across packages. Using
// typed errors enables consistent error handling with errors.Is() checks.
//
// Usage:
//
//	import mserrors "github.com/wealthpath/meetscribe/pkg/errors"
//
//	// Return a domain error
//	return mserrors.ErrInvalidState
//
//	// Check for domain errors
//	if mserrors.IsInvalidState(err) {
//	    // handle invalid state transition
//	}
package errors

import "errors"

// Domain errors - common sentinel errors for domain conditions.
var (
	// ErrNotFound indicates the requested meeting or transcript was not found.
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates invalid input or a missing required field.
	ErrValidation = errors.New("validation error")

	// ErrInvalidState indicates the operation is not valid for the current
	// transcript or fetch state.
	ErrInvalidState = errors.New("invalid state")

	// ErrUnresolved indicates a provider descriptor could not be matched to
	// any known meeting.
	ErrUnresolved = errors.New("descriptor unresolved")

	// ErrAttemptsExhausted indicates the fetch attempt budget has been spent
	// and no further automatic retries will be made.
	ErrAttemptsExhausted = errors.New("fetch attempts exhausted")
)

// IsNotFound reports whether any error in err's chain is ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation reports whether any error in err's chain is ErrValidation.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsInvalidState reports whether any error in err's chain is ErrInvalidState.
func IsInvalidState(err error) bool {
	return errors.Is(err, ErrInvalidState)
}

// IsUnresolved reports whether any error in err's chain is ErrUnresolved.
func IsUnresolved(err error) bool {
	return errors.Is(err, ErrUnresolved)
}

// IsAttemptsExhausted reports whether any error in err's chain is
// ErrAttemptsExhausted.
func IsAttemptsExhausted(err error) bool {
	return errors.Is(err, ErrAttemptsExhausted)
}
