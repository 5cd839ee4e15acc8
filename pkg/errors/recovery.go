// This file contains panic recovery utilities that convert unexpected panics in
// estimators and search trials into structured errors.

package errors

import (
	"fmt"
	"runtime/debug"

	"github.com/cockroachdb/errors"
)

// PanicError represents an error that was created from a recovered panic.
// It includes the original panic value and stack trace information.
type PanicError struct {
	// PanicValue is the original value passed to panic()
	PanicValue interface{}

	// StackTrace contains the stack trace at the time of panic
	StackTrace string

	// Operation identifies where the panic was recovered
	Operation string
}

// Error implements the error interface for PanicError.
func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in %s: %v", e.Operation, e.PanicValue)
}

// String provides detailed information including stack trace.
func (e *PanicError) String() string {
	return fmt.Sprintf("panic in %s: %v\nStack trace:\n%s",
		e.Operation, e.PanicValue, e.StackTrace)
}

// NewPanicError creates a new PanicError with the given operation context and panic value.
func NewPanicError(operation string, panicValue interface{}) *PanicError {
	return &PanicError{
		PanicValue: panicValue,
		StackTrace: string(debug.Stack()),
		Operation:  operation,
	}
}

// Recover is used with defer to turn a panic into an error assigned to *err.
//
// Usage:
//
//	func (c *Classifier) Fit(X, y mat.Matrix) (err error) {
//	    defer Recover(&err, "Classifier.Fit")
//	    ...
//	}
//
// If the function already returned an error, the panic is attached to it.
func Recover(err *error, operation string) {
	if r := recover(); r != nil {
		panicErr := NewPanicError(operation, r)
		if *err != nil {
			*err = errors.WithSecondaryError(*err, panicErr)
			return
		}
		*err = panicErr
	}
}

// RecoverFit behaves like Recover but reports the panic as a FitError of the
// named estimator, so callers only need to handle one failure type.
func RecoverFit(err *error, estimator string) {
	if r := recover(); r != nil {
		*err = errors.WithStack(&FitError{
			Estimator: estimator,
			Reason:    "panic during training",
			Err:       NewPanicError(estimator+".Fit", r),
		})
	}
}

// SafeExecute executes fn and recovers from any panic, converting it to an error.
//
// Example:
//
//	err := SafeExecute("trial 7", func() error {
//	    return runTrial(ctx, 7)
//	})
func SafeExecute(operation string, fn func() error) (err error) {
	defer Recover(&err, operation)
	return fn()
}
