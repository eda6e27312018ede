package errors

import "errors"

// Re-exports so callers don't need to import both this package and the
// standard library errors package.

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool { return errors.Is(err, target) }

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool { return errors.As(err, target) }

// Unwrap returns the result of calling the Unwrap method on err.
func Unwrap(err error) error { return errors.Unwrap(err) }
