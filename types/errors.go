package types

import (
	"errors"
	"fmt"
)

// Error kinds shared by all type handlers.
var (
	// ErrConversion is the kind of every value-coercion failure.
	ErrConversion = errors.New("type conversion failed")

	// ErrRegistration is the kind of every type-registration failure.
	ErrRegistration = errors.New("type registration failed")
)

// ConversionError reports a value a handler could not coerce.
type ConversionError struct {
	Type  string
	Field string
	Value any
	Cause error
}

// Error implements the error interface.
func (e *ConversionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("cannot convert field %q to %s: %v", e.Field, e.Type, e.Cause)
	}
	return fmt.Sprintf("cannot convert field %q value %v to %s", e.Field, e.Value, e.Type)
}

// Unwrap returns the underlying cause, if any.
func (e *ConversionError) Unwrap() error { return e.Cause }

// Is reports whether the target is ErrConversion.
func (e *ConversionError) Is(target error) bool { return target == ErrConversion }

// RegistrationError reports an invalid type registration.
type RegistrationError struct {
	Type   string
	Reason string
	Cause  error
}

// Error implements the error interface.
func (e *RegistrationError) Error() string {
	return fmt.Sprintf("cannot register type %q: %s", e.Type, e.Reason)
}

// Unwrap returns the underlying cause, if any.
func (e *RegistrationError) Unwrap() error { return e.Cause }

// Is reports whether the target is ErrRegistration.
func (e *RegistrationError) Is(target error) bool { return target == ErrRegistration }

// IsConversion checks if an error is a type-conversion error.
func IsConversion(err error) bool { return errors.Is(err, ErrConversion) }
