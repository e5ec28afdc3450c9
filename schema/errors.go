package schema

import (
	"errors"
	"fmt"
)

// Error kinds of the model layer. Drivers report existence conditions by
// wrapping (or returning) ErrEntityExists / ErrEntityNotFound so callers can
// test with errors.Is regardless of the backend.
var (
	// ErrConfig is the kind of every schema/model construction failure:
	// malformed field definitions, unknown field types, invalid drivers.
	ErrConfig = errors.New("invalid configuration")

	// ErrEntityExists is returned by insert when a primary key is already
	// present. Expected and recoverable by the caller.
	ErrEntityExists = errors.New("entity already exists")

	// ErrEntityNotFound is returned by update/remove (and updateQuery
	// without upsert) when no entity matches. Expected and recoverable.
	ErrEntityNotFound = errors.New("entity not found")

	// ErrRelation is the kind of every relation-resolution failure,
	// including internal consistency violations.
	ErrRelation = errors.New("relation error")

	// ErrDriver wraps opaque storage-backend failures.
	ErrDriver = errors.New("driver error")
)

// ConfigError reports a schema or model definition problem. Raised at
// construction time; the application must fix its configuration.
type ConfigError struct {
	Model  string
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	switch {
	case e.Model != "" && e.Field != "":
		return fmt.Sprintf("model %q field %q: %s", e.Model, e.Field, e.Reason)
	case e.Model != "":
		return fmt.Sprintf("model %q: %s", e.Model, e.Reason)
	}
	return e.Reason
}

// Is reports whether the target is ErrConfig.
func (e *ConfigError) Is(target error) bool { return target == ErrConfig }

// EntityExistsError reports an insert collision.
type EntityExistsError struct {
	Model  string
	Entity any
}

// Error implements the error interface.
func (e *EntityExistsError) Error() string {
	return fmt.Sprintf("%s entity already exists", e.Model)
}

// Is reports whether the target is ErrEntityExists.
func (e *EntityExistsError) Is(target error) bool { return target == ErrEntityExists }

// EntityNotFoundError reports a write-verb miss.
type EntityNotFoundError struct {
	Model  string
	Entity any
}

// Error implements the error interface.
func (e *EntityNotFoundError) Error() string {
	return fmt.Sprintf("%s entity not found", e.Model)
}

// Is reports whether the target is ErrEntityNotFound.
func (e *EntityNotFoundError) Is(target error) bool { return target == ErrEntityNotFound }

// RelationError reports a relation-definition or resolution failure.
type RelationError struct {
	Model    string
	Relation string
	Reason   string
}

// Error implements the error interface.
func (e *RelationError) Error() string {
	if e.Relation != "" {
		return fmt.Sprintf("relation %q of %s: %s", e.Relation, e.Model, e.Reason)
	}
	return fmt.Sprintf("relation of %s: %s", e.Model, e.Reason)
}

// Is reports whether the target is ErrRelation.
func (e *RelationError) Is(target error) bool { return target == ErrRelation }

// DriverError wraps an opaque backend failure with the backend identity.
type DriverError struct {
	Driver string
	Op     string
	Cause  error
}

// Error implements the error interface.
func (e *DriverError) Error() string {
	return fmt.Sprintf("driver %s: %s: %v", e.Driver, e.Op, e.Cause)
}

// Unwrap returns the underlying backend error.
func (e *DriverError) Unwrap() error { return e.Cause }

// Is reports whether the target is ErrDriver.
func (e *DriverError) Is(target error) bool { return target == ErrDriver }

// IsEntityExists checks if an error is an insert collision.
func IsEntityExists(err error) bool { return errors.Is(err, ErrEntityExists) }

// IsEntityNotFound checks if an error is a write-verb miss.
func IsEntityNotFound(err error) bool { return errors.Is(err, ErrEntityNotFound) }
