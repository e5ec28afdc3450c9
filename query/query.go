// Package query provides the normalization value objects of the Missy core:
// Criteria, Projection, Sort, Update and Options. Each object is built fresh
// from loosely-typed caller input, carries the canonical form drivers
// consume, and knows how to apply itself to entities in-process — the
// reference semantics any driver without native support falls back to.
package query

import (
	"errors"
	"fmt"

	"github.com/missyorm/missy/types"
)

// Model is the slice of a schema model the query layer needs: field
// conversion plus the declared field and primary-key lists. *schema.Model
// satisfies it.
type Model interface {
	// Name returns the model name, used for error context.
	Name() string
	// FieldNames returns the declared field names in definition order.
	FieldNames() []string
	// PrimaryKey returns the declared primary-key field names.
	PrimaryKey() []string
	// ConvertValue converts one field value in the given direction.
	// Unknown fields error unless ignoreUnknown is set, in which case the
	// value passes through unchanged.
	ConvertValue(field string, method types.Method, value any, ignoreUnknown bool) (any, error)
}

// ErrArgument is the kind of every invalid-argument error raised during
// normalization, before any driver call.
var ErrArgument = errors.New("invalid query argument")

// ArgumentError reports malformed caller input: an unknown operator, an
// incomplete primary key, an unusable projection or sort spec.
type ArgumentError struct {
	Model    string
	Field    string
	Operator string
	Reason   string
}

// Error implements the error interface.
func (e *ArgumentError) Error() string {
	msg := e.Reason
	if e.Operator != "" {
		msg = fmt.Sprintf("%s (operator %q)", msg, e.Operator)
	}
	if e.Field != "" {
		msg = fmt.Sprintf("%s (field %q)", msg, e.Field)
	}
	if e.Model != "" {
		return fmt.Sprintf("%s: %s", e.Model, msg)
	}
	return msg
}

// Is reports whether the target is ErrArgument.
func (e *ArgumentError) Is(target error) bool { return target == ErrArgument }

// IsArgument checks if an error is a query-argument error.
func IsArgument(err error) bool { return errors.Is(err, ErrArgument) }
