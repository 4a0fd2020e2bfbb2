package object

import (
	"fmt"
	"strings"

	"go.followtheprocess.codes/stache/internal/ref"
	"go.followtheprocess.codes/stache/internal/types"
)

// TypeCheck is the result of type checking an object.
type TypeCheck struct {
	// Message describes the failure, empty on success.
	Message string

	// OK is true if the check passed.
	OK bool
}

// Success returns a passing [TypeCheck].
func Success() TypeCheck {
	return TypeCheck{OK: true}
}

// Failure returns a failing [TypeCheck] with a formatted message.
func Failure(format string, args ...any) TypeCheck {
	return TypeCheck{Message: fmt.Sprintf(format, args...)}
}

// String implements [fmt.Stringer] for a [TypeCheck].
func (c TypeCheck) String() string {
	if c.OK {
		return "TypeCheck(OK)"
	}

	return "TypeCheck(FAILED): " + c.Message
}

// UnresolvedError is returned when references that had to resolve did not.
type UnresolvedError struct {
	Refs []ref.Ref // The unresolved references, without duplicates
}

// Error implements the error interface for [UnresolvedError].
func (e *UnresolvedError) Error() string {
	placeholders := make([]string, 0, len(e.Refs))
	for _, r := range e.Refs {
		placeholders = append(placeholders, r.Placeholder())
	}

	return fmt.Sprintf("%s: %s", ErrUnresolved, strings.Join(placeholders, ", "))
}

// Is reports whether target is [ErrUnresolved].
func (e *UnresolvedError) Is(target error) bool {
	return target == ErrUnresolved
}

// TypeCheckError is returned when a fully resolved value fails its type check.
type TypeCheckError struct {
	Type  *types.Type // The type of the value that was checked
	Check TypeCheck   // The failing check
}

// Error implements the error interface for [TypeCheckError].
func (e *TypeCheckError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrTypeCheck, e.Type, e.Check.Message)
}

// Is reports whether target is [ErrTypeCheck].
func (e *TypeCheckError) Is(target error) bool {
	return target == ErrTypeCheck
}
