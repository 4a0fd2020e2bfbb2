package object

import (
	"fmt"
	"reflect"
	"strconv"

	"go.followtheprocess.codes/stache/internal/env"
	"go.followtheprocess.codes/stache/internal/ref"
	"go.followtheprocess.codes/stache/internal/types"
)

// List is an ordered sequence of objects of a single element type.
//
// Lists support indexed lookup by integer position e.g. "[0]".
type List struct {
	typ    *types.Type
	values []Object
	scopes env.Chain
}

// NewList returns a new [List] of type t, which must be a list type, from a slice
// or array of raw values.
func NewList(t *types.Type, values any) (*List, error) {
	o, err := New(t, values)
	if err != nil {
		return nil, err
	}

	list, ok := o.(*List)
	if !ok {
		return nil, fmt.Errorf("%s is not a list type", t)
	}

	return list, nil
}

// buildList converts a slice or array to a list of type t.
func buildList(t *types.Type, rv reflect.Value, visiting map[node]struct{}) (*List, error) {
	if t.Kind() != types.KindList {
		return nil, fmt.Errorf("%s is not a list type", t)
	}

	if !rv.IsValid() {
		return &List{typ: t}, nil
	}

	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("%w '%v' to %s: expected a sequence", ErrCoercion, rv.Interface(), t)
	}

	values := make([]Object, 0, rv.Len())
	for i := range rv.Len() {
		value, err := build(t.Elem(), rv.Index(i).Interface(), visiting)
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", t, i, err)
		}

		values = append(values, value)
	}

	return &List{typ: t, values: values}, nil
}

// Type implements [Object] for a [List].
func (l *List) Type() *types.Type {
	return l.typ
}

// Scopes implements [Object] for a [List].
func (l *List) Scopes() env.Chain {
	return l.scopes
}

// Len returns the number of elements in the list.
func (l *List) Len() int {
	return len(l.values)
}

// Index returns the element at position i, scoped to the list.
func (l *List) Index(i int) (Object, bool) {
	if i < 0 || i >= len(l.values) {
		return nil, false
	}

	return scoped(l.values[i], l.scopes), true
}

// Get implements [env.Value] for a [List], returning a []any of the raw element values.
func (l *List) Get() any {
	values := make([]any, 0, len(l.values))
	for _, value := range l.values {
		values = append(values, value.Get())
	}

	return values
}

// String implements [env.Value] for a [List] e.g. "IntegerList(1, 2, 3)".
func (l *List) String() string {
	resolved, _, err := l.interpolate()
	if err != nil {
		resolved = l
	}

	return fmt.Sprintf("%s(%s)", l.typ, join(resolved.(*List).values)) //nolint:forcetypeassert,errcheck // Always a *List
}

// LookupIndex implements [env.IndexLookup] for a [List].
func (l *List) LookupIndex(index string) (env.Value, error) {
	i, err := strconv.Atoi(index)
	if err != nil {
		return nil, fmt.Errorf("%w: %s index %q is not an integer", env.ErrNotFound, l.typ, index)
	}

	value, ok := l.Index(i)
	if !ok {
		return nil, fmt.Errorf("%w: %s index %d out of range [0, %d)", env.ErrNotFound, l.typ, i, len(l.values))
	}

	return value, nil
}

// Check implements [Object] for a [List].
func (l *List) Check() TypeCheck {
	for _, value := range l.values {
		if check := scoped(value, l.scopes).Check(); !check.OK {
			return Failure("Element in %s failed check: %s", l.typ, check.Message)
		}
	}

	return Success()
}

func (l *List) interpolate() (Object, []ref.Ref, error) {
	var unresolved []ref.Ref

	values := make([]Object, 0, len(l.values))
	for _, value := range l.values {
		resolved, refs, err := scoped(value, l.scopes).interpolate()
		if err != nil {
			return nil, nil, err
		}

		values = append(values, resolved)
		unresolved = append(unresolved, refs...)
	}

	return &List{typ: l.typ, values: values}, unresolved, nil
}

func (l *List) withScopes(scopes env.Chain) Object {
	return &List{typ: l.typ, values: l.values, scopes: scopes}
}
