// Package object implements typed, interpolatable values and the protocol by which they
// are bound to environments and interpolated.
//
// Every value carries a chain of scopes. [Bind] adds scopes that take precedence over the
// existing chain and [InScope] adds scopes searched after it; neither modifies the value
// they are given. [Interpolate] substitutes every placeholder it can resolve against the
// chain, returning the substituted value alongside any references it could not resolve:
//
//	process, err := object.Bind(template, map[string]any{"areacode": 415})
//	resolved, unresolved, err := object.Interpolate(process)
//
// Interpolation is a single pass, a placeholder that resolves to text which itself
// contains placeholders is not substituted again until the next call.
package object

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"go.followtheprocess.codes/stache/internal/env"
	"go.followtheprocess.codes/stache/internal/ref"
	"go.followtheprocess.codes/stache/internal/types"
)

var (
	// ErrCoercion is returned (wrapped) when a raw value cannot be converted to a type.
	ErrCoercion = errors.New("cannot coerce")

	// ErrUnresolved is matched by [*UnresolvedError].
	ErrUnresolved = errors.New("unresolved references")

	// ErrTypeCheck is matched by [*TypeCheckError].
	ErrTypeCheck = errors.New("type check failed")

	// ErrUnknownField is returned (wrapped) when a struct is given a field it doesn't declare.
	ErrUnknownField = errors.New("unknown field")

	// ErrCycle is returned (wrapped) when a raw value refers to itself.
	ErrCycle = errors.New("cyclic value")
)

// Object is a typed value that may be bound to scopes and interpolated.
//
// The implementations are [*Scalar], [*List], [*Map] and [*Struct].
type Object interface {
	env.Value

	// Type returns the type of the object.
	Type() *types.Type

	// Scopes returns the object's scope chain, most specific first.
	Scopes() env.Chain

	// Check type checks the object, interpolating it first.
	Check() TypeCheck

	// interpolate substitutes what it can against the scope chain, returning the
	// substituted object and the references it could not resolve.
	interpolate() (Object, []ref.Ref, error)

	// withScopes returns a copy of the object with the given scope chain.
	withScopes(scopes env.Chain) Object
}

// Bind returns a copy of o with sources added to the front of its scope chain, so they
// take precedence over any scopes it already has.
//
// Each source may be anything accepted by [env.Scope]. When several sources are given,
// later ones take precedence over earlier ones.
func Bind[T Object](o T, sources ...any) (T, error) {
	added, err := scopes(sources)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("could not bind %s: %w", o.Type(), err)
	}

	return o.withScopes(slices.Concat(added, o.Scopes())).(T), nil //nolint:forcetypeassert,errcheck // withScopes preserves the concrete type
}

// InScope returns a copy of o with sources added to the back of its scope chain, so
// the scopes it already has take precedence over them.
func InScope[T Object](o T, sources ...any) (T, error) {
	added, err := scopes(sources)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("could not scope %s: %w", o.Type(), err)
	}

	return o.withScopes(slices.Concat(o.Scopes(), added)).(T), nil //nolint:forcetypeassert,errcheck // withScopes preserves the concrete type
}

// Interpolate substitutes every placeholder within o that can be resolved against its
// scope chain, returning the substituted value and the references that could not be
// resolved, in the order they were encountered.
//
// If every reference resolved, the result is type checked and a failure is returned as
// a [*TypeCheckError] alongside the (fully substituted) value. Any other error is fatal,
// e.g. a placeholder that is not a valid reference.
func Interpolate[T Object](o T) (T, []ref.Ref, error) {
	result, unresolved, err := o.interpolate()
	if err != nil {
		var zero T
		return zero, nil, err
	}

	resolved := result.(T) //nolint:forcetypeassert,errcheck // interpolate preserves the concrete type

	if len(unresolved) == 0 {
		if check := resolved.Check(); !check.OK {
			return resolved, nil, &TypeCheckError{Type: o.Type(), Check: check}
		}
	}

	return resolved, unresolved, nil
}

// InterpolateIn scopes o to sources with [InScope] and then interpolates it.
func InterpolateIn[T Object](o T, sources ...any) (T, []ref.Ref, error) {
	scoped, err := InScope(o, sources...)
	if err != nil {
		var zero T
		return zero, nil, err
	}

	return Interpolate(scoped)
}

// Resolve interpolates o, requiring that every reference resolves.
//
// Unresolved references are returned as an [*UnresolvedError] and a failing type check
// as a [*TypeCheckError].
func Resolve[T Object](o T) (T, error) {
	resolved, unresolved, err := Interpolate(o)
	if err != nil {
		var zero T
		return zero, err
	}

	if len(unresolved) != 0 {
		var zero T
		return zero, &UnresolvedError{Refs: ref.Unique(unresolved)}
	}

	return resolved, nil
}

// Equal reports whether a and b have the same type and the same value once interpolated.
func Equal(a, b Object) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	if a.Type() != b.Type() {
		return false
	}

	return reflect.DeepEqual(value(a), value(b))
}

// New converts a raw Go value to an object of type t.
//
// Scalars accept strings, numbers and booleans, lists accept slices and arrays, maps and
// structs accept maps with string keys. Objects already of type t are returned as is.
func New(t *types.Type, raw any) (Object, error) {
	return build(t, raw, make(map[node]struct{}))
}

// MustNew is like [New] but panics on error.
func MustNew(t *types.Type, raw any) Object {
	o, err := New(t, raw)
	if err != nil {
		panic(err)
	}

	return o
}

// node identifies a map or slice being walked, slices sharing a backing array are
// told apart by their length.
type node struct {
	ptr uintptr
	len int
}

// build converts raw to an object of type t, tracking the maps and slices currently
// being converted in order to reject cycles.
func build(t *types.Type, raw any, visiting map[node]struct{}) (Object, error) {
	if t == nil {
		return nil, errors.New("cannot build an object with no type")
	}

	if o, ok := raw.(Object); ok {
		if o.Type() == t {
			return o, nil
		}

		if !t.Kind().IsScalar() || !o.Type().Kind().IsScalar() {
			return nil, fmt.Errorf("%w %s to %s", ErrCoercion, o.Type(), t)
		}

		raw = o.Get()
	}

	rv := reflect.ValueOf(raw)
	if rv.Kind() == reflect.Map || rv.Kind() == reflect.Slice {
		if !rv.IsNil() {
			n := node{ptr: rv.Pointer(), len: rv.Len()}
			if _, ok := visiting[n]; ok {
				return nil, fmt.Errorf("%w: building %s", ErrCycle, t)
			}

			visiting[n] = struct{}{}
			defer delete(visiting, n)
		}
	}

	switch t.Kind() {
	case types.KindList:
		return buildList(t, rv, visiting)
	case types.KindMap:
		return buildMap(t, rv, visiting)
	case types.KindStruct:
		return buildStruct(t, rv, visiting)
	default:
		return newScalar(t, raw)
	}
}

// scopes converts binding sources to finders, latest source first.
func scopes(sources []any) (env.Chain, error) {
	chain := make(env.Chain, 0, len(sources))
	for i := len(sources) - 1; i >= 0; i-- {
		finder, err := env.Scope(sources[i])
		if err != nil {
			return nil, err
		}

		chain = append(chain, finder)
	}

	return chain, nil
}

// scoped returns o with extra appended to its scope chain.
func scoped(o Object, extra env.Chain) Object {
	if len(extra) == 0 {
		return o
	}

	return o.withScopes(slices.Concat(o.Scopes(), extra))
}

// value returns the raw value of o after a best effort interpolation.
func value(o Object) any {
	resolved, _, err := o.interpolate()
	if err != nil {
		return o.Get()
	}

	return resolved.Get()
}

// text returns the text of o after a best effort interpolation.
func text(o Object) string {
	if o == nil {
		return "Empty"
	}

	return o.String()
}

// join renders the text of a sequence of objects separated by commas.
func join(objects []Object) string {
	parts := make([]string, 0, len(objects))
	for _, o := range objects {
		parts = append(parts, text(o))
	}

	return strings.Join(parts, ", ")
}
