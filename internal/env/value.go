package env

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.followtheprocess.codes/stache/internal/ref"
)

// Value is anything that may be bound to a reference in an [Environment].
//
// Both [Literal] text and typed objects are values. Values that also implement
// [NameLookup], [IndexLookup] or [Finder] may be resolved into by the remainder
// of a reference.
type Value interface {
	// String returns the text substituted for a placeholder that resolves to this value.
	String() string

	// Get returns the underlying Go value.
	Get() any
}

// Literal is a plain text [Value], it supports no lookup.
type Literal string

// String implements [Value] for a [Literal].
func (l Literal) String() string {
	return string(l)
}

// Get implements [Value] for a [Literal].
func (l Literal) Get() any {
	return string(l)
}

// NameLookup is the capability of resolving a named reference component e.g. ".name".
type NameLookup interface {
	// LookupName returns the value of the named child.
	LookupName(name string) (Value, error)
}

// IndexLookup is the capability of resolving an indexed reference component e.g. "[0]".
type IndexLookup interface {
	// LookupIndex returns the value at the given index or key.
	LookupIndex(index string) (Value, error)
}

// Finder resolves an entire reference relative to itself.
//
// [Environment] and [Chain] are finders.
type Finder interface {
	// Find resolves r, returning a wrapped [ErrNotFound] if it cannot.
	Find(r ref.Ref) (Value, error)
}

// FinderFunc is an adapter allowing an ordinary function to be used as a [Finder].
type FinderFunc func(r ref.Ref) (Value, error)

// Find implements [Finder] for a [FinderFunc].
func (f FinderFunc) Find(r ref.Ref) (Value, error) {
	return f(r)
}

// Namable reports whether v supports any kind of lookup.
func Namable(v any) bool {
	switch v.(type) {
	case Finder, NameLookup, IndexLookup:
		return true
	default:
		return false
	}
}

// Resolve resolves r relative to v, one component at a time.
//
// Each component is only applied if the value it is applied to has the matching
// capability, otherwise a wrapped [ErrUnnamable] is returned. An empty reference
// resolves to v itself.
func Resolve(v Value, r ref.Ref) (Value, error) {
	if r.IsEmpty() {
		return v, nil
	}

	if finder, ok := v.(Finder); ok {
		return finder.Find(r)
	}

	component, rest := r.First()

	var (
		next Value
		err  error
	)

	switch component.Kind {
	case ref.Named:
		lookup, ok := v.(NameLookup)
		if !ok {
			return nil, fmt.Errorf("%w: %T has no named field %q", ErrUnnamable, v, component.Value)
		}

		next, err = lookup.LookupName(component.Value)
	case ref.Indexed:
		lookup, ok := v.(IndexLookup)
		if !ok {
			return nil, fmt.Errorf("%w: %T cannot be indexed by %q", ErrUnnamable, v, component.Value)
		}

		next, err = lookup.LookupIndex(component.Value)
	default:
		return nil, fmt.Errorf("%w: unknown component kind %s", ErrUnnamable, component.Kind)
	}

	if err != nil {
		return nil, err
	}

	return Resolve(next, rest)
}

// lookup resolves r relative to v, reporting success rather than an error.
func lookup(v Value, r ref.Ref) (Value, bool) {
	resolved, err := Resolve(v, r)
	if err != nil {
		return nil, false
	}

	return resolved, true
}

// Chain is an ordered list of finders, searched first to last.
type Chain []Finder

// Find implements [Finder] for a [Chain], returning the result from the first
// finder able to resolve r.
func (c Chain) Find(r ref.Ref) (Value, error) {
	for _, finder := range c {
		if value, err := finder.Find(r); err == nil {
			return value, nil
		}
	}

	return nil, notFound(r)
}

// Scope converts a binding source into a [Finder].
//
// Finders are returned as is, namable values are wrapped so that references are
// resolved relative to them and anything else is passed to [New].
func Scope(source any) (Finder, error) {
	switch source := source.(type) {
	case Finder:
		return source, nil
	case Value:
		if !Namable(source) {
			return nil, fmt.Errorf("%w: %T supports no lookup", ErrInvalidSource, source)
		}

		return FinderFunc(func(r ref.Ref) (Value, error) {
			return Resolve(source, r)
		}), nil
	default:
		e, err := New(source)
		if err != nil {
			return nil, err
		}

		return e, nil
	}
}

// Text returns the text form of a scalar Go value (strings, booleans, integers and
// floats), reporting whether v was a scalar.
//
// Floats always carry a decimal point or exponent so that 1.0 renders as "1.0".
func Text(v any) (string, bool) {
	switch v := v.(type) {
	case string:
		return v, true
	case bool:
		return strconv.FormatBool(v), true
	case int:
		return strconv.Itoa(v), true
	case int8:
		return strconv.FormatInt(int64(v), 10), true
	case int16:
		return strconv.FormatInt(int64(v), 10), true
	case int32:
		return strconv.FormatInt(int64(v), 10), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case uint:
		return strconv.FormatUint(uint64(v), 10), true
	case uint8:
		return strconv.FormatUint(uint64(v), 10), true
	case uint16:
		return strconv.FormatUint(uint64(v), 10), true
	case uint32:
		return strconv.FormatUint(uint64(v), 10), true
	case uint64:
		return strconv.FormatUint(v, 10), true
	case float32:
		return FormatFloat(float64(v)), true
	case float64:
		return FormatFloat(v), true
	default:
		return "", false
	}
}

// FormatFloat formats f as the shortest text that parses back to f, always
// including a decimal point or exponent for finite values.
func FormatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return s
	}

	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}

	return s
}
