// Package env implements environments, the immutable scope tables against which
// references are resolved, along with the lookup capabilities a value may implement
// in order to be resolved into.
//
// An [Environment] is flat: nested sources are flattened into composite keys when it
// is built, so a source like
//
//	map[string]any{"a": map[string]any{"b": 1}}
//
// produces a single entry "a.b" = "1". Lookups of a reference that has no exact entry
// fall back to the longest stored prefix whose value supports lookup, backtracking to
// shorter prefixes if that value cannot resolve the rest of the reference.
package env

import (
	"errors"
	"fmt"
	"iter"
	"reflect"
	"slices"
	"strings"

	"go.followtheprocess.codes/stache/internal/ref"
)

var (
	// ErrNotFound is returned (wrapped) when a reference cannot be resolved.
	ErrNotFound = errors.New("not found")

	// ErrUnnamable is returned (wrapped) when a reference component is applied to
	// a value that does not support that kind of lookup.
	ErrUnnamable = errors.New("value does not support lookup")

	// ErrInvalidSource is returned (wrapped) when an environment is built from
	// something that is not a mapping, environment or bindable value.
	ErrInvalidSource = errors.New("invalid environment source")

	// ErrCycle is returned (wrapped) when an environment source refers to itself.
	ErrCycle = errors.New("cyclic environment source")
)

// Environment is an immutable, flat table mapping references to values.
//
// The zero value and a nil *Environment are both valid, empty environments.
type Environment struct {
	table   map[string]int // Canonical address -> index into entries
	entries []entry        // Entries in first-registration order
}

// entry is a single binding in an [Environment].
type entry struct {
	value Value   // The bound value
	key   ref.Ref // The fully flattened key
}

// New builds an [Environment] by merging sources left to right.
//
// Each source may be a map with string keys, a slice or array, or another *Environment.
// Map keys are parsed as reference addresses and nested maps and slices are flattened
// into composite keys, sequences using indexed components. Leaves may be strings,
// numbers, booleans or any [Value]. Later sources overwrite earlier ones per fully
// flattened key.
func New(sources ...any) (*Environment, error) {
	e := &Environment{table: make(map[string]int)}

	for i, source := range sources {
		switch source := source.(type) {
		case *Environment:
			for _, ent := range source.all() {
				e.set(ent.key, ent.value)
			}
		case nil:
			return nil, fmt.Errorf("%w: source %d is nil", ErrInvalidSource, i)
		default:
			rv := reflect.ValueOf(source)
			switch rv.Kind() {
			case reflect.Map, reflect.Slice, reflect.Array:
				if err := e.flatten(ref.Ref{}, rv, make(map[node]struct{})); err != nil {
					return nil, err
				}
			default:
				return nil, fmt.Errorf("%w: source %d has type %T, expected a map or *Environment", ErrInvalidSource, i, source)
			}
		}
	}

	return e, nil
}

// MustNew is like [New] but panics on error.
func MustNew(sources ...any) *Environment {
	e, err := New(sources...)
	if err != nil {
		panic(err)
	}

	return e
}

// Find resolves r against the environment.
//
// An exact entry is returned immediately. Otherwise every entry whose key is a prefix
// of r and whose value supports lookup is tried, most specific first, resolving the
// remainder of r within that value. The first success wins; a more specific entry that
// cannot resolve the remainder does not stop a less specific one from being tried.
func (e *Environment) Find(r ref.Ref) (Value, error) {
	if e.Len() == 0 {
		return nil, notFound(r)
	}

	if index, ok := e.table[r.String()]; ok {
		return e.entries[index].value, nil
	}

	var candidates []entry
	for _, ent := range e.entries {
		if _, ok := ent.key.ScopedTo(r); ok {
			candidates = append(candidates, ent)
		}
	}

	if len(candidates) == 0 {
		return nil, notFound(r)
	}

	slices.SortStableFunc(candidates, func(a, b entry) int {
		return ref.Compare(b.key, a.key)
	})

	for _, candidate := range candidates {
		if !Namable(candidate.value) {
			continue
		}

		suffix, _ := candidate.key.ScopedTo(r)
		if suffix.IsEmpty() {
			return candidate.value, nil
		}

		if value, ok := lookup(candidate.value, suffix); ok {
			return value, nil
		}
	}

	return nil, notFound(r)
}

// Provides reports whether r can be resolved against the environment.
func (e *Environment) Provides(r ref.Ref) bool {
	_, err := e.Find(r)
	return err == nil
}

// Get returns the value stored under exactly r, with no prefix matching.
func (e *Environment) Get(r ref.Ref) (Value, bool) {
	if e.Len() == 0 {
		return nil, false
	}

	index, ok := e.table[r.String()]
	if !ok {
		return nil, false
	}

	return e.entries[index].value, true
}

// Len returns the number of entries in the environment.
func (e *Environment) Len() int {
	if e == nil {
		return 0
	}

	return len(e.entries)
}

// Keys returns the keys of the environment in registration order.
func (e *Environment) Keys() []ref.Ref {
	keys := make([]ref.Ref, 0, e.Len())
	for _, ent := range e.all() {
		keys = append(keys, ent.key)
	}

	return keys
}

// All returns an iterator over the entries of the environment in registration order.
func (e *Environment) All() iter.Seq2[ref.Ref, Value] {
	return func(yield func(ref.Ref, Value) bool) {
		for _, ent := range e.all() {
			if !yield(ent.key, ent.value) {
				return
			}
		}
	}
}

// String implements [fmt.Stringer] for an [Environment].
func (e *Environment) String() string {
	s := &strings.Builder{}
	s.WriteString("Environment(")

	for i, ent := range e.all() {
		if i > 0 {
			s.WriteString(", ")
		}

		fmt.Fprintf(s, "%s=%s", ent.key, ent.value)
	}

	s.WriteString(")")

	return s.String()
}

func (e *Environment) all() []entry {
	if e == nil {
		return nil
	}

	return e.entries
}

// set binds value to key, replacing any existing binding in place.
func (e *Environment) set(key ref.Ref, value Value) {
	address := key.String()
	if index, ok := e.table[address]; ok {
		e.entries[index].value = value
		return
	}

	e.table[address] = len(e.entries)
	e.entries = append(e.entries, entry{key: key, value: value})
}

// node identifies a map or slice being walked, slices sharing a backing array are
// told apart by their length.
type node struct {
	ptr uintptr
	len int
}

// flatten assimilates a map, slice or array into the environment with every key
// prefixed by prefix.
func (e *Environment) flatten(prefix ref.Ref, rv reflect.Value, visiting map[node]struct{}) error {
	if rv.Kind() == reflect.Map || rv.Kind() == reflect.Slice {
		if rv.IsNil() {
			return nil
		}

		n := node{ptr: rv.Pointer(), len: rv.Len()}
		if _, ok := visiting[n]; ok {
			return fmt.Errorf("%w: at %q", ErrCycle, prefix)
		}

		visiting[n] = struct{}{}
		defer delete(visiting, n)
	}

	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return fmt.Errorf("%w: map keys must be strings, got %s", ErrInvalidSource, rv.Type().Key())
		}

		keys := rv.MapKeys()
		slices.SortFunc(keys, func(a, b reflect.Value) int {
			return strings.Compare(a.String(), b.String())
		})

		for _, key := range keys {
			r, err := ref.Parse(key.String())
			if err != nil {
				return fmt.Errorf("%w: bad key: %w", ErrInvalidSource, err)
			}

			if err := e.assimilate(prefix.Concat(r), rv.MapIndex(key), visiting); err != nil {
				return err
			}
		}
	default:
		for i := range rv.Len() {
			key := prefix.Concat(ref.New(ref.Index(fmt.Sprint(i))))
			if err := e.assimilate(key, rv.Index(i), visiting); err != nil {
				return err
			}
		}
	}

	return nil
}

// assimilate binds a single (possibly nested) value under key.
func (e *Environment) assimilate(key ref.Ref, rv reflect.Value, visiting map[node]struct{}) error {
	for rv.Kind() == reflect.Interface && !rv.IsNil() {
		rv = rv.Elem()
	}

	if !rv.IsValid() || (rv.Kind() == reflect.Interface && rv.IsNil()) {
		return fmt.Errorf("%w: %q is nil", ErrInvalidSource, key)
	}

	if rv.CanInterface() {
		switch v := rv.Interface().(type) {
		case Value:
			e.set(key, v)
			return nil
		case *Environment:
			for _, ent := range v.all() {
				e.set(key.Concat(ent.key), ent.value)
			}

			return nil
		}

		if text, ok := Text(rv.Interface()); ok {
			e.set(key, Literal(text))
			return nil
		}
	}

	switch rv.Kind() {
	case reflect.Map, reflect.Slice, reflect.Array:
		return e.flatten(key, rv, visiting)
	default:
		return fmt.Errorf("%w: %q has unsupported type %s", ErrInvalidSource, key, rv.Type())
	}
}

// notFound returns a wrapped [ErrNotFound] for r.
func notFound(r ref.Ref) error {
	return fmt.Errorf("%w: %s", ErrNotFound, r)
}
