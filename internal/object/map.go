package object

import (
	"fmt"
	"reflect"
	"slices"
	"strings"

	"go.followtheprocess.codes/stache/internal/env"
	"go.followtheprocess.codes/stache/internal/ref"
	"go.followtheprocess.codes/stache/internal/types"
)

// Map is a collection of key/value pairs of a single key type and value type.
//
// Maps support indexed lookup by key e.g. "[name]", the index is coerced to the key
// type before comparison. Keys may themselves contain placeholders.
type Map struct {
	typ    *types.Type
	keys   []Object
	values []Object
	scopes env.Chain
}

// NewMap returns a new [Map] of type t, which must be a map type, from a Go map of
// raw keys and values.
func NewMap(t *types.Type, values any) (*Map, error) {
	o, err := New(t, values)
	if err != nil {
		return nil, err
	}

	m, ok := o.(*Map)
	if !ok {
		return nil, fmt.Errorf("%s is not a map type", t)
	}

	return m, nil
}

// buildMap converts a Go map to a map of type t, entries are ordered by the text of
// their raw keys.
func buildMap(t *types.Type, rv reflect.Value, visiting map[node]struct{}) (*Map, error) {
	if t.Kind() != types.KindMap {
		return nil, fmt.Errorf("%s is not a map type", t)
	}

	if !rv.IsValid() {
		return &Map{typ: t}, nil
	}

	if rv.Kind() != reflect.Map {
		return nil, fmt.Errorf("%w '%v' to %s: expected a mapping", ErrCoercion, rv.Interface(), t)
	}

	rawKeys := rv.MapKeys()
	slices.SortFunc(rawKeys, func(a, b reflect.Value) int {
		return strings.Compare(fmt.Sprint(a.Interface()), fmt.Sprint(b.Interface()))
	})

	m := &Map{
		typ:    t,
		keys:   make([]Object, 0, len(rawKeys)),
		values: make([]Object, 0, len(rawKeys)),
	}

	for _, rawKey := range rawKeys {
		key, err := build(t.Key(), rawKey.Interface(), visiting)
		if err != nil {
			return nil, fmt.Errorf("%s key %v: %w", t, rawKey.Interface(), err)
		}

		value, err := build(t.Elem(), rv.MapIndex(rawKey).Interface(), visiting)
		if err != nil {
			return nil, fmt.Errorf("%s[%v]: %w", t, rawKey.Interface(), err)
		}

		m.keys = append(m.keys, key)
		m.values = append(m.values, value)
	}

	return m, nil
}

// Type implements [Object] for a [Map].
func (m *Map) Type() *types.Type {
	return m.typ
}

// Scopes implements [Object] for a [Map].
func (m *Map) Scopes() env.Chain {
	return m.scopes
}

// Len returns the number of entries in the map.
func (m *Map) Len() int {
	return len(m.keys)
}

// Get implements [env.Value] for a [Map], returning a map[string]any from the text of
// each key to its raw value.
func (m *Map) Get() any {
	values := make(map[string]any, len(m.keys))
	for i, key := range m.keys {
		values[key.String()] = m.values[i].Get()
	}

	return values
}

// String implements [env.Value] for a [Map] e.g. "StringIntegerMap(a => 1, b => 2)".
func (m *Map) String() string {
	o, _, err := m.interpolate()
	if err != nil {
		o = m
	}

	resolved := o.(*Map) //nolint:forcetypeassert,errcheck // Always a *Map

	entries := make([]string, 0, len(resolved.keys))
	for i, key := range resolved.keys {
		entries = append(entries, fmt.Sprintf("%s => %s", text(key), text(resolved.values[i])))
	}

	return fmt.Sprintf("%s(%s)", m.typ, strings.Join(entries, ", "))
}

// LookupIndex implements [env.IndexLookup] for a [Map].
func (m *Map) LookupIndex(index string) (env.Value, error) {
	want, err := New(m.typ.Key(), index)
	if err != nil {
		return nil, fmt.Errorf("%w: %s key %q: %w", env.ErrNotFound, m.typ, index, err)
	}

	for i, key := range m.keys {
		if Equal(scoped(key, m.scopes), want) {
			return scoped(m.values[i], m.scopes), nil
		}
	}

	return nil, fmt.Errorf("%w: %s has no key %q", env.ErrNotFound, m.typ, index)
}

// Check implements [Object] for a [Map].
func (m *Map) Check() TypeCheck {
	for i, key := range m.keys {
		if check := scoped(key, m.scopes).Check(); !check.OK {
			return Failure("%s key %s failed check: %s", m.typ, text(key), check.Message)
		}

		if check := scoped(m.values[i], m.scopes).Check(); !check.OK {
			return Failure("%s[%s] failed check: %s", m.typ, text(key), check.Message)
		}
	}

	return Success()
}

func (m *Map) interpolate() (Object, []ref.Ref, error) {
	var unresolved []ref.Ref

	result := &Map{
		typ:    m.typ,
		keys:   make([]Object, 0, len(m.keys)),
		values: make([]Object, 0, len(m.values)),
	}

	for i, key := range m.keys {
		resolvedKey, refs, err := scoped(key, m.scopes).interpolate()
		if err != nil {
			return nil, nil, err
		}

		unresolved = append(unresolved, refs...)

		resolvedValue, refs, err := scoped(m.values[i], m.scopes).interpolate()
		if err != nil {
			return nil, nil, err
		}

		unresolved = append(unresolved, refs...)

		result.keys = append(result.keys, resolvedKey)
		result.values = append(result.values, resolvedValue)
	}

	return result, unresolved, nil
}

func (m *Map) withScopes(scopes env.Chain) Object {
	return &Map{typ: m.typ, keys: m.keys, values: m.values, scopes: scopes}
}
