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

// Empty may be given as a field value to [Struct.With] to unset a field.
//
//nolint:gochecknoglobals // Sentinel
var Empty = empty{}

// empty is the type of [Empty].
type empty struct{}

// Struct is a record with a fixed set of named fields.
//
// Structs support named lookup by field name e.g. ".name". A field that has not been
// set and has no default is empty, empty fields can't be looked up and are left out
// of [Struct.Get].
type Struct struct {
	typ    *types.Type
	values []Object // One per field of typ in declaration order, nil if empty
	scopes env.Chain
}

// NewStruct returns a new [Struct] of type t, which must be a struct type.
//
// Fields are set from each of values in turn, so later maps override earlier ones.
// Fields that are not set take their declared default, if any.
func NewStruct(t *types.Type, values ...map[string]any) (*Struct, error) {
	if t.Kind() != types.KindStruct {
		return nil, fmt.Errorf("%s is not a struct type", t)
	}

	s, err := defaults(t)
	if err != nil {
		return nil, err
	}

	for _, set := range values {
		s, err = s.with(reflect.ValueOf(set), make(map[node]struct{}))
		if err != nil {
			return nil, err
		}
	}

	return s, nil
}

// defaults returns a struct of type t with every field at its default.
func defaults(t *types.Type) (*Struct, error) {
	fields := t.Fields()
	s := &Struct{typ: t, values: make([]Object, len(fields))}

	for i, field := range fields {
		if field.Default == nil {
			continue
		}

		value, err := New(field.Type, field.Default)
		if err != nil {
			return nil, fmt.Errorf("%s[%s] default: %w", t, field.Name, err)
		}

		s.values[i] = value
	}

	return s, nil
}

// buildStruct converts a Go map with string keys to a struct of type t.
func buildStruct(t *types.Type, rv reflect.Value, visiting map[node]struct{}) (*Struct, error) {
	if t.Kind() != types.KindStruct {
		return nil, fmt.Errorf("%s is not a struct type", t)
	}

	s, err := defaults(t)
	if err != nil {
		return nil, err
	}

	if !rv.IsValid() {
		return s, nil
	}

	return s.with(rv, visiting)
}

// With returns a copy of the struct with the given fields replaced, a value of
// [Empty] unsets the field. The copy keeps the struct's scopes.
func (s *Struct) With(values map[string]any) (*Struct, error) {
	return s.with(reflect.ValueOf(values), make(map[node]struct{}))
}

func (s *Struct) with(rv reflect.Value, visiting map[node]struct{}) (*Struct, error) {
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		if rv.IsValid() {
			return nil, fmt.Errorf("%w '%v' to %s: expected a mapping with string keys", ErrCoercion, rv.Interface(), s.typ)
		}

		return nil, fmt.Errorf("%w nil to %s", ErrCoercion, s.typ)
	}

	fields := s.typ.Fields()
	updated := &Struct{typ: s.typ, values: slices.Clone(s.values), scopes: s.scopes}

	names := rv.MapKeys()
	slices.SortFunc(names, func(a, b reflect.Value) int {
		return strings.Compare(a.String(), b.String())
	})

	for _, name := range names {
		i := slices.IndexFunc(fields, func(field types.Field) bool {
			return field.Name == name.String()
		})
		if i < 0 {
			return nil, fmt.Errorf("%w: %s has no field %q", ErrUnknownField, s.typ, name.String())
		}

		raw := rv.MapIndex(name).Interface()
		if _, ok := raw.(empty); ok {
			updated.values[i] = nil
			continue
		}

		value, err := build(fields[i].Type, raw, visiting)
		if err != nil {
			return nil, fmt.Errorf("%s[%s]: %w", s.typ, fields[i].Name, err)
		}

		updated.values[i] = value
	}

	return updated, nil
}

// Type implements [Object] for a [Struct].
func (s *Struct) Type() *types.Type {
	return s.typ
}

// Scopes implements [Object] for a [Struct].
func (s *Struct) Scopes() env.Chain {
	return s.scopes
}

// Field returns the value of the named field, scoped to the struct. It returns false
// if the struct has no such field or the field is empty.
func (s *Struct) Field(name string) (Object, bool) {
	for i, field := range s.typ.Fields() {
		if field.Name == name {
			if s.values[i] == nil {
				return nil, false
			}

			return scoped(s.values[i], s.scopes), true
		}
	}

	return nil, false
}

// Get implements [env.Value] for a [Struct], returning a map[string]any of the raw
// values of every field that is set.
func (s *Struct) Get() any {
	values := make(map[string]any, len(s.values))
	for i, field := range s.typ.Fields() {
		if s.values[i] != nil {
			values[field.Name] = s.values[i].Get()
		}
	}

	return values
}

// String implements [env.Value] for a [Struct] e.g. "Employee(first=brian, last=wickman)".
func (s *Struct) String() string {
	o, _, err := s.interpolate()
	if err != nil {
		o = s
	}

	resolved := o.(*Struct) //nolint:forcetypeassert,errcheck // Always a *Struct

	var fields []string
	for i, field := range s.typ.Fields() {
		if resolved.values[i] != nil {
			fields = append(fields, field.Name+"="+text(resolved.values[i]))
		}
	}

	return fmt.Sprintf("%s(%s)", s.typ, strings.Join(fields, ", "))
}

// LookupName implements [env.NameLookup] for a [Struct].
func (s *Struct) LookupName(name string) (env.Value, error) {
	value, ok := s.Field(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s has no field %q set", env.ErrNotFound, s.typ, name)
	}

	return value, nil
}

// Check implements [Object] for a [Struct].
//
// Required fields must be set and every set field must pass its own check.
func (s *Struct) Check() TypeCheck {
	for i, field := range s.typ.Fields() {
		if s.values[i] == nil {
			if field.Required {
				return Failure("%s[%s] is required.", s.typ, field.Name)
			}

			continue
		}

		if check := scoped(s.values[i], s.scopes).Check(); !check.OK {
			return Failure("%s[%s] failed: %s", s.typ, field.Name, check.Message)
		}
	}

	return Success()
}

func (s *Struct) interpolate() (Object, []ref.Ref, error) {
	var unresolved []ref.Ref

	result := &Struct{typ: s.typ, values: make([]Object, len(s.values))}

	for i, value := range s.values {
		if value == nil {
			continue
		}

		resolved, refs, err := scoped(value, s.scopes).interpolate()
		if err != nil {
			return nil, nil, err
		}

		result.values[i] = resolved
		unresolved = append(unresolved, refs...)
	}

	return result, unresolved, nil
}

func (s *Struct) withScopes(scopes env.Chain) Object {
	return &Struct{typ: s.typ, values: s.values, scopes: scopes}
}
