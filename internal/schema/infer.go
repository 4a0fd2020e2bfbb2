package schema

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.followtheprocess.codes/stache/internal/types"
)

// shapeKind is the kind of an inferred shape.
type shapeKind int

const (
	shapeUnknown shapeKind = iota // Only ever seen null
	shapeScalar                   // A primitive
	shapeList                     // A sequence
	shapeRecord                   // A mapping whose keys are all identifiers
	shapeMapping                  // Any other mapping
)

// shape is the structure inferred from a raw value, shapes of sibling values are merged
// before being built into types.
type shape struct {
	scalar *types.Type       // The primitive type of a scalar shape
	elem   *shape            // The element shape of a list or value shape of a mapping
	fields map[string]*shape // The field shapes of a record
	name   string            // The struct name of a record
	kind   shapeKind
}

// Infer returns the type of a raw document that has no schema, naming the top level
// struct name.
//
// Mappings whose keys are all identifiers become structs, named after their key in the
// enclosing mapping, with every field optional. Other mappings become Map(String, V).
// Strings, including those holding placeholders, are String. The elements of a sequence,
// or values of a mapping, are merged into a single type: Integer and Float merge to
// Float, differing primitives merge to String and structs merge to the union of their
// fields. Values that are only ever null are String.
func Infer(cache *types.Cache, name string, raw any) (*types.Type, error) {
	s, err := infer(name, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: could not infer type: %w", ErrSchema, err)
	}

	return s.build(cache)
}

// infer returns the shape of raw, records are named name.
func infer(name string, raw any) (*shape, error) {
	switch v := raw.(type) {
	case nil:
		return &shape{kind: shapeUnknown}, nil
	case string:
		return &shape{kind: shapeScalar, scalar: types.String}, nil
	case bool:
		return &shape{kind: shapeScalar, scalar: types.Boolean}, nil
	case int, int64:
		return &shape{kind: shapeScalar, scalar: types.Integer}, nil
	case float64:
		return &shape{kind: shapeScalar, scalar: types.Float}, nil
	case []any:
		elem := &shape{kind: shapeUnknown}

		for i, item := range v {
			s, err := infer(name, item)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}

			if elem, err = merge(elem, s); err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
		}

		return &shape{kind: shapeList, elem: elem}, nil
	case map[string]any:
		if !slices.ContainsFunc(slices.Collect(maps.Keys(v)), func(key string) bool { return !isIdentifier(key) }) {
			fields := make(map[string]*shape, len(v))
			for key, item := range v {
				s, err := infer(structName(key), item)
				if err != nil {
					return nil, fmt.Errorf("%s: %w", key, err)
				}

				fields[key] = s
			}

			return &shape{kind: shapeRecord, name: name, fields: fields}, nil
		}

		elem := &shape{kind: shapeUnknown}

		for _, key := range slices.Sorted(maps.Keys(v)) {
			s, err := infer(name, v[key])
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}

			if elem, err = merge(elem, s); err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
		}

		return &shape{kind: shapeMapping, elem: elem}, nil
	default:
		return nil, fmt.Errorf("unsupported value %#v of type %T", raw, raw)
	}
}

// merge returns a shape describing values of both shape a and shape b.
func merge(a, b *shape) (*shape, error) {
	switch {
	case a.kind == shapeUnknown:
		return b, nil
	case b.kind == shapeUnknown:
		return a, nil
	case a.kind == shapeScalar && b.kind == shapeScalar:
		return &shape{kind: shapeScalar, scalar: mergeScalars(a.scalar, b.scalar)}, nil
	case a.kind == shapeList && b.kind == shapeList:
		elem, err := merge(a.elem, b.elem)
		if err != nil {
			return nil, err
		}

		return &shape{kind: shapeList, elem: elem}, nil
	case a.kind == shapeRecord && b.kind == shapeRecord:
		fields := maps.Clone(a.fields)

		for key, s := range b.fields {
			existing, ok := fields[key]
			if !ok {
				fields[key] = s
				continue
			}

			merged, err := merge(existing, s)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}

			fields[key] = merged
		}

		return &shape{kind: shapeRecord, name: a.name, fields: fields}, nil
	case a.kind == shapeMapping || b.kind == shapeMapping:
		if a.kind == shapeRecord || b.kind == shapeRecord || a.kind == b.kind {
			elem, err := merge(values(a), values(b))
			if err != nil {
				return nil, err
			}

			return &shape{kind: shapeMapping, elem: elem}, nil
		}

		fallthrough
	default:
		return nil, fmt.Errorf("cannot merge %s with %s", a.kind, b.kind)
	}
}

// values returns the merged value shape of a record or mapping.
func values(s *shape) *shape {
	if s.kind == shapeMapping {
		return s.elem
	}

	merged := &shape{kind: shapeUnknown}

	for _, key := range slices.Sorted(maps.Keys(s.fields)) {
		next, err := merge(merged, s.fields[key])
		if err != nil {
			return &shape{kind: shapeScalar, scalar: types.String}
		}

		merged = next
	}

	return merged
}

// mergeScalars returns the primitive able to hold values of both a and b.
func mergeScalars(a, b *types.Type) *types.Type {
	switch {
	case a == b:
		return a
	case (a == types.Integer && b == types.Float) || (a == types.Float && b == types.Integer):
		return types.Float
	default:
		return types.String
	}
}

// build constructs the type described by the shape.
func (s *shape) build(cache *types.Cache) (*types.Type, error) {
	switch s.kind {
	case shapeScalar:
		return s.scalar, nil
	case shapeList:
		elem, err := s.elem.build(cache)
		if err != nil {
			return nil, err
		}

		return cache.List(elem), nil
	case shapeMapping:
		value, err := s.elem.build(cache)
		if err != nil {
			return nil, err
		}

		return cache.Map(types.String, value), nil
	case shapeRecord:
		fields := make([]types.Field, 0, len(s.fields))
		for _, key := range slices.Sorted(maps.Keys(s.fields)) {
			t, err := s.fields[key].build(cache)
			if err != nil {
				return nil, err
			}

			fields = append(fields, types.Optional(key, t))
		}

		t, err := cache.Struct(s.name, fields...)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrSchema, err)
		}

		return t, nil
	default:
		return types.String, nil
	}
}

// String implements [fmt.Stringer] for a [shapeKind].
func (k shapeKind) String() string {
	switch k {
	case shapeUnknown:
		return "null"
	case shapeScalar:
		return "scalar"
	case shapeList:
		return "sequence"
	case shapeRecord, shapeMapping:
		return "mapping"
	default:
		return fmt.Sprintf("shapeKind(%d)", int(k))
	}
}

// structName derives a struct name from a mapping key e.g. "max_failures" becomes
// "MaxFailures".
func structName(key string) string {
	var b strings.Builder

	for part := range strings.SplitSeq(key, "_") {
		if part == "" {
			continue
		}

		first, size := utf8.DecodeRuneInString(part)
		b.WriteRune(unicode.ToUpper(first))
		b.WriteString(part[size:])
	}

	name := b.String()
	if name == "" || !isAlpha(rune(name[0])) {
		return "Field" + name
	}

	return name
}

// isIdentifier reports whether s is a valid identifier, usable as a field name.
func isIdentifier(s string) bool {
	if s == "" {
		return false
	}

	for i, r := range s {
		if !isIdent(r) || (i == 0 && !isAlpha(r) && r != '_') {
			return false
		}
	}

	return true
}
