// Package schema declares struct types from documents, and infers types for documents
// that have no schema.
//
// A schema document declares named struct types under "types", and optionally the
// type of the document being rendered under "root":
//
//	root: Process
//	types:
//	  Resources:
//	    cpu: Float!
//	    ram: {type: Integer, default: 1024}
//	  Process:
//	    name: String!
//	    resources: Resources
//	    args: List(String)
//
// A field is either a type expression, optionally suffixed with "!" to mark it required,
// or a mapping with "type", "required" and "default" keys. Fields declared in a mapping
// are ordered by name, a type may instead be declared as a sequence of mappings that also
// have a "name" key to keep their declared order.
package schema

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"go.followtheprocess.codes/stache/internal/object"
	"go.followtheprocess.codes/stache/internal/types"
)

// ErrSchema is returned (wrapped) for any problem with a schema document or type expression.
var ErrSchema = errors.New("invalid schema")

// Schema is a set of named struct types.
type Schema struct {
	cache *types.Cache
	decls map[string][]field
	types map[string]*types.Type
	root  string
}

// field is a single declared field of a struct.
type field struct {
	def      any    // Default value, nil if none
	name     string // Field name
	expr     string // Type expression
	required bool   // Whether the field is required
}

// Parse builds a [Schema] from a raw schema document, declaring every type it
// contains in cache.
func Parse(cache *types.Cache, raw any) (*Schema, error) {
	doc, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected a mapping at the top level, got %T", ErrSchema, raw)
	}

	for key := range doc {
		if key != "types" && key != "root" {
			return nil, fmt.Errorf("%w: unexpected top level key %q, expected types or root", ErrSchema, key)
		}
	}

	s := &Schema{
		cache: cache,
		decls: make(map[string][]field),
		types: make(map[string]*types.Type),
	}

	if root, ok := doc["root"]; ok {
		name, ok := root.(string)
		if !ok {
			return nil, fmt.Errorf("%w: root must be a type name, got %T", ErrSchema, root)
		}

		s.root = name
	}

	decls, ok := doc["types"].(map[string]any)
	if !ok && doc["types"] != nil {
		return nil, fmt.Errorf("%w: types must be a mapping of type name to fields, got %T", ErrSchema, doc["types"])
	}

	for name, body := range decls {
		fields, err := parseFields(body)
		if err != nil {
			return nil, fmt.Errorf("%w: type %s: %w", ErrSchema, name, err)
		}

		s.decls[name] = fields
	}

	var errs []error

	for _, name := range slices.Sorted(maps.Keys(s.decls)) {
		if _, err := s.resolve(name, nil); err != nil {
			errs = append(errs, err)
		}
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	if s.root != "" {
		if _, ok := s.types[s.root]; !ok {
			return nil, fmt.Errorf("%w: root type %q is not declared", ErrSchema, s.root)
		}
	}

	return s, nil
}

// Names returns the names of every declared type, sorted.
func (s *Schema) Names() []string {
	return slices.Sorted(maps.Keys(s.types))
}

// Lookup returns the declared type with the given name.
func (s *Schema) Lookup(name string) (*types.Type, bool) {
	t, ok := s.types[name]
	return t, ok
}

// Root returns the type declared as the document root, if any.
func (s *Schema) Root() (*types.Type, bool) {
	if s.root == "" {
		return nil, false
	}

	return s.Lookup(s.root)
}

// Type parses a type expression that may refer to any of the declared types
// e.g. "List(Process)".
func (s *Schema) Type(expr string) (*types.Type, error) {
	return ParseType(s.cache, expr, func(name string) (*types.Type, error) {
		t, ok := s.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("unknown type %q, declared types are %s", name, strings.Join(s.Names(), ", "))
		}

		return t, nil
	})
}

// resolve builds the declared type with the given name, first building every type
// its fields refer to. Path holds the names of the types currently being built.
func (s *Schema) resolve(name string, path []string) (*types.Type, error) {
	if t, ok := s.types[name]; ok {
		return t, nil
	}

	fields, ok := s.decls[name]
	if !ok {
		return nil, fmt.Errorf("unknown type %q", name)
	}

	if slices.Contains(path, name) {
		return nil, fmt.Errorf("type %s refers to itself: %s", name, strings.Join(append(path, name), " -> "))
	}

	path = slices.Concat(path, []string{name})

	declared := make([]types.Field, 0, len(fields))

	for _, f := range fields {
		t, err := ParseType(s.cache, f.expr, func(ref string) (*types.Type, error) {
			return s.resolve(ref, path)
		})
		if err != nil {
			return nil, fmt.Errorf("type %s field %s: %w", name, f.name, err)
		}

		if f.def != nil {
			if err := checkDefault(t, f.def); err != nil {
				return nil, fmt.Errorf("%w: type %s field %s: bad default: %w", ErrSchema, name, f.name, err)
			}
		}

		declared = append(declared, types.Field{Name: f.name, Type: t, Required: f.required, Default: f.def})
	}

	t, err := s.cache.Struct(name, declared...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSchema, err)
	}

	s.types[name] = t

	return t, nil
}

// checkDefault reports whether def is a valid value of type t.
func checkDefault(t *types.Type, def any) error {
	value, err := object.New(t, def)
	if err != nil {
		return err
	}

	if check := value.Check(); !check.OK {
		return errors.New(check.Message)
	}

	return nil
}

// parseFields parses the body of a type declaration.
func parseFields(body any) ([]field, error) {
	switch body := body.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		fields := make([]field, 0, len(body))
		for _, name := range slices.Sorted(maps.Keys(body)) {
			f, err := parseField(name, body[name])
			if err != nil {
				return nil, err
			}

			fields = append(fields, f)
		}

		return fields, nil
	case []any:
		fields := make([]field, 0, len(body))
		for i, item := range body {
			decl, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("field %d must be a mapping, got %T", i, item)
			}

			name, ok := decl["name"].(string)
			if !ok {
				return nil, fmt.Errorf("field %d must have a name", i)
			}

			rest := maps.Clone(decl)
			delete(rest, "name")

			f, err := parseField(name, rest)
			if err != nil {
				return nil, err
			}

			fields = append(fields, f)
		}

		return fields, nil
	default:
		return nil, fmt.Errorf("expected a mapping or sequence of fields, got %T", body)
	}
}

// parseField parses the declaration of a single field.
func parseField(name string, decl any) (field, error) {
	switch decl := decl.(type) {
	case string:
		expr := strings.TrimSpace(decl)
		required := strings.HasSuffix(expr, "!")

		return field{name: name, expr: strings.TrimSpace(strings.TrimSuffix(expr, "!")), required: required}, nil
	case map[string]any:
		f := field{name: name}

		for key, value := range decl {
			switch key {
			case "type":
				expr, ok := value.(string)
				if !ok {
					return field{}, fmt.Errorf("field %s: type must be a type expression, got %T", name, value)
				}

				f.expr = strings.TrimSpace(expr)
			case "required":
				required, ok := value.(bool)
				if !ok {
					return field{}, fmt.Errorf("field %s: required must be a boolean, got %T", name, value)
				}

				f.required = required
			case "default":
				f.def = value
			default:
				return field{}, fmt.Errorf("field %s: unexpected key %q, expected type, required or default", name, key)
			}
		}

		if f.expr == "" {
			return field{}, fmt.Errorf("field %s: missing type", name)
		}

		return f, nil
	default:
		return field{}, fmt.Errorf("field %s: expected a type expression or mapping, got %T", name, decl)
	}
}
