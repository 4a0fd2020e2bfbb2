package types

import (
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// Cache reifies compound types from their signatures, memoising every type it builds
// by its canonical signature.
//
// A Cache is safe for concurrent use, concurrent requests for the same signature
// share a single build and all observe the same *[Type].
type Cache struct {
	group  singleflight.Group // Collapses concurrent builds of one signature
	types  sync.Map           // Canonical signature -> *Type
	builds atomic.Int64       // Number of types actually built
}

// NewCache returns a new, empty [Cache].
func NewCache() *Cache {
	return &Cache{}
}

// Reify returns the type described by sig, building and memoising it if this is the
// first time it has been asked for.
func (c *Cache) Reify(sig Signature) (*Type, error) {
	switch sig.Factory {
	case "String":
		return String, nil
	case "Integer":
		return Integer, nil
	case "Float":
		return Float, nil
	case "Boolean":
		return Boolean, nil
	case "List", "Map", "Struct":
		// Compound, handled below
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFactory, sig.Factory)
	}

	key := sig.String()
	if cached, ok := c.types.Load(key); ok {
		return cached.(*Type), nil //nolint:forcetypeassert,errcheck // Only *Type is ever stored
	}

	result, err, _ := c.group.Do(key, func() (any, error) {
		if cached, ok := c.types.Load(key); ok {
			return cached, nil
		}

		built, err := c.build(sig)
		if err != nil {
			return nil, err
		}

		c.builds.Add(1)

		actual, _ := c.types.LoadOrStore(key, built)

		return actual, nil
	})
	if err != nil {
		return nil, err
	}

	return result.(*Type), nil //nolint:forcetypeassert,errcheck // Only *Type is ever stored
}

// List returns the type of a list of elem.
func (c *Cache) List(elem *Type) *Type {
	if elem == nil {
		panic("types: List of nil type")
	}

	t, err := c.Reify(Signature{Factory: "List", Params: []Signature{elem.Signature()}})
	if err != nil {
		// Signatures of existing types always reify
		panic(fmt.Sprintf("types: List(%s): %v", elem, err))
	}

	return t
}

// Map returns the type of a map from key to value.
func (c *Cache) Map(key, value *Type) *Type {
	if key == nil || value == nil {
		panic("types: Map of nil type")
	}

	t, err := c.Reify(Signature{Factory: "Map", Params: []Signature{key.Signature(), value.Signature()}})
	if err != nil {
		panic(fmt.Sprintf("types: Map(%s, %s): %v", key, value, err))
	}

	return t
}

// Struct returns the record type with the given name and fields.
//
// It returns an error if the name or any field name is not a valid identifier, if a
// field is declared twice, has no type, or is both required and has a default.
func (c *Cache) Struct(name string, fields ...Field) (*Type, error) {
	sig := Signature{Factory: "Struct", Name: name}

	for _, field := range fields {
		if field.Type == nil {
			return nil, fmt.Errorf("%w: %s field %q has no type", ErrInvalidSignature, name, field.Name)
		}

		sig.Fields = append(sig.Fields, FieldSignature{
			Name:     field.Name,
			Type:     field.Type.Signature(),
			Required: field.Required,
			Default:  field.Default,
		})
	}

	return c.Reify(sig)
}

// Len returns the number of compound types held by the cache.
func (c *Cache) Len() int {
	n := 0

	c.types.Range(func(_, _ any) bool {
		n++
		return true
	})

	return n
}

// Builds returns the number of types the cache has built, a type requested many
// times is only built once.
func (c *Cache) Builds() int64 {
	return c.builds.Load()
}

// build constructs a new compound type from its signature, reifying its parameters first.
func (c *Cache) build(sig Signature) (*Type, error) {
	switch sig.Factory {
	case "List":
		if len(sig.Params) != 1 || sig.Name != "" || len(sig.Fields) != 0 {
			return nil, fmt.Errorf("%w: List takes exactly one type parameter, got %s", ErrInvalidSignature, sig)
		}

		elem, err := c.Reify(sig.Params[0])
		if err != nil {
			return nil, err
		}

		return &Type{
			name:      elem.Name() + "List",
			kind:      KindList,
			elem:      elem,
			signature: Signature{Factory: "List", Params: []Signature{elem.Signature()}},
		}, nil
	case "Map":
		if len(sig.Params) != 2 || sig.Name != "" || len(sig.Fields) != 0 {
			return nil, fmt.Errorf("%w: Map takes exactly two type parameters, got %s", ErrInvalidSignature, sig)
		}

		key, err := c.Reify(sig.Params[0])
		if err != nil {
			return nil, err
		}

		value, err := c.Reify(sig.Params[1])
		if err != nil {
			return nil, err
		}

		return &Type{
			name:      key.Name() + value.Name() + "Map",
			kind:      KindMap,
			key:       key,
			elem:      value,
			signature: Signature{Factory: "Map", Params: []Signature{key.Signature(), value.Signature()}},
		}, nil
	default:
		return c.buildStruct(sig)
	}
}

// buildStruct constructs a new Struct type from its signature.
func (c *Cache) buildStruct(sig Signature) (*Type, error) {
	if !isIdent(sig.Name) {
		return nil, fmt.Errorf("%w: struct name %q is not a valid identifier", ErrInvalidSignature, sig.Name)
	}

	if len(sig.Params) != 0 {
		return nil, fmt.Errorf("%w: Struct %s takes no type parameters", ErrInvalidSignature, sig.Name)
	}

	seen := make(map[string]struct{}, len(sig.Fields))
	fields := make([]Field, 0, len(sig.Fields))
	signatures := make([]FieldSignature, 0, len(sig.Fields))

	for _, fieldSig := range sig.Fields {
		if !isIdent(fieldSig.Name) {
			return nil, fmt.Errorf("%w: %s field name %q is not a valid identifier", ErrInvalidSignature, sig.Name, fieldSig.Name)
		}

		if _, ok := seen[fieldSig.Name]; ok {
			return nil, fmt.Errorf("%w: %s field %q declared more than once", ErrInvalidSignature, sig.Name, fieldSig.Name)
		}

		seen[fieldSig.Name] = struct{}{}

		if fieldSig.Required && fieldSig.Default != nil {
			return nil, fmt.Errorf("%w: %s field %q cannot be required and have a default", ErrInvalidSignature, sig.Name, fieldSig.Name)
		}

		fieldType, err := c.Reify(fieldSig.Type)
		if err != nil {
			return nil, fmt.Errorf("%s field %q: %w", sig.Name, fieldSig.Name, err)
		}

		fields = append(fields, Field{
			Name:     fieldSig.Name,
			Type:     fieldType,
			Required: fieldSig.Required,
			Default:  fieldSig.Default,
		})

		signatures = append(signatures, FieldSignature{
			Name:     fieldSig.Name,
			Type:     fieldType.Signature(),
			Required: fieldSig.Required,
			Default:  fieldSig.Default,
		})
	}

	return &Type{
		name:      sig.Name,
		kind:      KindStruct,
		fields:    fields,
		signature: Signature{Factory: "Struct", Name: sig.Name, Fields: signatures},
	}, nil
}

// isIdent reports whether s is a valid identifier i.e. [A-Za-z_][A-Za-z0-9_]*.
func isIdent(s string) bool {
	if s == "" {
		return false
	}

	for i := range len(s) {
		b := s[i]
		switch {
		case b == '_', 'a' <= b && b <= 'z', 'A' <= b && b <= 'Z':
		case '0' <= b && b <= '9' && i > 0:
		default:
			return false
		}
	}

	return true
}
