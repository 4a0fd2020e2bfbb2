// Package types implements the type descriptors for interpolatable values along with
// [Cache], which reifies parametric types from their structural signatures.
//
// Scalar types are fixed and exported as package level values. Containers and records
// are built through a [Cache] which guarantees that structurally identical signatures
// always produce the same *[Type], so types may be compared with ==.
package types

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	// ErrUnknownFactory is returned (wrapped) when a signature names a factory that doesn't exist.
	ErrUnknownFactory = errors.New("unknown type factory")

	// ErrInvalidSignature is returned (wrapped) when a signature has the wrong parameters
	// for its factory.
	ErrInvalidSignature = errors.New("invalid type signature")
)

// Kind is the kind of a [Type].
type Kind int

const (
	KindString Kind = iota
	KindInteger
	KindFloat
	KindBoolean
	KindList
	KindMap
	KindStruct
)

// String implements [fmt.Stringer] for a [Kind], returning the name of its factory.
func (k Kind) String() string {
	switch k {
	case KindString:
		return "String"
	case KindInteger:
		return "Integer"
	case KindFloat:
		return "Float"
	case KindBoolean:
		return "Boolean"
	case KindList:
		return "List"
	case KindMap:
		return "Map"
	case KindStruct:
		return "Struct"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// IsScalar reports whether the kind is a scalar i.e. not a container or record.
func (k Kind) IsScalar() bool {
	return k <= KindBoolean
}

// The scalar types.
//
//nolint:gochecknoglobals // Immutable, shared by every Cache
var (
	String  = &Type{name: "String", kind: KindString, signature: Signature{Factory: "String"}}
	Integer = &Type{name: "Integer", kind: KindInteger, signature: Signature{Factory: "Integer"}}
	Float   = &Type{name: "Float", kind: KindFloat, signature: Signature{Factory: "Float"}}
	Boolean = &Type{name: "Boolean", kind: KindBoolean, signature: Signature{Factory: "Boolean"}}
)

// Type describes the type of an interpolatable value.
//
// Types are immutable, compound types are only created by a [Cache].
type Type struct {
	elem      *Type     // List element type or Map value type
	key       *Type     // Map key type
	name      string    // Generated or declared name e.g. "IntegerList", "Process"
	fields    []Field   // Struct fields in declaration order
	signature Signature // Structural signature this type was reified from
	kind      Kind      // The kind of type
}

// Name returns the name of the type.
func (t *Type) Name() string {
	return t.name
}

// String implements [fmt.Stringer] for a [Type], returning its name.
func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}

	return t.name
}

// Kind returns the kind of the type.
func (t *Type) Kind() Kind {
	return t.kind
}

// Elem returns the element type of a List or the value type of a Map, and nil for
// any other kind.
func (t *Type) Elem() *Type {
	return t.elem
}

// Key returns the key type of a Map, and nil for any other kind.
func (t *Type) Key() *Type {
	return t.key
}

// Fields returns the fields of a Struct in declaration order.
func (t *Type) Fields() []Field {
	return slices.Clone(t.fields)
}

// Field looks up a Struct field by name.
func (t *Type) Field(name string) (Field, bool) {
	for _, field := range t.fields {
		if field.Name == name {
			return field, true
		}
	}

	return Field{}, false
}

// Signature returns the structural signature of the type, reifying it through any
// [Cache] returns an identical type.
func (t *Type) Signature() Signature {
	return t.signature
}

// Field is a single field of a Struct type.
type Field struct {
	// Default is the raw value used when the field is not set, nil if there is no default.
	Default any

	// Type is the type of the field.
	Type *Type

	// Name is the field name, it must be a valid identifier.
	Name string

	// Required marks a field that must be set for a value to pass its type check.
	Required bool
}

// Required declares a field that must be set.
func Required(name string, t *Type) Field {
	return Field{Name: name, Type: t, Required: true}
}

// Optional declares a field that may be left unset.
func Optional(name string, t *Type) Field {
	return Field{Name: name, Type: t}
}

// Default declares a field which takes value when not set.
func Default(name string, t *Type, value any) Field {
	return Field{Name: name, Type: t, Default: value}
}

// String implements [fmt.Stringer] for a [Field].
func (f Field) String() string {
	s := f.Name + ":" + f.Type.String()
	switch {
	case f.Required:
		s += "!"
	case f.Default != nil:
		s += fmt.Sprintf("=%v", f.Default)
	}

	return s
}

// Signature is the structural description of a type, a factory and its ordered parameters.
//
// Signatures are plain data so may be serialised, [Cache.Reify] turns one back into a [Type].
type Signature struct {
	// Factory is the name of the type factory e.g. "List".
	Factory string `json:"factory" toml:"factory" yaml:"factory"`

	// Name is the declared name of a Struct.
	Name string `json:"name,omitempty" toml:"name,omitempty" yaml:"name,omitempty"`

	// Params are the type parameters: the element type of a List, the key and value
	// types of a Map.
	Params []Signature `json:"params,omitempty" toml:"params,omitempty" yaml:"params,omitempty"`

	// Fields are the fields of a Struct.
	Fields []FieldSignature `json:"fields,omitempty" toml:"fields,omitempty" yaml:"fields,omitempty"`
}

// FieldSignature is the structural description of a Struct field.
type FieldSignature struct {
	Default  any       `json:"default,omitempty"  toml:"default,omitempty"  yaml:"default,omitempty"`
	Name     string    `json:"name"               toml:"name"               yaml:"name"`
	Type     Signature `json:"type"               toml:"type"               yaml:"type"`
	Required bool      `json:"required,omitempty" toml:"required,omitempty" yaml:"required,omitempty"`
}

// String implements [fmt.Stringer] for a [Signature], returning its canonical form
// which is also the key under which it is memoised.
//
// Struct fields appear sorted by name so that declaration order does not affect identity.
func (s Signature) String() string {
	b := &strings.Builder{}
	s.write(b)

	return b.String()
}

func (s Signature) write(b *strings.Builder) {
	b.WriteString(s.Factory)

	switch {
	case len(s.Fields) != 0 || s.Name != "":
		b.WriteString("(")
		b.WriteString(s.Name)

		fields := slices.Clone(s.Fields)
		slices.SortFunc(fields, func(a, b FieldSignature) int {
			return strings.Compare(a.Name, b.Name)
		})

		for _, field := range fields {
			b.WriteString(";")
			b.WriteString(field.Name)
			b.WriteString(":")
			field.Type.write(b)

			switch {
			case field.Required:
				b.WriteString("!")
			case field.Default != nil:
				fmt.Fprintf(b, "=%v", field.Default)
			}
		}

		b.WriteString(")")
	case len(s.Params) != 0:
		b.WriteString("(")

		for i, param := range s.Params {
			if i > 0 {
				b.WriteString(",")
			}

			param.write(b)
		}

		b.WriteString(")")
	}
}
