// Package ref implements references, the structured paths used to address a location
// within a nested value graph.
//
// A reference is written as a sequence of dot separated named components and bracket
// enclosed indexed components, for example:
//
//	a.b[3].c
//
// A leading dot is permitted and ignored, so ".a.b" and "a.b" are the same reference.
package ref

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalid is returned (wrapped) when an address cannot be parsed into a [Ref].
var ErrInvalid = errors.New("invalid reference")

// Kind is the kind of a reference [Component].
type Kind int

const (
	// Named is a component addressing a named field e.g. ".name".
	Named Kind = iota
	// Indexed is a component addressing an element by index or key e.g. "[0]".
	Indexed
)

// String implements [fmt.Stringer] for a [Kind].
func (k Kind) String() string {
	switch k {
	case Named:
		return "Named"
	case Indexed:
		return "Indexed"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Component is a single element of a [Ref].
type Component struct {
	Value string // The textual value, without any surrounding syntax
	Kind  Kind   // Whether this is a named or indexed component
}

// Name returns a named [Component].
func Name(value string) Component {
	return Component{Kind: Named, Value: value}
}

// Index returns an indexed [Component].
func Index(value string) Component {
	return Component{Kind: Indexed, Value: value}
}

// String implements [fmt.Stringer] for a [Component], returning its surface form
// i.e. ".name" or "[value]".
func (c Component) String() string {
	if c.Kind == Indexed {
		return "[" + c.Value + "]"
	}

	return "." + c.Value
}

// Ref is a parsed reference, an ordered and immutable sequence of components.
//
// The zero value is the empty reference which has no components.
type Ref struct {
	components []Component
}

// Parse parses an address into a [Ref].
func Parse(address string) (Ref, error) {
	if address == "" {
		return Ref{}, fmt.Errorf("%w: empty address", ErrInvalid)
	}

	src := address
	if src[0] != '.' && src[0] != '[' {
		src = "." + src
	}

	var components []Component

	pos := 0
	for pos < len(src) {
		switch src[pos] {
		case '.':
			end := pos + 1
			for end < len(src) && isWord(src[end]) {
				end++
			}

			name := src[pos+1 : end]
			if name == "" {
				return Ref{}, fmt.Errorf("%w: %q: empty named component at offset %d", ErrInvalid, address, pos)
			}

			if !isIdentStart(name[0]) {
				return Ref{}, fmt.Errorf("%w: %q: named component %q must not start with a digit", ErrInvalid, address, name)
			}

			components = append(components, Name(name))
			pos = end
		case '[':
			end := pos + 1
			for end < len(src) && isWord(src[end]) {
				end++
			}

			if end >= len(src) || src[end] != ']' {
				return Ref{}, fmt.Errorf("%w: %q: unterminated or invalid indexed component at offset %d", ErrInvalid, address, pos)
			}

			index := src[pos+1 : end]
			if index == "" {
				return Ref{}, fmt.Errorf("%w: %q: empty indexed component at offset %d", ErrInvalid, address, pos)
			}

			components = append(components, Index(index))
			pos = end + 1
		default:
			return Ref{}, fmt.Errorf("%w: %q: unexpected character %q", ErrInvalid, address, src[pos])
		}
	}

	return Ref{components: components}, nil
}

// MustParse is like [Parse] but panics if the address is invalid.
//
// It is intended for addresses known at compile time.
func MustParse(address string) Ref {
	r, err := Parse(address)
	if err != nil {
		panic(err)
	}

	return r
}

// New builds a [Ref] directly from components.
func New(components ...Component) Ref {
	if len(components) == 0 {
		return Ref{}
	}

	return Ref{components: append([]Component(nil), components...)}
}

// Components returns a copy of the components of the reference.
func (r Ref) Components() []Component {
	return append([]Component(nil), r.components...)
}

// Len returns the number of components in the reference.
func (r Ref) Len() int {
	return len(r.components)
}

// IsEmpty reports whether the reference has no components.
func (r Ref) IsEmpty() bool {
	return len(r.components) == 0
}

// First returns the first component of the reference along with the remainder.
//
// It panics if the reference is empty.
func (r Ref) First() (Component, Ref) {
	if r.IsEmpty() {
		panic("ref: First called on empty reference")
	}

	return r.components[0], Ref{components: r.components[1:]}
}

// String implements [fmt.Stringer] for a [Ref], returning the canonical address
// e.g. "a.b[0].c".
func (r Ref) String() string {
	s := &strings.Builder{}
	for i, component := range r.components {
		if i == 0 && component.Kind == Named {
			s.WriteString(component.Value)
			continue
		}

		s.WriteString(component.String())
	}

	return s.String()
}

// Placeholder returns the reference as a template placeholder e.g. "{{a.b}}".
func (r Ref) Placeholder() string {
	return "{{" + r.String() + "}}"
}

// Equal reports whether two references are the same.
func (r Ref) Equal(other Ref) bool {
	if len(r.components) != len(other.components) {
		return false
	}

	for i := range r.components {
		if r.components[i] != other.components[i] {
			return false
		}
	}

	return true
}

// Concat returns a new reference made of r's components followed by other's.
func (r Ref) Concat(other Ref) Ref {
	if r.IsEmpty() {
		return other
	}

	if other.IsEmpty() {
		return r
	}

	components := make([]Component, 0, len(r.components)+len(other.components))
	components = append(components, r.components...)
	components = append(components, other.components...)

	return Ref{components: components}
}

// ScopedTo strips r from the front of other, returning the remaining suffix.
//
// If r is not a literal prefix of other, ok is false. If r and other are equal,
// the returned suffix is the empty reference and ok is true.
func (r Ref) ScopedTo(other Ref) (suffix Ref, ok bool) {
	if len(r.components) > len(other.components) {
		return Ref{}, false
	}

	for i, component := range r.components {
		if other.components[i] != component {
			return Ref{}, false
		}
	}

	return Ref{components: other.components[len(r.components):]}, true
}

// Compare orders references by specificity, returning a negative number if a is
// less specific than b, a positive number if it is more specific and 0 if they are equal.
//
// A reference with more components is more specific, ties are broken by comparing
// the canonical addresses.
func Compare(a, b Ref) int {
	if a.Len() != b.Len() {
		return a.Len() - b.Len()
	}

	return strings.Compare(a.String(), b.String())
}

// Unique returns refs with any duplicates removed, preserving the order of
// first appearance.
func Unique(refs []Ref) []Ref {
	seen := make(map[string]struct{}, len(refs))
	unique := make([]Ref, 0, len(refs))

	for _, r := range refs {
		key := r.String()
		if _, ok := seen[key]; ok {
			continue
		}

		seen[key] = struct{}{}
		unique = append(unique, r)
	}

	return unique
}

// MarshalText implements [encoding.TextMarshaler] for a [Ref].
func (r Ref) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements [encoding.TextUnmarshaler] for a [Ref].
func (r *Ref) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}

	*r = parsed

	return nil
}

// isWord reports whether b is an ASCII word character i.e. [A-Za-z0-9_].
func isWord(b byte) bool {
	return isIdentStart(b) || isDigit(b)
}

// isIdentStart reports whether b may begin a named component.
func isIdentStart(b byte) bool {
	return b == '_' || ('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z')
}

func isDigit(b byte) bool {
	return '0' <= b && b <= '9'
}
