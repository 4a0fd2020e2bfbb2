// Package mustache implements the placeholder syntax used for string interpolation.
//
// A placeholder is a reference address surrounded by double braces:
//
//	Hello {{user.name}}, you have {{inbox.count}} messages
//
// Prefixing the address with an ampersand escapes the placeholder, it is never resolved
// and renders as the bare placeholder text, so "{{&user}}" renders as "{{user}}".
//
// Any other run of braces is literal text, including "{{}}" and the extra braces around
// "{{{name}}}" which surround an ordinary placeholder.
package mustache

import (
	"errors"
	"fmt"
	"strings"

	"go.followtheprocess.codes/stache/internal/env"
	"go.followtheprocess.codes/stache/internal/ref"
)

// ErrUninterpolatable is returned (wrapped) by [Join] when a placeholder cannot be resolved.
var ErrUninterpolatable = errors.New("uninterpolatable")

const (
	openDelim  = "{{"
	closeDelim = "}}"
	escape     = '&'
)

// Kind is the kind of a [Fragment].
type Kind int

const (
	// Text is literal text, emitted unchanged.
	Text Kind = iota
	// Placeholder is a reference to be resolved.
	Placeholder
	// Escaped is an escaped placeholder, emitted as literal text.
	Escaped
)

// String implements [fmt.Stringer] for a [Kind].
func (k Kind) String() string {
	switch k {
	case Text:
		return "Text"
	case Placeholder:
		return "Placeholder"
	case Escaped:
		return "Escaped"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Fragment is a single piece of split text.
type Fragment struct {
	// Text is the literal text for a Text fragment, the rendered "{{name}}" for an
	// Escaped fragment and the original source text for a Placeholder.
	Text string

	// Source is the fragment exactly as written, e.g. "{{&name}}" for an Escaped fragment.
	Source string

	// Ref is the parsed reference, only set for a Placeholder.
	Ref ref.Ref

	// Kind is the kind of fragment.
	Kind Kind
}

// String implements [fmt.Stringer] for a [Fragment].
func (f Fragment) String() string {
	return fmt.Sprintf("<%s %q>", f.Kind, f.Text)
}

// Split splits text into literal text and placeholders, in order.
//
// It returns an error wrapping [ref.ErrInvalid] if a placeholder's contents are not
// a valid reference, e.g. "{{4}}". Text with no placeholders is returned as a single
// Text fragment, empty text as no fragments at all.
func Split(text string) ([]Fragment, error) {
	var fragments []Fragment

	literal := 0 // Start of the pending run of literal text
	pos := 0

	for {
		start := strings.Index(text[pos:], openDelim)
		if start < 0 {
			break
		}

		start += pos

		inner, end, ok := match(text, start)
		if !ok {
			pos = start + 1
			continue
		}

		if start > literal {
			fragments = append(fragments, Fragment{Kind: Text, Text: text[literal:start], Source: text[literal:start]})
		}

		fragment, err := placeholder(text[start:end], inner)
		if err != nil {
			return nil, err
		}

		fragments = append(fragments, fragment)
		literal = end
		pos = end
	}

	if literal < len(text) {
		fragments = append(fragments, Fragment{Kind: Text, Text: text[literal:], Source: text[literal:]})
	}

	return fragments, nil
}

// match attempts to match a placeholder at text[start:], which must begin with "{{".
//
// The contents are one or more characters excluding braces, immediately followed
// by "}}".
func match(text string, start int) (inner string, end int, ok bool) {
	cursor := start + len(openDelim)
	for cursor < len(text) && text[cursor] != '{' && text[cursor] != '}' {
		cursor++
	}

	if cursor == start+len(openDelim) || !strings.HasPrefix(text[cursor:], closeDelim) {
		return "", 0, false
	}

	return text[start+len(openDelim) : cursor], cursor + len(closeDelim), true
}

// placeholder builds the fragment for a matched placeholder.
func placeholder(source, inner string) (Fragment, error) {
	if len(inner) > 1 && inner[0] == escape {
		name := inner[1:]
		if len(name) > 1 && name[len(name)-1] == escape {
			name = name[:len(name)-1]
		}

		return Fragment{Kind: Escaped, Text: openDelim + name + closeDelim, Source: source}, nil
	}

	r, err := ref.Parse(inner)
	if err != nil {
		return Fragment{}, fmt.Errorf("bad placeholder %s: %w", source, err)
	}

	return Fragment{Kind: Placeholder, Text: source, Source: source, Ref: r}, nil
}

// JoinPartial joins fragments back into text, substituting every placeholder that
// can be resolved against scope.
//
// Placeholders that cannot be resolved are emitted as their original text and
// returned, in order of appearance. A nil scope resolves nothing.
func JoinPartial(fragments []Fragment, scope env.Finder) (string, []ref.Ref) {
	s := &strings.Builder{}

	var unresolved []ref.Ref

	for _, fragment := range fragments {
		if fragment.Kind != Placeholder {
			s.WriteString(fragment.Text)
			continue
		}

		value, ok := find(scope, fragment.Ref)
		if !ok {
			unresolved = append(unresolved, fragment.Ref)
			s.WriteString(fragment.Text)

			continue
		}

		s.WriteString(value.String())
	}

	return s.String(), unresolved
}

// Substitute is like [JoinPartial] but keeps escaped placeholders as written, so the
// result splits back into the same escapes and unresolved placeholders and may be
// joined again later.
func Substitute(fragments []Fragment, scope env.Finder) (string, []ref.Ref) {
	s := &strings.Builder{}

	var unresolved []ref.Ref

	for _, fragment := range fragments {
		if fragment.Kind != Placeholder {
			s.WriteString(fragment.Source)
			continue
		}

		value, ok := find(scope, fragment.Ref)
		if !ok {
			unresolved = append(unresolved, fragment.Ref)
			s.WriteString(fragment.Source)

			continue
		}

		s.WriteString(value.String())
	}

	return s.String(), unresolved
}

// Join is like [JoinPartial] but returns an error wrapping [ErrUninterpolatable] at the
// first placeholder that cannot be resolved.
func Join(fragments []Fragment, scope env.Finder) (string, error) {
	s := &strings.Builder{}

	for _, fragment := range fragments {
		if fragment.Kind != Placeholder {
			s.WriteString(fragment.Text)
			continue
		}

		value, ok := find(scope, fragment.Ref)
		if !ok {
			return "", fmt.Errorf("%w: %s", ErrUninterpolatable, fragment.Text)
		}

		s.WriteString(value.String())
	}

	return s.String(), nil
}

// Render splits text and joins it against scope in one go, see [Split] and [JoinPartial].
func Render(text string, scope env.Finder) (string, []ref.Ref, error) {
	fragments, err := Split(text)
	if err != nil {
		return "", nil, err
	}

	joined, unresolved := JoinPartial(fragments, scope)

	return joined, unresolved, nil
}

// Refs returns the references of every placeholder in text, in order of appearance.
func Refs(text string) ([]ref.Ref, error) {
	fragments, err := Split(text)
	if err != nil {
		return nil, err
	}

	var refs []ref.Ref
	for _, fragment := range fragments {
		if fragment.Kind == Placeholder {
			refs = append(refs, fragment.Ref)
		}
	}

	return refs, nil
}

// find resolves r against scope.
func find(scope env.Finder, r ref.Ref) (env.Value, bool) {
	if scope == nil {
		return nil, false
	}

	value, err := scope.Find(r)
	if err != nil {
		return nil, false
	}

	return value, true
}
