package mustache_test

import (
	"errors"
	"flag"
	"slices"
	"testing"

	"go.followtheprocess.codes/stache/internal/env"
	"go.followtheprocess.codes/stache/internal/mustache"
	"go.followtheprocess.codes/stache/internal/ref"
	"go.followtheprocess.codes/test"
)

var (
	// Everything else has these, this allows passing -update or -clean to go test ./...
	// and not getting a flag not defined error.
	_ = flag.Bool("update", false, "Update snapshots")
	_ = flag.Bool("clean", false, "Clean all snapshots and recreate")
)

// describe renders fragments in a compact form for comparison, placeholders are
// shown as their canonical reference wrapped in angle brackets.
func describe(fragments []mustache.Fragment) []string {
	var out []string
	for _, fragment := range fragments {
		switch fragment.Kind {
		case mustache.Placeholder:
			out = append(out, "<"+fragment.Ref.String()+">")
		default:
			out = append(out, fragment.Text)
		}
	}

	return out
}

func TestSplit(t *testing.T) {
	tests := []struct {
		name    string   // Name of the test case
		text    string   // Text to split
		want    []string // Expected fragments, see describe
		wantErr bool     // Whether Split should error
	}{
		{name: "empty", text: "", want: nil},
		{name: "literal", text: "hello world", want: []string{"hello world"}},
		{name: "single", text: "{{foo}}", want: []string{"<foo>"}},
		{name: "surrounded", text: "a {{foo}} b", want: []string{"a ", "<foo>", " b"}},
		{name: "adjacent", text: "{{a}}{{b}}", want: []string{"<a>", "<b>"}},
		{name: "complex ref", text: "x{{a.b[0].c}}y", want: []string{"x", "<a.b[0].c>", "y"}},
		{name: "leading dot", text: "{{.foo}}", want: []string{"<foo>"}},
		{name: "index only", text: "{{[0]}}", want: []string{"<[0]>"}},
		{name: "triple braces", text: "{{{foo}}}", want: []string{"{", "<foo>", "}"}},
		{name: "quadruple braces", text: "{{{{foo}}}}", want: []string{"{{", "<foo>", "}}"}},
		{name: "empty braces", text: "{{}}", want: []string{"{{}}"}},
		{name: "empty triple braces", text: "{{{}}}", want: []string{"{{{}}}"}},
		{name: "single braces", text: "{foo}", want: []string{"{foo}"}},
		{name: "unclosed", text: "{{foo", want: []string{"{{foo"}},
		{name: "half closed", text: "{{foo}", want: []string{"{{foo}"}},
		{name: "escaped", text: "{{&foo}}", want: []string{"{{foo}}"}},
		{name: "escaped trailing marker", text: "{{&foo&}}", want: []string{"{{foo}}"}},
		{name: "escaped among refs", text: "{{a}} {{&b}} {{c}}", want: []string{"<a>", " ", "{{b}}", " ", "<c>"}},
		{name: "slash w", text: "{{a_zA_Z0_9_}}", want: []string{"<a_zA_Z0_9_>"}},
		{name: "numeric", text: "{{4}}", wantErr: true},
		{name: "garbage", text: "{{!@}}", wantErr: true},
		{name: "spaces", text: "{{ foo }}", wantErr: true},
		{name: "lone ampersand", text: "{{&}}", wantErr: true},
		{name: "bad later", text: "{{ok}} then {{a..b}}", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := mustache.Split(tt.text)
			test.WantErr(t, err, tt.wantErr)

			if tt.wantErr {
				test.True(t, errors.Is(err, ref.ErrInvalid), test.Context("got %v, want ref.ErrInvalid", err))
				return
			}

			test.EqualFunc(t, describe(got), tt.want, slices.Equal[[]string])
		})
	}
}

func TestJoinPartial(t *testing.T) {
	scope := env.MustNew(map[string]any{
		"name":  "world",
		"count": 3,
		"nested": map[string]any{
			"value": 1.5,
		},
	})

	tests := []struct {
		name       string   // Name of the test case
		text       string   // Text to split and join
		want       string   // Expected joined text
		unresolved []string // Expected unresolved references
	}{
		{name: "no placeholders", text: "plain", want: "plain"},
		{name: "all resolved", text: "hello {{name}} x{{count}}", want: "hello world x3"},
		{name: "nested", text: "{{nested.value}}", want: "1.5"},
		{name: "missing", text: "hi {{missing}}!", want: "hi {{missing}}!", unresolved: []string{"missing"}},
		{name: "original text kept", text: "{{.missing}}", want: "{{.missing}}", unresolved: []string{"missing"}},
		{
			name:       "order of appearance",
			text:       "{{b}}{{name}}{{a}}{{b}}",
			want:       "{{b}}world{{a}}{{b}}",
			unresolved: []string{"b", "a", "b"},
		},
		{name: "escaped never resolved", text: "{{&name}}", want: "{{name}}"},
		{name: "braces around", text: "{{{name}}}", want: "{world}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fragments, err := mustache.Split(tt.text)
			test.Ok(t, err)

			got, unresolved := mustache.JoinPartial(fragments, scope)
			test.Equal(t, got, tt.want)

			var names []string
			for _, r := range unresolved {
				names = append(names, r.String())
			}

			test.EqualFunc(t, names, tt.unresolved, slices.Equal[[]string])
		})
	}
}

func TestJoinStrict(t *testing.T) {
	scope := env.MustNew(map[string]any{"a": "A"})

	fragments, err := mustache.Split("{{a}} and {{&b}}")
	test.Ok(t, err)

	got, err := mustache.Join(fragments, scope)
	test.Ok(t, err)
	test.Equal(t, got, "A and {{b}}")

	fragments, err = mustache.Split("{{a}} and {{b}}")
	test.Ok(t, err)

	got, err = mustache.Join(fragments, scope)
	test.Err(t, err)
	test.True(t, errors.Is(err, mustache.ErrUninterpolatable), test.Context("got %v, want ErrUninterpolatable", err))
	test.Equal(t, got, "")
}

func TestJoinNilScope(t *testing.T) {
	fragments, err := mustache.Split("{{a}}")
	test.Ok(t, err)

	got, unresolved := mustache.JoinPartial(fragments, nil)
	test.Equal(t, got, "{{a}}")
	test.Equal(t, len(unresolved), 1)
}

func TestSubstitute(t *testing.T) {
	fragments, err := mustache.Split("{{&a}} {{b}} {{c}}")
	test.Ok(t, err)

	got, unresolved := mustache.Substitute(fragments, env.MustNew(map[string]any{"a": "A", "b": "B"}))
	test.Equal(t, got, "{{&a}} B {{c}}")
	test.Equal(t, len(unresolved), 1)
	test.Equal(t, unresolved[0].String(), "c")

	// The result joins to the same text as the original would have
	again, err := mustache.Split(got)
	test.Ok(t, err)

	joined, _ := mustache.JoinPartial(again, env.MustNew(map[string]any{"a": "A", "c": "C"}))
	test.Equal(t, joined, "{{a}} B C")
}

func TestRender(t *testing.T) {
	got, unresolved, err := mustache.Render("{{greeting}}, {{who}}", env.MustNew(map[string]any{"greeting": "hi"}))
	test.Ok(t, err)
	test.Equal(t, got, "hi, {{who}}")
	test.Equal(t, len(unresolved), 1)
	test.Equal(t, unresolved[0].String(), "who")

	_, _, err = mustache.Render("{{4}}", nil)
	test.Err(t, err)
}

func TestRefs(t *testing.T) {
	refs, err := mustache.Refs("{{a}} {{&b}} {{c[0]}} {{a}}")
	test.Ok(t, err)

	var got []string
	for _, r := range refs {
		got = append(got, r.String())
	}

	test.EqualFunc(t, got, []string{"a", "c[0]", "a"}, slices.Equal[[]string])
}

func FuzzSplit(f *testing.F) {
	for _, seed := range []string{"", "plain", "{{a}}", "{{{a}}}", "{{}}", "{{&a}}", "x{{a.b[0]}}y", "{{4}}", "{{"} {
		f.Add(seed)
	}

	// Property: Split never panics, substituting with nothing to resolve against
	// reproduces the original text exactly, and so does joining unless an escape
	// was consumed.
	f.Fuzz(func(t *testing.T, text string) {
		fragments, err := mustache.Split(text)
		if err != nil {
			return
		}

		substituted, _ := mustache.Substitute(fragments, nil)
		test.Equal(t, substituted, text)

		for _, fragment := range fragments {
			if fragment.Kind == mustache.Escaped {
				return
			}
		}

		got, _ := mustache.JoinPartial(fragments, nil)
		test.Equal(t, got, text)
	})
}
