package ref_test

import (
	"errors"
	"flag"
	"slices"
	"testing"

	"go.followtheprocess.codes/stache/internal/ref"
	"go.followtheprocess.codes/test"
)

var (
	// Everything else has these, this allows passing -update or -clean to go test ./...
	// and not getting a flag not defined error.
	_ = flag.Bool("update", false, "Update snapshots")
	_ = flag.Bool("clean", false, "Clean all snapshots and recreate")
)

func TestParse(t *testing.T) {
	tests := []struct {
		address    string          // The address to parse
		canonical  string          // Expected canonical String()
		components []ref.Component // Expected components
		wantErr    bool            // Whether Parse should return an error
	}{
		{
			address:    "a",
			canonical:  "a",
			components: []ref.Component{ref.Name("a")},
		},
		{
			address:    ".a",
			canonical:  "a",
			components: []ref.Component{ref.Name("a")},
		},
		{
			address:    "a.b.c",
			canonical:  "a.b.c",
			components: []ref.Component{ref.Name("a"), ref.Name("b"), ref.Name("c")},
		},
		{
			address:    "a[0]",
			canonical:  "a[0]",
			components: []ref.Component{ref.Name("a"), ref.Index("0")},
		},
		{
			address:    "[0]",
			canonical:  "[0]",
			components: []ref.Component{ref.Index("0")},
		},
		{
			address:    "[a].b[0][1]",
			canonical:  "[a].b[0][1]",
			components: []ref.Component{ref.Index("a"), ref.Name("b"), ref.Index("0"), ref.Index("1")},
		},
		{
			address: "a-zA-Z0-9_",
			wantErr: true,
		},
		{
			address:    "a_zA_Z0_9_",
			canonical:  "a_zA_Z0_9_",
			components: []ref.Component{ref.Name("a_zA_Z0_9_")},
		},
		{
			address:    "_private.thing",
			canonical:  "_private.thing",
			components: []ref.Component{ref.Name("_private"), ref.Name("thing")},
		},
		{address: "", wantErr: true},
		{address: "0", wantErr: true},
		{address: "4", wantErr: true},
		{address: "a.0", wantErr: true},
		{address: "a.", wantErr: true},
		{address: ".", wantErr: true},
		{address: "a..b", wantErr: true},
		{address: "[]", wantErr: true},
		{address: "a[]", wantErr: true},
		{address: "a[0", wantErr: true},
		{address: "a[0]]", wantErr: true},
		{address: "a.[0]", wantErr: true},
		{address: "a b", wantErr: true},
		{address: "!@", wantErr: true},
		{address: "a[b.c]", wantErr: true},
		{address: " a", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.address, func(t *testing.T) {
			got, err := ref.Parse(tt.address)
			test.WantErr(t, err, tt.wantErr)

			if tt.wantErr {
				test.True(t, errors.Is(err, ref.ErrInvalid), test.Context("error %v should wrap ErrInvalid", err))
				return
			}

			test.Equal(t, got.String(), tt.canonical)
			test.EqualFunc(t, got.Components(), tt.components, slices.Equal[[]ref.Component])
		})
	}
}

func TestPlaceholder(t *testing.T) {
	test.Equal(t, ref.MustParse(".a.b[2]").Placeholder(), "{{a.b[2]}}")
}

func TestEqual(t *testing.T) {
	test.True(t, ref.MustParse("a.b").Equal(ref.MustParse(".a.b")))
	test.False(t, ref.MustParse("a.b").Equal(ref.MustParse("a[b]")))
	test.False(t, ref.MustParse("a.b").Equal(ref.MustParse("a")))
	test.True(t, ref.Ref{}.Equal(ref.New()))
}

func TestScopedTo(t *testing.T) {
	tests := []struct {
		name   string // Name of the test case
		prefix string // The prefix reference
		full   string // The reference to scope to
		suffix string // Expected suffix, "" means empty
		ok     bool   // Expected ok
	}{
		{name: "equal", prefix: "a.b", full: "a.b", suffix: "", ok: true},
		{name: "named suffix", prefix: "a", full: "a.b.c", suffix: "b.c", ok: true},
		{name: "indexed suffix", prefix: "a.b", full: "a.b[0].c", suffix: "[0].c", ok: true},
		{name: "not a prefix", prefix: "a.c", full: "a.b.c", ok: false},
		{name: "longer", prefix: "a.b.c", full: "a.b", ok: false},
		{name: "named vs indexed", prefix: "a.b", full: "a[b].c", ok: false},
		{name: "textual prefix only", prefix: "a.b", full: "a.bc", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prefix := ref.MustParse(tt.prefix)
			full := ref.MustParse(tt.full)

			suffix, ok := prefix.ScopedTo(full)
			test.Equal(t, ok, tt.ok)

			if !ok {
				return
			}

			test.Equal(t, suffix.String(), tt.suffix)
			test.Equal(t, suffix.IsEmpty(), tt.suffix == "")

			// Re-concatenating the prefix and suffix must give back the original
			test.True(t, prefix.Concat(suffix).Equal(full), test.Context("%s + %s != %s", prefix, suffix, full))
		})
	}
}

func TestFirst(t *testing.T) {
	first, rest := ref.MustParse("a[1].b").First()
	test.Equal(t, first, ref.Name("a"))
	test.Equal(t, rest.String(), "[1].b")

	first, rest = rest.First()
	test.Equal(t, first, ref.Index("1"))
	test.Equal(t, rest.String(), "b")
}

func TestCompare(t *testing.T) {
	refs := []ref.Ref{
		ref.MustParse("a"),
		ref.MustParse("a.b.c"),
		ref.MustParse("a.b"),
		ref.MustParse("a[b]"),
	}

	slices.SortFunc(refs, func(x, y ref.Ref) int { return ref.Compare(y, x) })

	got := make([]string, 0, len(refs))
	for _, r := range refs {
		got = append(got, r.String())
	}

	test.EqualFunc(t, got, []string{"a.b.c", "a[b]", "a.b", "a"}, slices.Equal[[]string])
	test.Equal(t, ref.Compare(ref.MustParse("a.b"), ref.MustParse(".a.b")), 0)
}

func TestUnique(t *testing.T) {
	refs := []ref.Ref{
		ref.MustParse("b"),
		ref.MustParse("a"),
		ref.MustParse(".b"),
		ref.MustParse("c[0]"),
		ref.MustParse("a"),
	}

	got := ref.Unique(refs)

	test.Equal(t, len(got), 3)
	test.Equal(t, got[0].String(), "b")
	test.Equal(t, got[1].String(), "a")
	test.Equal(t, got[2].String(), "c[0]")
}

func TestText(t *testing.T) {
	text, err := ref.MustParse(".a[0].b").MarshalText()
	test.Ok(t, err)
	test.Equal(t, string(text), "a[0].b")

	var r ref.Ref
	test.Ok(t, r.UnmarshalText([]byte("x.y")))
	test.Equal(t, r.String(), "x.y")

	test.Err(t, r.UnmarshalText([]byte("x..y")))
}

func FuzzParse(f *testing.F) {
	for _, seed := range []string{"a", "a.b", "a[0].b", "[0]", ".a", "a..b", "[]", "0", "a[b"} {
		f.Add(seed)
	}

	// Property: Parse never panics, and anything it accepts round trips through
	// its canonical form.
	f.Fuzz(func(t *testing.T, address string) {
		r, err := ref.Parse(address)
		if err != nil {
			return
		}

		again, err := ref.Parse(r.String())
		test.Ok(t, err, test.Context("canonical form %q of %q did not parse", r.String(), address))
		test.True(t, again.Equal(r), test.Context("%q did not round trip", address))
	})
}
