package env_test

import (
	"errors"
	"flag"
	"fmt"
	"math"
	"slices"
	"strconv"
	"testing"

	"go.followtheprocess.codes/stache/internal/env"
	"go.followtheprocess.codes/stache/internal/ref"
	"go.followtheprocess.codes/test"
)

var (
	// Everything else has these, this allows passing -update or -clean to go test ./...
	// and not getting a flag not defined error.
	_ = flag.Bool("update", false, "Update snapshots")
	_ = flag.Bool("clean", false, "Clean all snapshots and recreate")
)

// record is a test value supporting named lookup only.
type record map[string]env.Value

func (r record) String() string { return fmt.Sprintf("record(%d)", len(r)) }
func (r record) Get() any       { return map[string]env.Value(r) }

func (r record) LookupName(name string) (env.Value, error) {
	v, ok := r[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", env.ErrNotFound, name)
	}

	return v, nil
}

// list is a test value supporting indexed lookup only.
type list []env.Value

func (l list) String() string { return fmt.Sprintf("list(%d)", len(l)) }
func (l list) Get() any       { return []env.Value(l) }

func (l list) LookupIndex(index string) (env.Value, error) {
	i, err := strconv.Atoi(index)
	if err != nil || i < 0 || i >= len(l) {
		return nil, fmt.Errorf("%w: [%s]", env.ErrNotFound, index)
	}

	return l[i], nil
}

// table renders the environment as "key=value" strings in registration order.
func table(e *env.Environment) []string {
	var entries []string
	for key, value := range e.All() {
		entries = append(entries, key.String()+"="+value.String())
	}

	return entries
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string   // Name of the test case
		sources []any    // Sources to build the environment from
		want    []string // Expected flattened table
		wantErr bool     // Whether New should error
	}{
		{
			name:    "empty",
			sources: nil,
			want:    nil,
		},
		{
			name:    "scalars",
			sources: []any{map[string]any{"s": "hello", "i": 1, "f": 1.0, "b": true, "u": uint8(3)}},
			want:    []string{"b=true", "f=1.0", "i=1", "s=hello", "u=3"},
		},
		{
			name:    "nested",
			sources: []any{map[string]any{"a": map[string]any{"b": 1, "c": map[string]string{"d": "x"}}}},
			want:    []string{"a.b=1", "a.c.d=x"},
		},
		{
			name:    "dotted keys",
			sources: []any{map[string]any{"a.b": 1, "a[0]": 2}},
			want:    []string{"a.b=1", "a[0]=2"},
		},
		{
			name: "merge distinct leaves",
			sources: []any{
				map[string]any{"a": map[string]any{"b": 1}},
				map[string]any{"a": map[string]any{"c": 2}},
			},
			want: []string{"a.b=1", "a.c=2"},
		},
		{
			name: "merge distinct leaves reversed",
			sources: []any{
				map[string]any{"a": map[string]any{"c": 2}},
				map[string]any{"a": map[string]any{"b": 1}},
			},
			want: []string{"a.c=2", "a.b=1"},
		},
		{
			name:    "last write wins",
			sources: []any{map[string]any{"a": 1}, map[string]any{"a": 2}},
			want:    []string{"a=2"},
		},
		{
			name: "overlapping",
			sources: []any{
				map[string]any{"a": 1, "b": 2},
				map[string]any{"a": 1, "b": map[string]any{"c": 2}},
			},
			want: []string{"a=1", "b=2", "b.c=2"},
		},
		{
			name:    "environment source",
			sources: []any{env.MustNew(map[string]any{"x": "1"}), map[string]any{"y": "2"}},
			want:    []string{"x=1", "y=2"},
		},
		{
			name:    "nested environment",
			sources: []any{map[string]any{"outer": env.MustNew(map[string]any{"inner": "1"})}},
			want:    []string{"outer.inner=1"},
		},
		{
			name:    "sequences",
			sources: []any{map[string]any{"ports": []any{80, 443}}},
			want:    []string{"ports[0]=80", "ports[1]=443"},
		},
		{
			name:    "empty nested map",
			sources: []any{map[string]any{"a": map[string]any{}}},
			want:    nil,
		},
		{
			name:    "values are kept",
			sources: []any{map[string]any{"r": record{}}},
			want:    []string{"r=record(0)"},
		},
		{
			name:    "nil source",
			sources: []any{nil},
			wantErr: true,
		},
		{
			name:    "scalar source",
			sources: []any{42},
			wantErr: true,
		},
		{
			name:    "nil value",
			sources: []any{map[string]any{"a": nil}},
			wantErr: true,
		},
		{
			name:    "opaque value",
			sources: []any{map[string]any{"a": struct{}{}}},
			wantErr: true,
		},
		{
			name:    "func value",
			sources: []any{map[string]any{"a": func() {}}},
			wantErr: true,
		},
		{
			name:    "bad key",
			sources: []any{map[string]any{"a..b": 1}},
			wantErr: true,
		},
		{
			name:    "non string keys",
			sources: []any{map[int]string{1: "one"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := env.New(tt.sources...)
			test.WantErr(t, err, tt.wantErr)

			if tt.wantErr {
				test.True(t, errors.Is(err, env.ErrInvalidSource), test.Context("got %v, want ErrInvalidSource", err))
				return
			}

			test.EqualFunc(t, table(got), tt.want, slices.Equal[[]string])
			test.Equal(t, got.Len(), len(tt.want))
		})
	}
}

func TestNewCycle(t *testing.T) {
	cyclic := map[string]any{"a": 1}
	cyclic["self"] = cyclic

	_, err := env.New(cyclic)
	test.Err(t, err)
	test.True(t, errors.Is(err, env.ErrCycle), test.Context("got %v, want ErrCycle", err))
}

func TestNewAliasedSlices(t *testing.T) {
	// b[1] shares b's backing array but is not b itself
	b := []any{"x", nil}
	b[1] = b[:1]

	e, err := env.New(map[string]any{"k": b})
	test.Ok(t, err)
	test.Equal(t, e.Len(), 2)

	value, err := e.Find(ref.MustParse("k[1][0]"))
	test.Ok(t, err)
	test.Equal(t, value.String(), "x")

	// The same header nested within itself is still a cycle
	c := []any{"x", nil}
	c[1] = c

	_, err = env.New(map[string]any{"k": c})
	test.True(t, errors.Is(err, env.ErrCycle), test.Context("got %v, want ErrCycle", err))
}

func TestNewDoesNotMutateSources(t *testing.T) {
	first := env.MustNew(map[string]any{"a": 1})
	second := env.MustNew(first, map[string]any{"a": 2, "b": 3})

	test.EqualFunc(t, table(first), []string{"a=1"}, slices.Equal[[]string])
	test.EqualFunc(t, table(second), []string{"a=2", "b=3"}, slices.Equal[[]string])
}

func TestFind(t *testing.T) {
	deep := record{
		"b": record{
			"c": record{"d": env.Literal("deep")},
		},
	}

	e := env.MustNew(
		map[string]any{
			"x":     "exact",
			"a":     deep,
			"a.b":   list{env.Literal("zero")},
			"n":     map[string]any{"m": "1"},
			"items": list{env.Literal("first"), record{"name": env.Literal("second")}},
		},
	)

	tests := []struct {
		name    string // Name of the test case
		ref     string // Reference to find
		want    string // Expected String() of the found value
		wantErr bool   // Whether Find should fail
	}{
		{name: "exact", ref: "x", want: "exact"},
		{name: "exact flattened", ref: "n.m", want: "1"},
		{name: "exact namable", ref: "a.b", want: "list(1)"},
		{name: "into the most specific", ref: "a.b[0]", want: "zero"},
		{name: "backtrack past a dead end", ref: "a.b.c.d", want: "deep"},
		{name: "indexed then named", ref: "items[1].name", want: "second"},
		{name: "index", ref: "items[0]", want: "first"},
		{name: "missing", ref: "y", wantErr: true},
		{name: "missing index", ref: "items[2]", wantErr: true},
		{name: "into a literal", ref: "x.y", wantErr: true},
		{name: "prefix only", ref: "n", wantErr: true},
		{name: "wrong capability", ref: "items.name", wantErr: true},
		{name: "dead end everywhere", ref: "a.b.c.e", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ref.MustParse(tt.ref)

			got, err := e.Find(r)
			test.WantErr(t, err, tt.wantErr)
			test.Equal(t, e.Provides(r), !tt.wantErr)

			if tt.wantErr {
				test.True(t, errors.Is(err, env.ErrNotFound), test.Context("got %v, want ErrNotFound", err))
				return
			}

			test.Equal(t, got.String(), tt.want)
		})
	}
}

func TestFindEmpty(t *testing.T) {
	var e *env.Environment

	_, err := e.Find(ref.MustParse("a"))
	test.True(t, errors.Is(err, env.ErrNotFound))

	_, err = (&env.Environment{}).Find(ref.MustParse("a"))
	test.True(t, errors.Is(err, env.ErrNotFound))
}

func TestGet(t *testing.T) {
	e := env.MustNew(map[string]any{"a": map[string]any{"b": 1}})

	got, ok := e.Get(ref.MustParse("a.b"))
	test.True(t, ok)
	test.Equal(t, got.String(), "1")

	_, ok = e.Get(ref.MustParse("a"))
	test.False(t, ok)

	keys := e.Keys()
	test.Equal(t, len(keys), 1)
	test.Equal(t, keys[0].String(), "a.b")
}

func TestResolve(t *testing.T) {
	value := record{"items": list{env.Literal("one")}}

	got, err := env.Resolve(value, ref.MustParse("items[0]"))
	test.Ok(t, err)
	test.Equal(t, got.String(), "one")

	got, err = env.Resolve(value, ref.Ref{})
	test.Ok(t, err)
	test.Equal(t, got.String(), "record(1)")

	_, err = env.Resolve(value, ref.MustParse("[0]"))
	test.True(t, errors.Is(err, env.ErrUnnamable), test.Context("got %v, want ErrUnnamable", err))

	_, err = env.Resolve(env.Literal("x"), ref.MustParse("a"))
	test.True(t, errors.Is(err, env.ErrUnnamable), test.Context("got %v, want ErrUnnamable", err))
}

func TestNamable(t *testing.T) {
	test.True(t, env.Namable(record{}))
	test.True(t, env.Namable(list{}))
	test.True(t, env.Namable(env.MustNew()))
	test.False(t, env.Namable(env.Literal("x")))
	test.False(t, env.Namable("x"))
}

func TestChain(t *testing.T) {
	specific := env.MustNew(map[string]any{"a": "specific"})
	general := env.MustNew(map[string]any{"a": "general", "b": "general"})

	chain := env.Chain{specific, general}

	got, err := chain.Find(ref.MustParse("a"))
	test.Ok(t, err)
	test.Equal(t, got.String(), "specific")

	got, err = chain.Find(ref.MustParse("b"))
	test.Ok(t, err)
	test.Equal(t, got.String(), "general")

	_, err = chain.Find(ref.MustParse("c"))
	test.True(t, errors.Is(err, env.ErrNotFound))
}

func TestScope(t *testing.T) {
	finder, err := env.Scope(map[string]any{"a": 1})
	test.Ok(t, err)

	got, err := finder.Find(ref.MustParse("a"))
	test.Ok(t, err)
	test.Equal(t, got.String(), "1")

	finder, err = env.Scope(record{"name": env.Literal("bob")})
	test.Ok(t, err)

	got, err = finder.Find(ref.MustParse("name"))
	test.Ok(t, err)
	test.Equal(t, got.String(), "bob")

	_, err = env.Scope(env.Literal("nope"))
	test.Err(t, err)

	_, err = env.Scope(3)
	test.Err(t, err)
}

func TestText(t *testing.T) {
	tests := []struct {
		value any    // Input value
		want  string // Expected text
		ok    bool   // Expected ok
	}{
		{value: "hi", want: "hi", ok: true},
		{value: 42, want: "42", ok: true},
		{value: int64(-7), want: "-7", ok: true},
		{value: uint32(7), want: "7", ok: true},
		{value: 1.0, want: "1.0", ok: true},
		{value: 1.5, want: "1.5", ok: true},
		{value: 1e21, want: "1e+21", ok: true},
		{value: float32(0.25), want: "0.25", ok: true},
		{value: math.Inf(1), want: "+Inf", ok: true},
		{value: false, want: "false", ok: true},
		{value: []int{1}, ok: false},
		{value: nil, ok: false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%#v", tt.value), func(t *testing.T) {
			got, ok := env.Text(tt.value)
			test.Equal(t, ok, tt.ok)
			test.Equal(t, got, tt.want)
		})
	}
}

func TestString(t *testing.T) {
	e := env.MustNew(map[string]any{"a": 1, "b": map[string]any{"c": "x"}})
	test.Equal(t, e.String(), "Environment(a=1, b.c=x)")
}
