package schema_test

import (
	"errors"
	"flag"
	"slices"
	"strings"
	"testing"

	"go.followtheprocess.codes/stache/internal/format"
	"go.followtheprocess.codes/stache/internal/schema"
	"go.followtheprocess.codes/stache/internal/types"
	"go.followtheprocess.codes/test"
)

var (
	// Everything else has these, this allows passing -update or -clean to go test ./...
	// and not getting a flag not defined error.
	_ = flag.Bool("update", false, "Update snapshots")
	_ = flag.Bool("clean", false, "Clean all snapshots and recreate")
)

// load decodes a YAML document.
func load(t *testing.T, src string) any {
	t.Helper()

	raw, err := format.YAMLLoader{}.Load(strings.NewReader(src))
	test.Ok(t, err)

	return raw
}

func TestParseType(t *testing.T) {
	cache := types.NewCache()

	tests := []struct {
		expr    string // Type expression to parse
		want    string // Expected type name
		errMsg  string // If we wanted an error, what should it say
		wantErr bool   // Whether we want an error
	}{
		{expr: "String", want: "String"},
		{expr: "Integer", want: "Integer"},
		{expr: "Float", want: "Float"},
		{expr: "Boolean", want: "Boolean"},
		{expr: "List(Integer)", want: "IntegerList"},
		{expr: "  Map( String , List(Float) )  ", want: "StringFloatListMap"},
		{expr: "List(List(Boolean))", want: "BooleanListList"},
		{
			expr:    "",
			wantErr: true,
			errMsg:  `invalid schema: "":1: expected Ident, got EOF`,
		},
		{
			expr:    "List",
			wantErr: true,
			errMsg:  `invalid schema: "List":1: List takes 1 type parameter(s), got 0`,
		},
		{
			expr:    "Map(String)",
			wantErr: true,
			errMsg:  `invalid schema: "Map(String)":1: Map takes 2 type parameter(s), got 1`,
		},
		{
			expr:    "String(Integer)",
			wantErr: true,
			errMsg:  `invalid schema: "String(Integer)":1: String takes 0 type parameter(s), got 1`,
		},
		{
			expr:    "List(Integer",
			wantErr: true,
			errMsg:  `invalid schema: "List(Integer":13: expected ',', got EOF`,
		},
		{
			expr:    "List(Integer))",
			wantErr: true,
			errMsg:  `invalid schema: "List(Integer))":14: unexpected ')' after type`,
		},
		{
			expr:    "List(Strin)",
			wantErr: true,
			errMsg:  `invalid schema: "List(Strin)":6: unknown type "Strin"`,
		},
		{
			expr:    "List[Integer]",
			wantErr: true,
			errMsg:  `invalid schema: "List[Integer]":5: unrecognised character: '['`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := schema.ParseType(cache, tt.expr, nil)
			test.WantErr(t, err, tt.wantErr)

			if tt.wantErr {
				test.True(t, errors.Is(err, schema.ErrSchema))
				test.Equal(t, err.Error(), tt.errMsg)

				return
			}

			test.Equal(t, got.Name(), tt.want)
		})
	}
}

func TestParse(t *testing.T) {
	cache := types.NewCache()

	s, err := schema.Parse(cache, load(t, `
root: Process
types:
  Resources:
    cpu: Float!
    ram: {type: Integer, default: 1024}
  Process:
    name: String!
    resources: Resources
    args: List(String)
    env: Map(String, String)
  Ordered:
    - {name: zebra, type: String}
    - {name: apple, type: Integer, required: true}
`))
	test.Ok(t, err)

	test.EqualFunc(t, s.Names(), []string{"Ordered", "Process", "Resources"}, slices.Equal[[]string])

	root, ok := s.Root()
	test.True(t, ok)
	test.Equal(t, root.Signature().String(),
		"Struct(Process;args:List(String);env:Map(String,String);name:String!;resources:Struct(Resources;cpu:Float!;ram:Integer=1024))")

	resources, ok := s.Lookup("Resources")
	test.True(t, ok)

	ram, ok := resources.Field("ram")
	test.True(t, ok)
	test.Equal(t, ram.Default, any(int64(1024)))

	ordered, ok := s.Lookup("Ordered")
	test.True(t, ok)

	fields := ordered.Fields()
	test.Equal(t, len(fields), 2)
	test.Equal(t, fields[0].Name, "zebra")
	test.Equal(t, fields[1].Name, "apple")
	test.True(t, fields[1].Required)

	list, err := s.Type("List(Process)")
	test.Ok(t, err)
	test.Equal(t, list.Elem(), root)

	_, err = s.Type("List(Nope)")
	test.True(t, errors.Is(err, schema.ErrSchema), test.Context("got %v", err))

	// Types are shared through the cache
	again, err := schema.Parse(cache, load(t, `
types:
  Resources:
    cpu: Float!
    ram: {type: Integer, default: 1024}
`))
	test.Ok(t, err)

	shared, _ := again.Lookup("Resources")
	test.Equal(t, shared, resources)

	_, ok = again.Root()
	test.False(t, ok)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string // Name of the test case
		src  string // Schema document
		want string // Substring of the expected error
	}{
		{name: "not a mapping", src: "- a", want: "expected a mapping at the top level"},
		{name: "unexpected key", src: "nope: 1", want: `unexpected top level key "nope"`},
		{name: "types not a mapping", src: "types: [a]", want: "types must be a mapping"},
		{name: "root not declared", src: "root: Nope\ntypes: {A: {a: String}}", want: `root type "Nope" is not declared`},
		{name: "bad field", src: "types: {A: {a: 1}}", want: "expected a type expression or mapping"},
		{name: "missing type", src: "types: {A: {a: {required: true}}}", want: "missing type"},
		{name: "unknown field key", src: "types: {A: {a: {type: String, nope: 1}}}", want: `unexpected key "nope"`},
		{name: "unknown type", src: "types: {A: {a: Nope}}", want: `unknown type "Nope"`},
		{name: "self reference", src: "types: {A: {a: A}}", want: "type A refers to itself: A -> A"},
		{name: "cycle", src: "types: {A: {b: B}, B: {a: List(A)}}", want: "refers to itself"},
		{name: "bad default", src: "types: {A: {a: {type: Integer, default: abc}}}", want: "bad default"},
		{name: "required default", src: "types: {A: {a: {type: Integer, required: true, default: 1}}}", want: "cannot be required and have a default"},
		{name: "bad type name", src: "types: {a-b: {a: String}}", want: "not a valid identifier"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := schema.Parse(types.NewCache(), load(t, tt.src))
			test.Err(t, err)
			test.True(t, errors.Is(err, schema.ErrSchema), test.Context("got %v", err))
			test.True(t, strings.Contains(err.Error(), tt.want), test.Context("%q does not contain %q", err.Error(), tt.want))
		})
	}
}
