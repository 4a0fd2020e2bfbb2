package schema_test

import (
	"errors"
	"testing"

	"go.followtheprocess.codes/stache/internal/schema"
	"go.followtheprocess.codes/stache/internal/types"
	"go.followtheprocess.codes/test"
)

func TestInfer(t *testing.T) {
	tests := []struct {
		raw  any    // Raw document
		name string // Name of the test case
		want string // Expected signature of the inferred type
	}{
		{name: "empty", raw: map[string]any{}, want: "Struct(Document)"},
		{
			name: "scalars",
			raw:  map[string]any{"a": "x", "b": int64(1), "c": 1.5, "d": true, "e": nil, "f": "{{x}}"},
			want: "Struct(Document;a:String;b:Integer;c:Float;d:Boolean;e:String;f:String)",
		},
		{
			name: "nested",
			raw:  map[string]any{"max_failures": map[string]any{"count": int64(1)}},
			want: "Struct(Document;max_failures:Struct(MaxFailures;count:Integer))",
		},
		{
			name: "list of integers",
			raw:  map[string]any{"ports": []any{int64(80), int64(443)}},
			want: "Struct(Document;ports:List(Integer))",
		},
		{
			name: "list of numbers",
			raw:  map[string]any{"ratios": []any{int64(1), 0.5}},
			want: "Struct(Document;ratios:List(Float))",
		},
		{
			name: "list of mixed",
			raw:  map[string]any{"args": []any{"--port", int64(80), true}},
			want: "Struct(Document;args:List(String))",
		},
		{
			name: "empty list",
			raw:  map[string]any{"args": []any{}},
			want: "Struct(Document;args:List(String))",
		},
		{
			name: "list of records",
			raw: map[string]any{"processes": []any{
				map[string]any{"name": "a", "cpu": int64(1)},
				map[string]any{"name": "b", "ram": int64(2), "cpu": 0.5},
			}},
			want: "Struct(Document;processes:List(Struct(Processes;cpu:Float;name:String;ram:Integer)))",
		},
		{
			name: "mapping",
			raw:  map[string]any{"hosts": map[string]any{"web-1": "10.0.0.1", "web-2": "10.0.0.2"}},
			want: "Struct(Document;hosts:Map(String,String))",
		},
		{
			name: "top level mapping",
			raw:  map[string]any{"1": int64(1), "2": 2.5},
			want: "Map(String,Float)",
		},
		{
			name: "top level list",
			raw:  []any{"a", "b"},
			want: "List(String)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := schema.Infer(types.NewCache(), "Document", tt.raw)
			test.Ok(t, err)
			test.Equal(t, got.Signature().String(), tt.want)
		})
	}
}

func TestInferErrors(t *testing.T) {
	tests := []struct {
		raw  any    // Raw document
		name string // Name of the test case
	}{
		{name: "list and scalar", raw: map[string]any{"a": []any{[]any{"x"}, "y"}}},
		{name: "record and list", raw: []any{map[string]any{"a": "x"}, []any{"y"}}},
		{name: "unsupported", raw: map[string]any{"a": struct{}{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := schema.Infer(types.NewCache(), "Document", tt.raw)
			test.True(t, errors.Is(err, schema.ErrSchema), test.Context("got %v", err))
		})
	}
}
