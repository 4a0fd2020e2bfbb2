// Package stachetest provides helpers for tests that render documents: a builtin
// library with fixed values and a walker over test data.
package stachetest

import (
	"io/fs"
	"iter"
	"maps"
	"path/filepath"
	"slices"

	"go.followtheprocess.codes/stache/internal/builtins"
)

// Fixed builtin values, bound under the "stache" prefix by [builtins.Environment].
const (
	// UUID is the value of {{stache.uuid}}.
	UUID = "d0a43b68-b9a1-4e89-bd21-b06fc59fefb5"

	// Timestamp is the value of {{stache.timestamp}}.
	Timestamp = "2025-01-02T03:04:05Z"

	// Hostname is the value of {{stache.hostname}}.
	Hostname = "testhost"
)

// TestBuiltins is a [builtins.Library] whose builtins always return the same value,
// so rendered documents can be compared against golden files.
type TestBuiltins struct {
	values map[string]string
}

// NewTestLibrary returns a [TestBuiltins] that provides every builtin the real library
// does, {{stache.version}} is version.
func NewTestLibrary(version string) TestBuiltins {
	return TestBuiltins{
		values: map[string]string{
			"uuid":      UUID,
			"timestamp": Timestamp,
			"hostname":  Hostname,
			"version":   version,
		},
	}
}

// Get implements [builtins.Library] for [TestBuiltins].
func (t TestBuiltins) Get(name string) (builtins.Builtin, bool) {
	value, ok := t.values[name]
	if !ok {
		return nil, false
	}

	return func() (string, error) { return value, nil }, true
}

// Names implements [builtins.Library] for [TestBuiltins].
func (t TestBuiltins) Names() []string {
	return slices.Sorted(maps.Keys(t.values))
}

// Files returns an iterator over the regular files under root whose extension is one
// of exts, in lexical order. Walk errors are yielded and end the iteration.
//
//	for file, err := range stachetest.Files(filepath.Join("testdata", "render"), ".txtar") {
//		test.Ok(t, err)
//	}
func Files(root string, exts ...string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}

			if !d.Type().IsRegular() || !slices.Contains(exts, filepath.Ext(path)) {
				return nil
			}

			if !yield(path, nil) {
				return fs.SkipAll
			}

			return nil
		})
		if err != nil {
			yield("", err)
		}
	}
}
