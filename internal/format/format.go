// Package format provides mechanisms for loading documents from, and exporting resolved
// values to, external formats.
//
// Notably, the package provides the [Loader] and [Exporter] interfaces for doing this
// in a format-agnostic way.
//
// It also provides the built in loaders and exporters: JSON, YAML, TOML, HCL and (export
// only) dotenv.
//
// Every loader produces the same shapes: map[string]any for mappings, []any for sequences
// and string, int64, float64, bool or nil for scalars. Every exporter accepts them.
package format

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// ErrUnknownFormat is returned (wrapped) when no loader or exporter exists for a format.
var ErrUnknownFormat = errors.New("unknown format")

// Exporter is the interface defining a mechanism for exporting a resolved value
// into an external format.
type Exporter interface {
	// Export exports value into an external format, written to w.
	Export(w io.Writer, value any) error
}

// Loader is the interface defining a mechanism for loading a document from an
// external format.
type Loader interface {
	// Load decodes a document read from r into raw values.
	Load(r io.Reader) (any, error)
}

// Exporters returns the names of every exporter, sorted.
func Exporters() []string {
	return slices.Sorted(maps.Keys(exporters()))
}

// ExporterFor returns the exporter registered under name e.g. "json".
func ExporterFor(name string) (Exporter, error) {
	exporter, ok := exporters()[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w %q, expected one of %s", ErrUnknownFormat, name, strings.Join(Exporters(), ", "))
	}

	return exporter, nil
}

// LoaderFor returns the loader for a document at path, chosen by its extension.
func LoaderFor(path string) (Loader, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return JSONLoader{}, nil
	case ".yaml", ".yml":
		return YAMLLoader{}, nil
	case ".toml":
		return TOMLLoader{}, nil
	case ".hcl":
		return HCLLoader{Filename: path}, nil
	default:
		return nil, fmt.Errorf("%w: cannot load %s, expected a .json, .yaml, .yml, .toml or .hcl file", ErrUnknownFormat, path)
	}
}

// IsDocument reports whether path has the extension of a loadable document.
func IsDocument(path string) bool {
	_, err := LoaderFor(path)
	return err == nil
}

// exporters returns the built in exporters by name.
func exporters() map[string]Exporter {
	return map[string]Exporter{
		"env":  EnvExporter{},
		"hcl":  HCLExporter{},
		"json": JSONExporter{},
		"toml": TOMLExporter{},
		"yaml": YAMLExporter{},
	}
}

// normalise converts a decoded value into the shapes every exporter accepts.
func normalise(value any) (any, error) {
	switch v := value.(type) {
	case nil, string, bool, int64, float64:
		return v, nil
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case uint64:
		return int64(v), nil //nolint:gosec // Documents don't hold integers that large
	case float32:
		return float64(v), nil
	case time.Time:
		return v.Format(time.RFC3339Nano), nil
	case []any:
		out := make([]any, 0, len(v))
		for i, item := range v {
			n, err := normalise(item)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}

			out = append(out, n)
		}

		return out, nil
	case []map[string]any:
		out := make([]any, 0, len(v))
		for i, item := range v {
			n, err := normalise(item)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}

			out = append(out, n)
		}

		return out, nil
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			n, err := normalise(item)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}

			out[key] = n
		}

		return out, nil
	case map[any]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			n, err := normalise(item)
			if err != nil {
				return nil, fmt.Errorf("%v: %w", key, err)
			}

			out[fmt.Sprint(key)] = n
		}

		return out, nil
	default:
		return nil, fmt.Errorf("unsupported value %#v of type %T", value, value)
	}
}

// mapping asserts that value is a mapping, as required at the top level by some formats.
func mapping(value any, format string) (map[string]any, error) {
	m, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%s documents must be a mapping at the top level, got %T", format, value)
	}

	return m, nil
}
