package format

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// JSONExporter is an [Exporter] that writes values as indented JSON documents.
type JSONExporter struct{}

// Export implements [Exporter] for [JSONExporter] and exports the given value
// as a complete JSON document.
func (j JSONExporter) Export(w io.Writer, value any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)

	return encoder.Encode(value)
}

// JSONLoader is a [Loader] for JSON documents.
//
// Numbers without a fraction or exponent load as int64, all others as float64.
type JSONLoader struct{}

// Load implements [Loader] for [JSONLoader].
func (j JSONLoader) Load(r io.Reader) (any, error) {
	var value any

	decoder := json.NewDecoder(r)
	decoder.UseNumber()

	if err := decoder.Decode(&value); err != nil {
		if errors.Is(err, io.EOF) {
			return map[string]any{}, nil
		}

		return nil, fmt.Errorf("could not decode JSON: %w", err)
	}

	return numbers(value)
}

// numbers converts every json.Number within value to an int64 or float64.
func numbers(value any) (any, error) {
	switch v := value.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i, nil
		}

		f, err := v.Float64()
		if err != nil {
			return nil, fmt.Errorf("bad number %s: %w", v, err)
		}

		return f, nil
	case []any:
		for i, item := range v {
			n, err := numbers(item)
			if err != nil {
				return nil, err
			}

			v[i] = n
		}

		return v, nil
	case map[string]any:
		for key, item := range v {
			n, err := numbers(item)
			if err != nil {
				return nil, err
			}

			v[key] = n
		}

		return v, nil
	default:
		return v, nil
	}
}
