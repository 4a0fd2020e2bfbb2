package format

import (
	"errors"
	"fmt"
	"io"

	"go.yaml.in/yaml/v4"
)

const yamlIndent = 2

// YAMLExporter is an [Exporter] that writes values as YAML documents.
type YAMLExporter struct{}

// Export implements [Exporter] for [YAMLExporter] and exports the given value as
// a complete YAML document.
func (y YAMLExporter) Export(w io.Writer, value any) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(yamlIndent)

	if err := encoder.Encode(value); err != nil {
		return err
	}

	return encoder.Close()
}

// YAMLLoader is a [Loader] for YAML documents, only the first document in a stream
// is loaded.
type YAMLLoader struct{}

// Load implements [Loader] for [YAMLLoader].
func (y YAMLLoader) Load(r io.Reader) (any, error) {
	var value any
	if err := yaml.NewDecoder(r).Decode(&value); err != nil {
		if errors.Is(err, io.EOF) {
			return map[string]any{}, nil
		}

		return nil, fmt.Errorf("could not decode YAML: %w", err)
	}

	return normalise(value)
}
