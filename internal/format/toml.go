package format

import (
	"fmt"
	"io"

	"github.com/BurntSushi/toml"
)

// TOMLExporter is an [Exporter] that writes values as TOML documents.
//
// TOML has no null, so the value must be a mapping holding no nil values.
type TOMLExporter struct{}

// Export implements [Exporter] for [TOMLExporter] and exports the given value
// as a complete TOML document.
func (t TOMLExporter) Export(w io.Writer, value any) error {
	m, err := mapping(value, "TOML")
	if err != nil {
		return err
	}

	encoder := toml.NewEncoder(w)
	encoder.Indent = ""

	return encoder.Encode(m)
}

// TOMLLoader is a [Loader] for TOML documents, date and time values load as
// RFC 3339 strings.
type TOMLLoader struct{}

// Load implements [Loader] for [TOMLLoader].
func (t TOMLLoader) Load(r io.Reader) (any, error) {
	var value map[string]any

	if _, err := toml.NewDecoder(r).Decode(&value); err != nil {
		return nil, fmt.Errorf("could not decode TOML: %w", err)
	}

	if value == nil {
		value = map[string]any{}
	}

	return normalise(value)
}
