package format

import (
	_ "embed"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"
	"text/template"
	"unicode"

	"go.followtheprocess.codes/stache/internal/env"
)

//go:embed templates/env.txt.tmpl
var envTempl string

// quoter escapes single quotes for use within a single quoted shell word.
//
//nolint:gochecknoglobals // Has to be here
var quoter = strings.NewReplacer(`'`, `'\''`)

// envFunctions are custom template functions available in the envTemplate.
//
//nolint:gochecknoglobals // This has to be here
var envFunctions = template.FuncMap{
	"quote": quote,
}

// envTemplate is the parsed dotenv text/template.
//
//nolint:gochecknoglobals // Having the template as a global means it's parsed only once
var envTemplate = template.Must(template.New("env").Funcs(envFunctions).Parse(envTempl))

// envEntry is a single line of a dotenv file.
type envEntry struct {
	Key   string
	Value string
}

// EnvExporter is an [Exporter] that flattens values into dotenv files, one
// KEY=value line per scalar.
//
// Keys are the upper cased path to the scalar with every run of non alphanumeric
// characters replaced by an underscore, so process.args[0] becomes PROCESS_ARGS_0.
// Null values are left out.
type EnvExporter struct{}

// Export implements [Exporter] for [EnvExporter].
func (e EnvExporter) Export(w io.Writer, value any) error {
	m, err := mapping(value, "dotenv")
	if err != nil {
		return err
	}

	entries := make(map[string]string)
	if err := flatten(entries, nil, m); err != nil {
		return err
	}

	lines := make([]envEntry, 0, len(entries))
	for _, key := range slices.Sorted(maps.Keys(entries)) {
		lines = append(lines, envEntry{Key: key, Value: entries[key]})
	}

	return envTemplate.Execute(w, lines)
}

// envKey converts a path into an environment variable name.
func envKey(address string) string {
	var b strings.Builder

	pending := false
	for _, r := range address {
		if r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r)) {
			pending = b.Len() > 0
			continue
		}

		if pending {
			b.WriteByte('_')
			pending = false
		}

		b.WriteRune(unicode.ToUpper(r))
	}

	return b.String()
}

// quote returns value as a shell word, single quoting it unless it is plain.
func quote(value string) string {
	if value != "" && strings.IndexFunc(value, func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune("-_./:@%+,", r))
	}) < 0 {
		return value
	}

	return "'" + quoter.Replace(value) + "'"
}

// flatten adds an entry for every scalar within value to entries, keyed by path.
func flatten(entries map[string]string, path []string, value any) error {
	switch v := value.(type) {
	case nil:
		return nil
	case map[string]any:
		for key, item := range v {
			if err := flatten(entries, append(slices.Clip(path), key), item); err != nil {
				return err
			}
		}
	case []any:
		for i, item := range v {
			if err := flatten(entries, append(slices.Clip(path), strconv.Itoa(i)), item); err != nil {
				return err
			}
		}
	default:
		text, ok := env.Text(v)
		if !ok {
			return fmt.Errorf("unsupported value %#v of type %T", value, value)
		}

		key := envKey(strings.Join(path, "_"))
		if previous, exists := entries[key]; exists && previous != text {
			return fmt.Errorf("keys collide at %s", key)
		}

		entries[key] = text
	}

	return nil
}
