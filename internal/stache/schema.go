package stache

import (
	"context"
	"fmt"
	"log/slog"

	"go.followtheprocess.codes/hue"
	"go.followtheprocess.codes/stache/internal/env"
	"go.followtheprocess.codes/stache/internal/schema"
	"go.followtheprocess.codes/stache/internal/types"
)

// Styles.
const (
	// typeStyle is the style used for the names of declared types.
	typeStyle = hue.Cyan | hue.Bold

	// dimmed is the style used for informational content like the root marker.
	dimmed = hue.BrightBlack | hue.Italic
)

// SchemaOptions are the options passed to the schema subcommand.
type SchemaOptions struct {
	// Path is the path to the schema document.
	Path string

	// Debug enables debug logging.
	Debug bool
}

// Schema implements the schema subcommand, validating a schema and printing every
// type it declares along with its fields.
func (s Stache) Schema(ctx context.Context, options SchemaOptions) error {
	logger := s.logger.Prefixed("schema").With(slog.String("file", options.Path))

	raw, err := load(options.Path)
	if err != nil {
		return err
	}

	cache := types.NewCache()

	parsed, err := schema.Parse(cache, raw)
	if err != nil {
		return err
	}

	logger.Debug("Parsed schema", slog.Int("types", len(parsed.Names())), slog.Int64("built", cache.Builds()))

	root, _ := parsed.Root()

	for i, name := range parsed.Names() {
		if i > 0 {
			fmt.Fprintln(s.stdout)
		}

		t, _ := parsed.Lookup(name)

		if t == root {
			fmt.Fprintf(s.stdout, "%s %s\n", typeStyle.Text(name), dimmed.Text("(root)"))
		} else {
			fmt.Fprintln(s.stdout, typeStyle.Text(name))
		}

		for _, field := range t.Fields() {
			fmt.Fprintf(s.stdout, "  %s: %s%s\n", field.Name, field.Type, describe(field))
		}
	}

	return nil
}

// describe returns the suffix describing whether field is required or has a default.
func describe(field types.Field) string {
	switch {
	case field.Required:
		return " " + dimmed.Text("(required)")
	case field.Default != nil:
		text, ok := env.Text(field.Default)
		if !ok {
			text = fmt.Sprint(field.Default)
		}

		return " = " + text
	default:
		return ""
	}
}
