package stache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"go.followtheprocess.codes/log"
	"go.followtheprocess.codes/msg"
	"go.followtheprocess.codes/stache/internal/format"
	"go.followtheprocess.codes/stache/internal/object"
	"go.followtheprocess.codes/stache/internal/ref"
	"go.followtheprocess.codes/stache/internal/types"
)

// DefaultFormat is the format rendered documents are exported as.
const DefaultFormat = "json"

// RenderOptions are the options passed to the render subcommand.
type RenderOptions struct {
	Sources

	// Path is the path to the document to render.
	Path string

	// Format is the name of the format the rendered document is exported as.
	Format string

	// Output is the name of a file in which to save the rendered document, if
	// empty, it is printed to stdout.
	Output string

	// Strict makes unresolved references an error rather than a warning.
	Strict bool

	// Interactive prompts for the value of every unresolved reference.
	Interactive bool

	// Watch re-renders the document whenever it, the schema or any env file changes.
	Watch bool

	// Debug enables debug logging.
	Debug bool
}

// Validate reports whether the RenderOptions is valid, returning an error
// if it's not.
//
// nil means the options are valid.
func (r RenderOptions) Validate() error {
	if err := r.Sources.validate(); err != nil {
		return err
	}

	if _, err := format.ExporterFor(r.Format); err != nil {
		return fmt.Errorf("invalid option for --format: %w", err)
	}

	if r.Interactive && r.Watch {
		return errors.New("--interactive and --watch cannot be used together")
	}

	return nil
}

// Render implements the render subcommand.
func (s Stache) Render(ctx context.Context, options RenderOptions) error {
	logger := s.logger.Prefixed("render").With(slog.String("file", options.Path))

	if err := options.Validate(); err != nil {
		return err
	}

	logger.Debug("Render configuration", slog.String("options", fmt.Sprintf("%+v", options)))

	if options.Watch {
		return s.watch(ctx, logger, options)
	}

	return s.render(ctx, logger, types.NewCache(), options)
}

// render renders the document once.
func (s Stache) render(ctx context.Context, logger *log.Logger, cache *types.Cache, options RenderOptions) error {
	start := time.Now()

	doc, _, err := s.prepare(logger, cache, options.Path, options.Sources)
	if err != nil {
		return err
	}

	result, unresolved, err := object.Interpolate(doc)
	if err != nil {
		return fmt.Errorf("could not render %s: %w", options.Path, err)
	}

	unresolved = ref.Unique(unresolved)

	if len(unresolved) != 0 && options.Interactive {
		logger.Debug("Prompting for unresolved references", slog.Int("count", len(unresolved)))

		answers, err := s.prompter.Prompt(ctx, unresolved)
		if err != nil {
			return err
		}

		doc, err = object.Bind(doc, answers)
		if err != nil {
			return err
		}

		result, unresolved, err = object.Interpolate(doc)
		if err != nil {
			return fmt.Errorf("could not render %s: %w", options.Path, err)
		}

		unresolved = ref.Unique(unresolved)
	}

	if len(unresolved) != 0 {
		if options.Strict {
			return &object.UnresolvedError{Refs: unresolved}
		}

		for _, r := range unresolved {
			msg.Fwarn(s.stderr, "%s: unresolved reference %s", options.Path, r.Placeholder())
		}
	}

	exporter, err := format.ExporterFor(options.Format)
	if err != nil {
		return err
	}

	buf := &bytes.Buffer{}
	if err := exporter.Export(buf, result.Get()); err != nil {
		return fmt.Errorf("could not export %s as %s: %w", options.Path, options.Format, err)
	}

	if err := s.write(options.Output, buf); err != nil {
		return err
	}

	logger.Debug(
		"Rendered document",
		slog.String("type", result.Type().String()),
		slog.Int("unresolved", len(unresolved)),
		slog.Duration("took", time.Since(start)),
	)

	return nil
}

// write saves the rendered document to the file named output, or to stdout if
// output is empty.
func (s Stache) write(output string, rendered io.Reader) error {
	if output == "" {
		_, err := io.Copy(s.stdout, rendered)
		return err
	}

	contents, err := io.ReadAll(rendered)
	if err != nil {
		return err
	}

	if err := os.WriteFile(output, contents, 0o644); err != nil {
		return fmt.Errorf("could not write %s: %w", output, err)
	}

	return nil
}
