// Package stache implements the functionality of the program, the CLI in package cmd is simply the
// entrypoint to exported functions and methods in this package.
package stache

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"go.followtheprocess.codes/log"
	"go.followtheprocess.codes/stache/internal/builtins"
	"go.followtheprocess.codes/stache/internal/env"
	"go.followtheprocess.codes/stache/internal/format"
	"go.followtheprocess.codes/stache/internal/object"
	"go.followtheprocess.codes/stache/internal/schema"
	"go.followtheprocess.codes/stache/internal/types"
)

// documentType is the name given to the root struct of a document whose type is inferred.
const documentType = "Document"

// Stache represents the stache program.
type Stache struct {
	stdin    io.Reader        // Prompts read answers from here
	stdout   io.Writer        // Normal program output is written here
	stderr   io.Writer        // Logs and errors are written here
	logger   *log.Logger      // The logger for the application
	library  builtins.Library // Builtins bound under stache.* by --builtins
	prompter Prompter         // Asks for the values of unresolved references
	version  string           // The program version
	environ  []string         // Process environment bound under env.* by --builtins
}

// New returns a new [Stache].
func New(debug bool, version string, stdin io.Reader, stdout, stderr io.Writer) Stache {
	return Stache{
		stdin:    stdin,
		stdout:   stdout,
		stderr:   stderr,
		logger:   newLogger(debug, stderr),
		library:  builtins.NewLibrary(version),
		prompter: FormPrompter{In: stdin, Out: stderr},
		version:  version,
		environ:  os.Environ(),
	}
}

// WithBuiltins returns a copy of s that binds lib and environ when asked for the
// builtin environment.
func (s Stache) WithBuiltins(lib builtins.Library, environ []string) Stache {
	s.library = lib
	s.environ = environ

	return s
}

// WithPrompter returns a copy of s that asks p for the values of unresolved references.
func (s Stache) WithPrompter(p Prompter) Stache {
	s.prompter = p
	return s
}

// Sources are the options shared by every subcommand that types and binds documents.
type Sources struct {
	// Env are bindings in key=value form, the key may be any reference
	// e.g. "db.host=localhost". Later ones take precedence.
	Env []string

	// EnvFiles are documents whose contents are bound, later ones take precedence
	// over earlier ones and --env takes precedence over all of them.
	EnvFiles []string

	// Schema is the path to a schema document declaring struct types.
	Schema string

	// Type is a type expression for the document, defaulting to the root
	// type of the schema.
	//
	// If neither Schema nor Type are given, the type is inferred from the document.
	Type string

	// Builtins binds the builtin environment (stache.* and env.*) underneath
	// every other source.
	Builtins bool
}

// validate reports whether the sources are valid.
func (s Sources) validate() error {
	for _, pair := range s.Env {
		key, _, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return fmt.Errorf("invalid --env %q, expected key=value", pair)
		}
	}

	return nil
}

// prepare loads the document at path, types it and binds it to every source, returning
// the bound object alongside the environment it was bound to.
func (s Stache) prepare(logger *log.Logger, cache *types.Cache, path string, sources Sources) (object.Object, *env.Environment, error) {
	start := time.Now()

	raw, err := load(path)
	if err != nil {
		return nil, nil, err
	}

	typ, err := typeOf(cache, raw, sources)
	if err != nil {
		return nil, nil, err
	}

	logger.Debug("Typed document", slog.String("type", typ.String()))

	doc, err := object.New(typ, raw)
	if err != nil {
		return nil, nil, fmt.Errorf("%s is not a valid %s: %w", path, typ, err)
	}

	bound, err := s.environment(sources)
	if err != nil {
		return nil, nil, err
	}

	doc, err = object.Bind(doc, bound)
	if err != nil {
		return nil, nil, err
	}

	logger.Debug(
		"Prepared document",
		slog.Int("bindings", bound.Len()),
		slog.Duration("took", time.Since(start)),
	)

	return doc, bound, nil
}

// environment merges every source into a single environment, lowest precedence first.
func (s Stache) environment(sources Sources) (*env.Environment, error) {
	var merged []any

	if sources.Builtins {
		b, err := builtins.Environment(s.library, s.environ)
		if err != nil {
			return nil, fmt.Errorf("could not evaluate builtins: %w", err)
		}

		merged = append(merged, b)
	}

	for _, file := range sources.EnvFiles {
		raw, err := load(file)
		if err != nil {
			return nil, err
		}

		if _, ok := raw.(map[string]any); !ok {
			return nil, fmt.Errorf("env file %s must contain a mapping, got %T", file, raw)
		}

		merged = append(merged, raw)
	}

	flags := make(map[string]string, len(sources.Env))
	for _, pair := range sources.Env {
		key, value, _ := strings.Cut(pair, "=")
		flags[key] = value
	}

	merged = append(merged, flags)

	e, err := env.New(merged...)
	if err != nil {
		return nil, fmt.Errorf("could not build environment: %w", err)
	}

	return e, nil
}

// typeOf returns the type a document should be converted to.
func typeOf(cache *types.Cache, raw any, sources Sources) (*types.Type, error) {
	if sources.Schema == "" && sources.Type == "" {
		return schema.Infer(cache, documentType, raw)
	}

	var doc any = map[string]any{}

	if sources.Schema != "" {
		loaded, err := load(sources.Schema)
		if err != nil {
			return nil, err
		}

		doc = loaded
	}

	s, err := schema.Parse(cache, doc)
	if err != nil {
		return nil, fmt.Errorf("could not parse schema %s: %w", sources.Schema, err)
	}

	if sources.Type != "" {
		return s.Type(sources.Type)
	}

	root, ok := s.Root()
	if !ok {
		return nil, fmt.Errorf("schema %s declares no root type, pass --type to choose one", sources.Schema)
	}

	return root, nil
}

// load reads and decodes the document at path, choosing the format by its extension.
func load(path string) (any, error) {
	loader, err := format.LoaderFor(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open file: %w", err)
	}
	defer f.Close()

	raw, err := loader.Load(f)
	if err != nil {
		return nil, fmt.Errorf("could not load %s: %w", path, err)
	}

	return raw, nil
}
