package stache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sahilm/fuzzy"
	"go.followtheprocess.codes/log"
	"go.followtheprocess.codes/msg"
	"go.followtheprocess.codes/stache/internal/env"
	"go.followtheprocess.codes/stache/internal/format"
	"go.followtheprocess.codes/stache/internal/object"
	"go.followtheprocess.codes/stache/internal/ref"
	"go.followtheprocess.codes/stache/internal/types"
	"golang.org/x/sync/errgroup"
)

// ErrCheck is returned when one or more documents failed the check, the problems
// with each have already been reported.
var ErrCheck = errors.New("check failed")

// CheckOptions are the options passed to the check subcommand.
type CheckOptions struct {
	Sources

	// Path is the path (file or directory) to check.
	Path string

	// Debug enables debug logging.
	Debug bool
}

// Validate reports whether the CheckOptions is valid, returning an error
// if it's not.
func (c CheckOptions) Validate() error {
	return c.Sources.validate()
}

// Check implements the check subcommand.
func (s Stache) Check(ctx context.Context, options CheckOptions) error {
	logger := s.logger.Prefixed("check").With(slog.String("path", options.Path))
	logger.Debug("Checking path")

	if err := options.Validate(); err != nil {
		return err
	}

	info, err := os.Stat(options.Path)
	if err != nil {
		return fmt.Errorf("could not get path info: %w", err)
	}

	var paths []string

	if info.IsDir() {
		logger.Debug("Path is a directory")

		// The schema and env files aren't documents to check.
		skip := make(map[string]bool, len(options.EnvFiles)+1)
		for _, file := range append([]string{options.Schema}, options.EnvFiles...) {
			if file != "" {
				skip[filepath.Clean(file)] = true
			}
		}

		err = filepath.WalkDir(options.Path, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}

			if !d.IsDir() && format.IsDocument(path) && !skip[filepath.Clean(path)] {
				paths = append(paths, path)
			}

			return nil
		})
		if err != nil {
			return fmt.Errorf("could not walk %s: %w", options.Path, err)
		}
	} else {
		logger.Debug("Path is a file")

		paths = []string{options.Path}
	}

	logger.Debug("Checking documents given by path", slog.Int("number", len(paths)))

	// Shared by every document, concurrent reification of a type builds it once.
	cache := types.NewCache()
	problems := make([][]string, len(paths))

	group, ctx := errgroup.WithContext(ctx)

	for i, path := range paths {
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			problems[i] = s.checkFile(logger, cache, path, options.Sources)

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return err
	}

	failed := 0

	for i, path := range paths {
		if len(problems[i]) == 0 {
			msg.Fsuccess(s.stdout, "%s is valid", path)
			continue
		}

		failed++

		for _, problem := range problems[i] {
			msg.Ferror(s.stderr, "%s: %s", path, problem)
		}
	}

	logger.Debug("Checked documents", slog.Int("failed", failed), slog.Int("types", cache.Len()))

	if failed != 0 {
		return fmt.Errorf("%w: %d of %d document(s) had problems", ErrCheck, failed, len(paths))
	}

	return nil
}

// checkFile checks a single document, returning a description of each problem found.
func (s Stache) checkFile(logger *log.Logger, cache *types.Cache, path string, sources Sources) []string {
	logger = logger.With(slog.String("file", path))

	doc, bound, err := s.prepare(logger, cache, path, sources)
	if err != nil {
		return []string{err.Error()}
	}

	_, unresolved, err := object.Interpolate(doc)
	if err != nil {
		var typeCheck *object.TypeCheckError
		if errors.As(err, &typeCheck) {
			return []string{typeCheck.Check.Message}
		}

		return []string{err.Error()}
	}

	var problems []string

	for _, r := range ref.Unique(unresolved) {
		problem := "unresolved reference " + r.Placeholder()
		if suggestion, ok := suggest(r, bound); ok {
			problem += fmt.Sprintf(", did you mean %s?", suggestion.Placeholder())
		}

		problems = append(problems, problem)
	}

	return problems
}

// suggest returns the key of bound that most closely matches the unresolved
// reference r.
func suggest(r ref.Ref, bound *env.Environment) (ref.Ref, bool) {
	keys := bound.Keys()
	if len(keys) == 0 {
		return ref.Ref{}, false
	}

	candidates := make([]string, 0, len(keys))
	for _, key := range keys {
		candidates = append(candidates, key.String())
	}

	matches := fuzzy.Find(r.String(), candidates)
	if len(matches) == 0 {
		return ref.Ref{}, false
	}

	return keys[matches[0].Index], true
}
