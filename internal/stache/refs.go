package stache

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"go.followtheprocess.codes/stache/internal/mustache"
	"go.followtheprocess.codes/stache/internal/ref"
)

// RefsOptions are the options passed to the refs subcommand.
type RefsOptions struct {
	// Path is the path to the document whose references are listed.
	Path string

	// Debug enables debug logging.
	Debug bool
}

// Refs implements the refs subcommand, printing the placeholder of every distinct
// reference in the document in order of first appearance.
//
// Mappings are walked in key order, placeholders within a key are listed before those
// within its value.
func (s Stache) Refs(ctx context.Context, options RefsOptions) error {
	logger := s.logger.Prefixed("refs").With(slog.String("file", options.Path))

	raw, err := load(options.Path)
	if err != nil {
		return err
	}

	refs, err := collect(ctx, raw, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", options.Path, err)
	}

	refs = ref.Unique(refs)

	logger.Debug("Collected references", slog.Int("count", len(refs)))

	for _, r := range refs {
		fmt.Fprintln(s.stdout, r.Placeholder())
	}

	return nil
}

// collect appends the references of every placeholder within raw to refs.
func collect(ctx context.Context, raw any, refs []ref.Ref) ([]ref.Ref, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch v := raw.(type) {
	case string:
		found, err := mustache.Refs(v)
		if err != nil {
			return nil, err
		}

		return append(refs, found...), nil
	case []any:
		for _, item := range v {
			var err error
			if refs, err = collect(ctx, item, refs); err != nil {
				return nil, err
			}
		}
	case map[string]any:
		for _, key := range slices.Sorted(maps.Keys(v)) {
			var err error
			if refs, err = collect(ctx, key, refs); err != nil {
				return nil, err
			}

			if refs, err = collect(ctx, v[key], refs); err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
		}
	}

	return refs, nil
}
