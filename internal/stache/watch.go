package stache

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.followtheprocess.codes/log"
	"go.followtheprocess.codes/msg"
	"go.followtheprocess.codes/stache/internal/types"
)

// debounce is how long the watcher waits for changes to settle before re-rendering.
const debounce = 100 * time.Millisecond

// watch renders the document, then renders it again every time the document, schema or
// one of the env files changes, until ctx is cancelled.
//
// Failed renders are reported and watching continues.
func (s Stache) watch(ctx context.Context, logger *log.Logger, options RenderOptions) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("could not start file watcher: %w", err)
	}
	defer watcher.Close()

	files := slices.Concat([]string{options.Path}, options.EnvFiles)
	if options.Schema != "" {
		files = append(files, options.Schema)
	}

	// Editors may replace a file on save, so watch the directories and filter by name.
	watched := make(map[string]bool, len(files))
	dirs := make(map[string]bool)

	for _, file := range files {
		abs, err := filepath.Abs(file)
		if err != nil {
			return err
		}

		watched[abs] = true

		dir := filepath.Dir(abs)
		if dirs[dir] {
			continue
		}

		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("could not watch %s: %w", dir, err)
		}

		dirs[dir] = true
	}

	logger.Debug("Watching files", slog.Int("files", len(watched)), slog.Int("dirs", len(dirs)))

	// Shared by every render.
	cache := types.NewCache()

	s.rerender(ctx, logger, cache, options)

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}

			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}

			abs, err := filepath.Abs(event.Name)
			if err != nil || !watched[abs] {
				continue
			}

			logger.Debug("File changed", slog.String("changed", event.Name), slog.String("op", event.Op.String()))

			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}

			fire = timer.C

		case <-fire:
			fire = nil

			s.rerender(ctx, logger, cache, options)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			msg.Ferror(s.stderr, "watcher error: %v", err)
		}
	}
}

// rerender renders the document, reporting rather than returning any error.
func (s Stache) rerender(ctx context.Context, logger *log.Logger, cache *types.Cache, options RenderOptions) {
	if err := s.render(ctx, logger, cache, options); err != nil {
		msg.Ferror(s.stderr, "%v", err)
		return
	}

	logger.Info("Rendered", slog.String("at", time.Now().Format(time.TimeOnly)))
}
