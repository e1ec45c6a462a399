package build

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/anubis/internal/storage"
)

// DefaultDebounce is the quiet period after the last file event before a
// rebuild starts.
const DefaultDebounce = 300 * time.Millisecond

// RebuildFunc is called from the watch loop once the source tree has
// settled and its content differs from the previous pass.
type RebuildFunc func(ctx context.Context)

// Watch starts an fsnotify watcher on root and processes file change events
// until ctx is cancelled. Events are debounced; when the timer fires the tree
// is re-listed and rebuild is called only if some checksum changed.
//
// New directories created at runtime are automatically added to the watch
// list.
func Watch(ctx context.Context, src storage.Provider, root string, debounce time.Duration, logger *slog.Logger, rebuild RebuildFunc) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root); err != nil {
		return err
	}

	last := map[string]string{}
	if files, err := src.List(""); err == nil {
		last = Fingerprint(files)
	}

	logger.Info("watcher: started", slog.String("root", root))

	var timer *time.Timer
	var timerCh <-chan time.Time

	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(debounce)
			timerCh = timer.C
		} else {
			timer.Reset(debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-timerCh:
			files, err := src.List("")
			if err != nil {
				logger.Warn("watcher: list failed", slog.String("error", err.Error()))
				continue
			}
			next := Fingerprint(files)
			if !Changed(last, next) {
				logger.Debug("watcher: no content change")
				continue
			}
			last = next
			logger.Info("watcher: rebuilding", slog.Int("files", len(files)))
			rebuild(ctx)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			absPath := ev.Name

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, absPath); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", absPath),
							slog.String("error", addErr.Error()))
					} else {
						logger.Debug("watcher: watching new dir", slog.String("path", absPath))
					}
					schedule()
					continue
				}
			}

			rel, relErr := filepath.Rel(root, absPath)
			if relErr != nil || strings.HasPrefix(filepath.Base(rel), ".anubis-tmp-") || src.Ignored(rel) {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				logger.Debug("watcher: event", slog.String("path", rel), slog.String("op", ev.Op.String()))
				schedule()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
