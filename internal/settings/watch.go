package settings

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"invisibility-cloak/internal/colorrange"

	"github.com/fsnotify/fsnotify"
)

// settle coalesces the burst of events editors produce for one save.
const settle = 150 * time.Millisecond

// Watch calls fn with the reloaded model every time the file changes on
// disk, until ctx is cancelled. Files that fail to parse are logged and
// skipped. The parent directory is watched so replace-by-rename saves are
// seen.
func (f *File) Watch(ctx context.Context, fn func(colorrange.Model)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create settings watcher: %w", err)
	}
	defer w.Close()

	dir := filepath.Dir(f.path)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	target := filepath.Clean(f.path)

	timer := time.NewTimer(settle)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			timer.Reset(settle)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			f.log.Warn("settings watcher error", "error", err)

		case <-timer.C:
			m, ok, err := f.Load()
			switch {
			case err != nil:
				f.log.Warn("ignoring settings change", "path", f.path, "error", err)
			case ok:
				f.log.Info("settings reloaded", "path", f.path, "model", m.String())
				fn(m)
			}
		}
	}
}
