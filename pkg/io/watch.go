package io

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long Watch waits for writes to settle.
const DefaultDebounce = 200 * time.Millisecond

// Watch calls fn with the freshly decoded dataset each time the file at path
// is written, created or renamed into place. Bursts of events within the
// debounce window produce a single call. Decode failures are passed to fn
// as well so the caller can keep serving the previous dataset.
//
// The parent directory is watched rather than the file so that editors
// which save by rename keep being tracked. Watch blocks until ctx is
// cancelled and then returns nil.
func Watch(ctx context.Context, path string, debounce time.Duration, fn func(Dataset, error)) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}
	defer w.Close()
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}

	timer := time.NewTimer(debounce)
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
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				timer.Reset(debounce)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			fn(Dataset{}, fmt.Errorf("watch %s: %w", path, err))
		case <-timer.C:
			fn(ReadFile(abs))
		}
	}
}
