// Package watcher reports changes to sentence files so a cached corpus can be
// dropped when its file is rewritten, replaced or removed.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// ChangeFunc receives the corpus key (file name) that changed.
type ChangeFunc func(key string)

type Watcher struct {
	dir      string
	fsw      *fsnotify.Watcher
	onChange ChangeFunc
	logger   *slog.Logger
}

// New starts watching dir. Call Run to deliver events.
func New(dir string, onChange ChangeFunc) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watching %s: %w", dir, err)
	}
	return &Watcher{
		dir:      dir,
		fsw:      fsw,
		onChange: onChange,
		logger:   slog.Default().With("component", "corpus-watcher", "dir", dir),
	}, nil
}

// Run dispatches change events until ctx is cancelled, then closes the
// underlying watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()
	w.logger.Info("watching corpus directory")
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) &&
				!ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
				continue
			}
			key := filepath.Base(ev.Name)
			w.logger.Debug("corpus file changed", "key", key, "op", ev.Op.String())
			w.onChange(key)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watch error", "error", err)
		}
	}
}
