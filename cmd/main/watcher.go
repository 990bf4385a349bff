package main

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/CTAG07/folio/pkg/render"
	"github.com/fsnotify/fsnotify"
)

// refreshDelay is how long the watcher waits after the last event
// before reloading, so one editor save or git checkout produces a
// single refresh.
const refreshDelay = 300 * time.Millisecond

// Watcher reloads the native engine when files under the views root
// change.
type Watcher struct {
	logger *slog.Logger
	native *render.NativeEngine
	fsw    *fsnotify.Watcher

	mu    sync.Mutex
	timer *time.Timer
}

func NewWatcher(logger *slog.Logger, native *render.NativeEngine) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	return &Watcher{logger: logger, native: native, fsw: fsw}, nil
}

// Start watches root and every nested directory, then processes events
// until the context is canceled or the watcher is closed.
func (w *Watcher) Start(ctx context.Context, root string) error {
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.fsw.Add(path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", root, err)
	}

	go w.loop(ctx)
	w.logger.Info("Watching views for changes", "root", root)
	return nil
}

func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	return w.fsw.Close()
}

func (w *Watcher) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("File watcher error", "error", err)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	// New directories must join the watch set before their contents
	// produce events.
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err = w.fsw.Add(event.Name); err != nil {
				w.logger.Warn("Failed to watch new directory", "path", event.Name, "error", err)
			}
			w.schedule()
			return
		}
	}
	if !templateFile(event.Name) {
		return
	}
	w.schedule()
}

// schedule arms (or re-arms) the debounce timer so one refresh covers
// a burst of events.
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(refreshDelay, w.refresh)
}

func (w *Watcher) refresh() {
	if err := w.native.Refresh(); err != nil {
		w.logger.Error("Failed to refresh view templates", "error", err)
		return
	}
	w.logger.Info("View templates reloaded")
}

func templateFile(path string) bool {
	base := filepath.Base(path)
	return strings.Contains(base, ".tmpl.") || strings.Contains(base, ".part.")
}
