// Package watcher reports changes to shader files under the workspace root.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"shaderls/internal/logging"
	"shaderls/internal/search/grep"
)

// maxWatches limits directory watches to avoid file descriptor exhaustion.
const maxWatches = 1000

// Watcher calls onChange with the absolute path of every shader file that
// is written, created, removed or renamed.
type Watcher struct {
	root     string
	matcher  *grep.Matcher
	onChange func(path string)
	fsw      *fsnotify.Watcher
	logger   *slog.Logger

	mu      sync.Mutex
	watches int

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a watcher for root. Call Start to begin watching.
func New(root string, matcher *grep.Matcher, onChange func(path string), logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	return &Watcher{
		root:     root,
		matcher:  matcher,
		onChange: onChange,
		fsw:      fsw,
		logger:   logging.Component(logger, "watcher"),
		done:     make(chan struct{}),
	}, nil
}

// Start adds watches for the directory tree and runs the event loop until
// ctx is cancelled or Close is called.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addTree(w.root); err != nil {
		return err
	}
	ctx, w.cancel = context.WithCancel(ctx)
	go w.loop(ctx)
	w.logger.Debug("watching", "root", w.root, "dirs", w.watchCount())
	return nil
}

// Close stops the loop and releases the watches.
func (w *Watcher) Close() error {
	if w.cancel != nil {
		w.cancel()
		<-w.done
	}
	return w.fsw.Close()
}

func (w *Watcher) watchCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.watches
}

// addTree watches dir and every directory below it the matcher does not skip.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !entry.IsDir() {
			return nil
		}
		if w.matcher.SkipDir(w.rel(path)) {
			return filepath.SkipDir
		}

		w.mu.Lock()
		defer w.mu.Unlock()
		if w.watches >= maxWatches {
			w.logger.Warn("reached max watches limit", "limit", maxWatches, "dir", path)
			return filepath.SkipAll
		}
		if err := w.fsw.Add(path); err != nil {
			w.logger.Debug("cannot watch directory", "dir", path, "error", err)
			return nil
		}
		w.watches++
		return nil
	})
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)
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
			w.logger.Error("watcher error", "error", err)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(event.Name); err != nil {
				w.logger.Debug("cannot watch new directory", "dir", event.Name, "error", err)
			}
			return
		}
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}
	if !w.matcher.Match(w.rel(event.Name)) {
		return
	}

	path := filepath.Clean(event.Name)
	w.logger.Debug("file changed", "path", path, "op", event.Op.String())
	w.onChange(path)
}

func (w *Watcher) rel(path string) string {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}
