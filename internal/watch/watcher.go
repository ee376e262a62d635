package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/flanksource/commons/logger"

	"github.com/flanksource/code-intel/internal/index"
)

// DefaultDebounce is the quiet period after the last event on a file before
// it is re-indexed. Editors often produce bursts of writes per save.
const DefaultDebounce = 200 * time.Millisecond

// Watcher keeps the index current while files change: writes and creates
// re-index the file (content addressing inserts the new fingerprint; the old
// one simply ages out), removes drop the file's metadata.
type Watcher struct {
	indexer  *index.Indexer
	root     string
	debounce time.Duration

	mu      sync.Mutex
	pending map[string]fsnotify.Op
}

// New creates a watcher over root backed by the given indexer.
func New(root string, indexer *index.Indexer, debounce time.Duration) (*Watcher, error) {
	if indexer == nil {
		return nil, fmt.Errorf("watch: indexer is required")
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		indexer:  indexer,
		root:     root,
		debounce: debounce,
		pending:  make(map[string]fsnotify.Op),
	}, nil
}

// Run watches until the context is canceled.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fsw.Close()

	if err := addWatchTree(fsw, w.root); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.root, err)
	}

	logger.Infof("Watching %s for changes", w.root)

	flush := time.NewTicker(w.debounce)
	defer flush.Stop()

	for {
		select {
		case <-ctx.Done():
			w.flush()
			return ctx.Err()

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(fsw, event)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logger.Warnf("watch error: %v", err)

		case <-flush.C:
			w.flush()
		}
	}
}

func (w *Watcher) handleEvent(fsw *fsnotify.Watcher, event fsnotify.Event) {
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := addWatchTree(fsw, event.Name); err != nil {
				logger.Warnf("failed to watch new directory %s: %v", event.Name, err)
			}
			return
		}
	}

	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	if !w.indexer.Supports(event.Name) {
		return
	}

	w.mu.Lock()
	w.pending[event.Name] |= event.Op
	w.mu.Unlock()
}

// flush processes all events accumulated during the debounce window.
func (w *Watcher) flush() {
	w.mu.Lock()
	pending := w.pending
	w.pending = make(map[string]fsnotify.Op)
	w.mu.Unlock()

	for path, op := range pending {
		switch {
		case op&(fsnotify.Remove|fsnotify.Rename) != 0 && !exists(path):
			if err := w.indexer.RemoveFile(path); err != nil {
				logger.Warnf("failed to drop metadata for %s: %v", path, err)
			} else {
				logger.Debugf("dropped metadata for removed file %s", path)
			}
		default:
			hit, err := w.indexer.IndexFile(path)
			if err != nil {
				logger.Warnf("failed to re-index %s: %v", path, err)
				continue
			}
			if hit {
				logger.Debugf("re-indexed %s from cache", path)
			} else {
				logger.Infof("re-indexed %s", path)
			}
		}
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

var skipDirs = map[string]bool{
	".git":         true,
	"vendor":       true,
	"node_modules": true,
	"__pycache__":  true,
}

func addWatchTree(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if skipDirs[d.Name()] {
			return filepath.SkipDir
		}
		return fsw.Add(path)
	})
}
