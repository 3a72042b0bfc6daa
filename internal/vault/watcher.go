package vault

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceDelay coalesces bursts of filesystem events for one file (editors
// typically write several times per save).
const debounceDelay = 300 * time.Millisecond

// Watcher keeps the index in sync with a notes directory: created and
// modified .md/.txt files are re-indexed, deleted files are removed.
type Watcher struct {
	store *Store
	root  string

	mu      sync.Mutex
	fsw     *fsnotify.Watcher
	timers  map[string]*time.Timer
	stopped bool
}

// NewWatcher creates a watcher over root, indexing into store.
func NewWatcher(store *Store, root string) *Watcher {
	return &Watcher{
		store:  store,
		root:   root,
		timers: make(map[string]*time.Timer),
	}
}

// Start performs an initial full index of root, then watches it (and its
// subdirectories) until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.fsw = fsw
	w.mu.Unlock()

	if err := w.indexAll(ctx); err != nil {
		slog.Warn("initial vault index incomplete", "root", w.root, "error", err)
	}

	err = filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fsw.Add(path)
		}
		return nil
	})
	if err != nil {
		fsw.Close()
		return err
	}

	go w.loop(ctx)
	slog.Info("vault watcher started", "root", w.root)
	return nil
}

// Stop ends the watch.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	w.stopped = true
	for _, t := range w.timers {
		t.Stop()
	}
	if w.fsw != nil {
		w.fsw.Close()
	}
}

func (w *Watcher) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ctx, ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Warn("vault watcher error", "error", err)
		}
	}
}

func (w *Watcher) handle(ctx context.Context, ev fsnotify.Event) {
	if ev.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.fsw.Add(ev.Name); err != nil {
				slog.Warn("failed to watch new directory", "path", ev.Name, "error", err)
			}
			return
		}
	}

	if !indexable(ev.Name) {
		return
	}

	switch {
	case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
		w.debounce(ev.Name, func() {
			if err := w.indexFile(ctx, ev.Name); err != nil {
				slog.Warn("failed to index file", "path", ev.Name, "error", err)
			}
		})
	case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		if err := w.store.Remove(ctx, w.docID(ev.Name)); err != nil {
			slog.Warn("failed to remove document", "path", ev.Name, "error", err)
		}
	}
}

func (w *Watcher) debounce(path string, fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	if t, ok := w.timers[path]; ok {
		t.Stop()
	}
	w.timers[path] = time.AfterFunc(debounceDelay, fn)
}

func (w *Watcher) indexAll(ctx context.Context) error {
	return filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !indexable(path) {
			return nil
		}
		return w.indexFile(ctx, path)
	})
}

func (w *Watcher) indexFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	doc := Document{
		ID:      w.docID(path),
		Title:   strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Content: string(data),
	}
	n, err := w.store.Index(ctx, doc)
	if err != nil {
		return err
	}
	slog.Debug("indexed document", "doc", doc.ID, "chunks", n)
	return nil
}

func (w *Watcher) docID(path string) string {
	if rel, err := filepath.Rel(w.root, path); err == nil {
		return rel
	}
	return path
}

func indexable(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".txt":
		return true
	}
	return false
}
