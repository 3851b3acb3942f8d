package scan

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dusk-indust/codegraph/internal/graph"
)

// DefaultDebounce batches rapid successive events on the same files into one
// change set.
const DefaultDebounce = 500 * time.Millisecond

// Watcher converts filesystem events under a scanner's root into change
// sets. Events are debounced: a burst of writes produces one ChangeSet.
type Watcher struct {
	scanner  *Scanner
	debounce time.Duration
	log      *slog.Logger
}

// NewWatcher returns a Watcher over the scanner's root.
func NewWatcher(scanner *Scanner, debounce time.Duration, log *slog.Logger) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if log == nil {
		log = slog.Default()
	}
	return &Watcher{scanner: scanner, debounce: debounce, log: log}
}

// Run watches until the context is cancelled, invoking apply with one
// ChangeSet per debounce window. apply errors are logged, not fatal: the
// watch continues and a later change set retries the affected files.
func (w *Watcher) Run(ctx context.Context, apply func(context.Context, graph.ChangeSet) error) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer fsw.Close()

	if err := w.addRecursive(fsw, w.scanner.Root()); err != nil {
		return err
	}
	w.log.Info("watching", "root", w.scanner.Root(), "debounce", w.debounce)

	pending := make(map[string]bool)
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(fsw, event, pending)
			if len(pending) > 0 {
				timer.Reset(w.debounce)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", "error", err)

		case <-timer.C:
			cs := w.drain(pending)
			if cs.Empty() {
				continue
			}
			if err := apply(ctx, cs); err != nil {
				w.log.Error("change set failed", "error", err)
			}
		}
	}
}

// handleEvent records a relevant event in the pending set and keeps the
// directory watch list current.
func (w *Watcher) handleEvent(fsw *fsnotify.Watcher, event fsnotify.Event, pending map[string]bool) {
	rel, ok := w.scanner.Rel(event.Name)
	if !ok || w.scanner.Excluded(rel) {
		return
	}

	// New directories need their own watch.
	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(fsw, event.Name); err != nil {
				w.log.Warn("watch add failed", "path", rel, "error", err)
			}
			return
		}
	}

	if _, isSource := w.scanner.LanguageOf(event.Name); !isSource {
		return
	}
	if event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Write) ||
		event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename) {
		pending[event.Name] = true
	}
}

// drain classifies the pending paths into a ChangeSet. Every surviving file
// goes through the modify path, which is delete-then-extract, so a
// misclassified create cannot leave stale nodes behind.
func (w *Watcher) drain(pending map[string]bool) graph.ChangeSet {
	var cs graph.ChangeSet
	for abs := range pending {
		delete(pending, abs)
		rel, ok := w.scanner.Rel(abs)
		if !ok {
			continue
		}

		if _, err := os.Stat(abs); err != nil {
			cs.Deleted = append(cs.Deleted, graph.FileMeta{
				Repo: w.scanner.Repo(),
				Path: rel,
			})
			continue
		}

		in, err := w.scanner.Load(abs)
		if err != nil {
			w.log.Warn("skipping unreadable file", "path", rel, "error", err)
			continue
		}
		cs.Modified = append(cs.Modified, in)
	}
	return cs
}

func (w *Watcher) addRecursive(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if rel, ok := w.scanner.Rel(path); ok && rel != "." && w.scanner.Excluded(rel) {
			return filepath.SkipDir
		}
		return fsw.Add(path)
	})
}
