package index

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/grayside/grayside/internal/checksum"
	"github.com/grayside/grayside/internal/storage"
)

// Event kinds passed to EventCallback.
const (
	EventCreated  = "created"
	EventUpdated  = "updated"
	EventDeleted  = "deleted"
	EventRejected = "rejected"
)

// EventCallback is called after a watcher-driven index change.
// kind is one of the Event* constants; path is relative to the content root.
type EventCallback func(kind string, path string)

const reconcileDelay = 200 * time.Millisecond

type watcher struct {
	db     *DB
	store  storage.Provider
	logger *slog.Logger
	cb     EventCallback
	fsw    *fsnotify.Watcher
}

// Watch keeps the index in step with the content tree until ctx is
// cancelled, calling cb (if non-nil) after each index change and for every
// file that fails ingestion.
//
// Directories created at runtime are watched and indexed as they appear.
// Renames only report the old path, so they schedule a reconciliation pass
// against the tree. Dot-directories such as .git are not watched.
func Watch(ctx context.Context, db *DB, store storage.Provider, logger *slog.Logger, cb EventCallback) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("index: watcher: %w", err)
	}
	defer fsw.Close()

	w := &watcher{db: db, store: store, logger: logger, cb: cb, fsw: fsw}
	if err := w.addDirs(store.Root()); err != nil {
		return fmt.Errorf("index: watch %s: %w", store.Root(), err)
	}
	logger.Info("watcher: started", slog.String("root", store.Root()))

	reconcile := time.NewTimer(reconcileDelay)
	reconcile.Stop()
	defer reconcile.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("watcher: stopped")
			return nil

		case <-reconcile.C:
			w.reconcile()

		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if w.handle(ev) {
				reconcile.Reset(reconcileDelay)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", err.Error()))
		}
	}
}

// handle applies one fsnotify event and reports whether the tree needs a
// reconciliation pass.
func (w *watcher) handle(ev fsnotify.Event) bool {
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			w.newDir(ev.Name)
			return false
		}
	}

	rel, err := filepath.Rel(w.store.Root(), ev.Name)
	if err != nil {
		return false
	}
	if !w.store.Match(rel) {
		// A renamed or removed directory only reports itself.
		return ev.Has(fsnotify.Rename) || ev.Has(fsnotify.Remove)
	}

	switch {
	case ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write):
		kind := EventUpdated
		if ev.Has(fsnotify.Create) {
			kind = EventCreated
		}
		w.index(rel, kind)
		return false
	case ev.Has(fsnotify.Remove):
		w.remove(rel)
		return false
	case ev.Has(fsnotify.Rename):
		w.remove(rel)
		return true
	}
	return false
}

func (w *watcher) notify(kind, path string) {
	if w.cb != nil {
		w.cb(kind, path)
	}
}

// index ingests rel unless its content is unchanged since the last upsert.
func (w *watcher) index(rel, kind string) {
	data, err := w.store.Read(rel)
	if err != nil {
		w.logger.Warn("watcher: read failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	if cs, _ := w.db.GetChecksum(rel); checksum.Matches(data, cs) {
		return
	}
	if err := indexFile(w.db, w.store, rel, data); err != nil {
		w.logger.Warn("watcher: index failed", slog.String("path", rel), slog.String("error", err.Error()))
		w.reject(rel)
		return
	}
	w.logger.Debug("watcher: indexed", slog.String("path", rel), slog.String("op", kind))
	w.notify(kind, rel)
}

func (w *watcher) remove(rel string) {
	if cs, _ := w.db.GetChecksum(rel); cs == "" {
		return
	}
	if err := w.db.DeleteNode(rel); err != nil {
		w.logger.Warn("watcher: delete failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	w.logger.Debug("watcher: deleted", slog.String("path", rel))
	w.notify(EventDeleted, rel)
}

// reject drops a node that no longer ingests cleanly so no page is built
// from its stale revision, then reports the rejection.
func (w *watcher) reject(rel string) {
	w.remove(rel)
	w.notify(EventRejected, rel)
}

// newDir starts watching a directory created at runtime and indexes the
// content already inside it.
func (w *watcher) newDir(abs string) {
	if err := w.addDirs(abs); err != nil {
		w.logger.Warn("watcher: add new dir failed", slog.String("path", abs), slog.String("error", err.Error()))
	}
	_ = filepath.WalkDir(abs, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(w.store.Root(), p)
		if err != nil || !w.store.Match(rel) {
			return nil
		}
		w.index(rel, EventCreated)
		return nil
	})
}

// reconcile removes index entries whose files are gone and indexes files the
// index has not seen at their current checksum.
func (w *watcher) reconcile() {
	checksums, err := w.db.AllChecksums()
	if err != nil {
		w.logger.Warn("watcher: reconcile checksums failed", slog.String("error", err.Error()))
		return
	}
	metas, err := w.store.List("")
	if err != nil {
		w.logger.Warn("watcher: reconcile list failed", slog.String("error", err.Error()))
		return
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.Path] = struct{}{}
		if checksums[m.Path] != m.Checksum {
			w.index(m.Path, EventCreated)
		}
	}
	for p := range checksums {
		if _, ok := disk[p]; !ok {
			w.remove(p)
		}
	}
}

// addDirs watches root and every directory below it except dot-directories.
func (w *watcher) addDirs(root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.fsw.Add(p)
	})
}
