package index

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/grayside/grayside/internal/storage"
)

// watcherTestEnv sets up a content dir, storage, and DB for watcher tests.
func watcherTestEnv(t *testing.T) (string, storage.Provider, *DB) {
	t.Helper()
	contentDir := t.TempDir()
	store, err := storage.NewFS(contentDir)
	if err != nil {
		t.Fatal(err)
	}
	return contentDir, store, testDB(t)
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) record(kind, path string) {
	l.mu.Lock()
	l.events = append(l.events, kind+":"+filepath.ToSlash(path))
	l.mu.Unlock()
}

func (l *eventLog) has(want string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.events {
		if e == want {
			return true
		}
	}
	return false
}

func startWatch(t *testing.T, db *DB, store storage.Provider, log *eventLog) {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = Watch(ctx, db, store, logger, log.record)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	time.Sleep(100 * time.Millisecond)
}

func TestWatcher_NewFileIndexed(t *testing.T) {
	dir, store, db := watcherTestEnv(t)
	postDir := filepath.Join(dir, "2020---new-post")
	if err := os.MkdirAll(postDir, 0o755); err != nil {
		t.Fatal(err)
	}
	log := &eventLog{}
	startWatch(t, db, store, log)

	_ = os.WriteFile(filepath.Join(postDir, "index.md"), []byte("# New"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		n, err := db.GetBySlug("/new-post/")
		return err == nil && n.Title == "New"
	}, "new file not indexed by watcher")

	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		return log.has("created:2020---new-post/index.md") || log.has("updated:2020---new-post/index.md")
	}, "expected an index event for the new file")
}

func TestWatcher_FileModified(t *testing.T) {
	dir, store, db := watcherTestEnv(t)
	p := filepath.Join(dir, "x---mod", "index.md")
	_ = os.MkdirAll(filepath.Dir(p), 0o755)
	_ = os.WriteFile(p, []byte("# Original"), 0o644)
	if _, err := Sync(db, store, quietLogger()); err != nil {
		t.Fatal(err)
	}
	log := &eventLog{}
	startWatch(t, db, store, log)

	_ = os.WriteFile(p, []byte("# Modified"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		n, err := db.GetBySlug("/mod/")
		return err == nil && n.Title == "Modified"
	}, "modified file not re-indexed")
}

func TestWatcher_FileDeleted(t *testing.T) {
	dir, store, db := watcherTestEnv(t)
	p := filepath.Join(dir, "x---gone", "index.md")
	_ = os.MkdirAll(filepath.Dir(p), 0o755)
	_ = os.WriteFile(p, []byte("# Gone"), 0o644)
	_, _ = Sync(db, store, quietLogger())
	log := &eventLog{}
	startWatch(t, db, store, log)

	_ = os.Remove(p)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum(filepath.Join("x---gone", "index.md"))
		return cs == ""
	}, "deleted file still in index")
	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		return log.has("deleted:x---gone/index.md")
	}, "expected deleted event")
}

func TestWatcher_RejectedFileReported(t *testing.T) {
	dir, store, db := watcherTestEnv(t)
	aboutDir := filepath.Join(dir, "about")
	_ = os.MkdirAll(aboutDir, 0o755)
	log := &eventLog{}
	startWatch(t, db, store, log)

	_ = os.WriteFile(filepath.Join(aboutDir, "index.md"), []byte("# About"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return log.has("rejected:about/index.md")
	}, "file without slug delimiter should be rejected")

	if cs, _ := db.GetChecksum(filepath.Join("about", "index.md")); cs != "" {
		t.Error("rejected file should not be indexed")
	}
}

func TestWatcher_NewDirectory(t *testing.T) {
	dir, store, db := watcherTestEnv(t)
	log := &eventLog{}
	startWatch(t, db, store, log)

	noteDir := filepath.Join(dir, "notes", "2019---lti")
	_ = os.MkdirAll(noteDir, 0o755)
	time.Sleep(200 * time.Millisecond)
	_ = os.WriteFile(filepath.Join(noteDir, "index.md"), []byte("# LTI"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		n, err := db.GetBySlug("/notes/lti/")
		return err == nil && n.Layout == "note"
	}, "note in new directory not indexed")
}

func TestWatcher_DirectoryRenameReconciles(t *testing.T) {
	dir, store, db := watcherTestEnv(t)
	oldDir := filepath.Join(dir, "2018---old-name")
	_ = os.MkdirAll(oldDir, 0o755)
	_ = os.WriteFile(filepath.Join(oldDir, "index.md"), []byte("# Post"), 0o644)
	_, _ = Sync(db, store, quietLogger())
	log := &eventLog{}
	startWatch(t, db, store, log)

	_ = os.Rename(oldDir, filepath.Join(dir, "2018---new-name"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		_, err := db.GetBySlug("/new-name/")
		return err == nil
	}, "renamed directory not re-indexed under new slug")
	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		_, err := db.GetBySlug("/old-name/")
		return err != nil
	}, "old slug still indexed after rename")
}

func TestWatcher_UnchangedWriteIgnored(t *testing.T) {
	dir, store, db := watcherTestEnv(t)
	p := filepath.Join(dir, "x---same", "index.md")
	_ = os.MkdirAll(filepath.Dir(p), 0o755)
	_ = os.WriteFile(p, []byte("# Same"), 0o644)
	_, _ = Sync(db, store, quietLogger())
	log := &eventLog{}
	startWatch(t, db, store, log)

	_ = os.WriteFile(p, []byte("# Same"), 0o644)
	time.Sleep(300 * time.Millisecond)
	if log.has("updated:x---same/index.md") {
		t.Error("rewriting identical content should not emit an update")
	}

	_ = os.WriteFile(p, []byte("# Different"), 0o644)
	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return log.has("updated:x---same/index.md")
	}, "changed content should emit an update")
}

func TestWatcher_SkipsDotDirectories(t *testing.T) {
	dir, store, db := watcherTestEnv(t)
	hidden := filepath.Join(dir, ".git", "2020---hidden")
	_ = os.MkdirAll(hidden, 0o755)
	log := &eventLog{}
	startWatch(t, db, store, log)

	_ = os.WriteFile(filepath.Join(hidden, "index.md"), []byte("# Hidden"), 0o644)
	time.Sleep(300 * time.Millisecond)
	if _, err := db.GetBySlug("/hidden/"); err == nil {
		t.Error("files under a dot-directory should not be indexed by the watcher")
	}
}
