package index

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/grayside/grayside/internal/content"
	"github.com/grayside/grayside/internal/storage"
)

// SyncReport summarises one Sync pass.
type SyncReport struct {
	Indexed int
	Removed int
	// Failed maps content paths to the reason they could not be indexed,
	// e.g. a directory name without a slug delimiter.
	Failed map[string]error
}

// Err joins every failure into one error, or returns nil.
func (r SyncReport) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	paths := make([]string, 0, len(r.Failed))
	for p := range r.Failed {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	errs := make([]error, 0, len(paths))
	for _, p := range paths {
		errs = append(errs, r.Failed[p])
	}
	return fmt.Errorf("index: %d content file(s) rejected: %w", len(paths), errors.Join(errs...))
}

// Sync walks the content tree and brings the index up to date:
//   - new/changed files are ingested and upserted
//   - files that fail ingestion are reported and dropped from the index
//   - files removed from disk are deleted from the index
//
// Slugs depend on where the tree lives (a "notes" ancestor changes them), so
// when the content root differs from the one last synced the index is
// rebuilt from scratch instead of trusting content checksums.
func Sync(db *DB, store storage.Provider, logger *slog.Logger) (SyncReport, error) {
	report := SyncReport{Failed: make(map[string]error)}

	metas, err := store.List("")
	if err != nil {
		return report, err
	}

	prevRoot, err := db.ContentRoot()
	if err != nil {
		return report, err
	}
	if prevRoot != store.Root() {
		if prevRoot != "" {
			logger.Info("sync: content root moved, reindexing",
				slog.String("from", prevRoot), slog.String("to", store.Root()))
		}
		if err := db.Reset(); err != nil {
			return report, err
		}
		if err := db.SetContentRoot(store.Root()); err != nil {
			return report, err
		}
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return report, err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.Path] = struct{}{}

		if checksums[m.Path] == m.Checksum {
			continue
		}

		data, err := store.Read(m.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			report.Failed[m.Path] = err
			continue
		}
		if err := indexFile(db, store, m.Path, data); err != nil {
			logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			report.Failed[m.Path] = err
			if _, known := checksums[m.Path]; known {
				if delErr := db.DeleteNode(m.Path); delErr != nil {
					logger.Warn("sync: drop rejected failed", slog.String("path", m.Path), slog.String("error", delErr.Error()))
					report.Failed[m.Path] = errors.Join(err, delErr)
				}
			}
			continue
		}
		report.Indexed++
		logger.Debug("sync: indexed", slog.String("path", m.Path))
	}

	// Remove stale entries.
	for p := range checksums {
		if _, ok := disk[p]; !ok {
			if err := db.DeleteNode(p); err != nil {
				logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			} else {
				report.Removed++
				logger.Debug("sync: removed stale", slog.String("path", p))
			}
		}
	}

	return report, nil
}

// indexFile ingests data and upserts the node into the DB.
func indexFile(db *DB, store storage.Provider, path string, data []byte) error {
	abs, err := store.Abs(path)
	if err != nil {
		return err
	}
	n, err := content.Ingest(path, abs, data)
	if err != nil {
		return err
	}
	return db.UpsertNode(n)
}
