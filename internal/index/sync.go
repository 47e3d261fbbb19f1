package index

import (
	"log/slog"
	"time"

	"github.com/starford/siena/internal/checksum"
	"github.com/starford/siena/internal/storage"
)

// Sync walks every collection of the store and brings the index up to date:
//   - new/changed files are decoded and upserted
//   - files removed from disk are deleted from the index
//
// Files that fail to decode are logged and left out.
func Sync(db *DB, store *storage.FS, logger *slog.Logger) error {
	return reconcile(db, store, logger, nil)
}

func reconcile(db *DB, store *storage.FS, logger *slog.Logger, cb EventCallback) error {
	if logger == nil {
		logger = slog.Default()
	}
	collections, err := store.Collections()
	if err != nil {
		return err
	}
	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[Ref]struct{})
	for _, c := range collections {
		entries, err := store.List(c)
		if err != nil {
			return err
		}
		for _, e := range entries {
			ref := Ref{Collection: e.Collection, FileName: e.FileName}
			disk[ref] = struct{}{}

			old, known := checksums[ref]
			if known && old == e.Checksum {
				continue
			}
			if _, err := indexFile(db, store, ref); err != nil {
				logger.Warn("sync: index failed", slog.String("path", ref.String()), slog.String("error", err.Error()))
				continue
			}
			logger.Debug("sync: indexed", slog.String("path", ref.String()))
			notify(cb, kindFor(known), ref)
		}
	}

	// Remove stale entries.
	for ref := range checksums {
		if _, ok := disk[ref]; ok {
			continue
		}
		if _, err := db.Remove(ref); err != nil {
			logger.Warn("sync: delete failed", slog.String("path", ref.String()), slog.String("error", err.Error()))
			continue
		}
		logger.Debug("sync: removed stale", slog.String("path", ref.String()))
		notify(cb, EventDeleted, ref)
	}
	return nil
}

// indexFile reads one record file, upserts it and returns its checksum. The
// checksum covers the exact bytes that were decoded.
func indexFile(db *DB, store *storage.FS, ref Ref) (string, error) {
	data, err := store.Read(ref.Collection, ref.FileName)
	if err != nil {
		return "", err
	}
	rec, err := storage.DecodeRecord(ref.Collection, ref.FileName, data)
	if err != nil {
		return "", err
	}
	sum := checksum.Sum(data)
	return sum, db.Upsert(Row{Record: rec, Checksum: sum, UpdatedAt: time.Now()})
}

func kindFor(known bool) string {
	if known {
		return EventUpdated
	}
	return EventCreated
}
