package index

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/siena/internal/record"
	"github.com/starford/siena/internal/storage"
)

// Event kinds passed to an EventCallback.
const (
	EventCreated = "created"
	EventUpdated = "updated"
	EventDeleted = "deleted"
)

// EventCallback is called after a watcher-driven index change.
type EventCallback func(kind, collection, id string)

func notify(cb EventCallback, kind string, ref Ref) {
	if cb != nil {
		cb(kind, ref.Collection, record.IDFromFileName(ref.FileName))
	}
}

const reconcileDelay = 200 * time.Millisecond

// Watch starts an fsnotify watcher on the store root and its collection
// directories and keeps the index in step until ctx is cancelled. It calls
// cb (if non-nil) after each index mutation.
//
// Collections created at runtime are added to the watch list. Renames and
// removed collections trigger a debounced reconciliation pass.
func Watch(ctx context.Context, db *DB, store *storage.FS, logger *slog.Logger, cb EventCallback) error {
	if logger == nil {
		logger = slog.Default()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	root := store.Root()
	if err := w.Add(root); err != nil {
		return err
	}
	collections, err := store.Collections()
	if err != nil {
		return err
	}
	for _, c := range collections {
		if err := w.Add(filepath.Join(root, c)); err != nil {
			return err
		}
	}

	logger.Info("watcher: started", slog.String("root", root))

	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(reconcileDelay)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(reconcileDelay)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			if err := reconcile(db, store, logger, cb); err != nil {
				logger.Warn("watcher: reconcile failed", slog.String("error", err.Error()))
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			rel, relErr := filepath.Rel(root, ev.Name)
			if relErr != nil {
				continue
			}
			parts := strings.Split(rel, string(filepath.Separator))
			if strings.HasPrefix(parts[0], ".") {
				continue
			}

			switch len(parts) {
			case 1:
				if ev.Op&fsnotify.Create != 0 {
					if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
						if addErr := w.Add(ev.Name); addErr != nil {
							logger.Warn("watcher: add collection failed",
								slog.String("collection", rel),
								slog.String("error", addErr.Error()))
						} else {
							logger.Debug("watcher: watching collection", slog.String("collection", rel))
						}
						// Files may have landed before the watch was added.
						scheduleReconcile()
					}
					continue
				}
				if ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
					scheduleReconcile()
				}

			case 2:
				ref := Ref{Collection: parts[0], FileName: parts[1]}
				if !record.HasExtension(ref.FileName) {
					continue
				}
				handleFileEvent(db, store, logger, cb, ev.Op, ref)
				if ev.Op&fsnotify.Rename != 0 {
					// fsnotify fires Rename on the old path only; the new
					// path arrives as a Create if it stays in a watched dir.
					scheduleReconcile()
				}
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

func handleFileEvent(db *DB, store *storage.FS, logger *slog.Logger, cb EventCallback, op fsnotify.Op, ref Ref) {
	switch {
	case op&(fsnotify.Create|fsnotify.Write) != 0:
		old, err := db.GetChecksum(ref)
		if err != nil {
			logger.Warn("watcher: checksum failed", slog.String("path", ref.String()), slog.String("error", err.Error()))
			return
		}
		sum, err := indexFile(db, store, ref)
		if err != nil {
			logger.Warn("watcher: index failed", slog.String("path", ref.String()), slog.String("error", err.Error()))
			return
		}
		if sum == old {
			return
		}
		kind := kindFor(old != "")
		logger.Debug("watcher: indexed", slog.String("path", ref.String()), slog.String("op", kind))
		notify(cb, kind, ref)

	case op&(fsnotify.Remove|fsnotify.Rename) != 0:
		existed, err := db.Remove(ref)
		if err != nil {
			logger.Warn("watcher: delete failed", slog.String("path", ref.String()), slog.String("error", err.Error()))
			return
		}
		if existed {
			logger.Debug("watcher: deleted", slog.String("path", ref.String()))
			notify(cb, EventDeleted, ref)
		}
	}
}
