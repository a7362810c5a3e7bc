package persona

import (
	"context"
	"crypto/sha256"
	"errors"
	"log/slog"
	"os"
	"time"
)

// Watcher polls the persona file and reloads the Store when its content
// changes. A file that fails to parse keeps the previous persona active.
type Watcher struct {
	path     string
	interval time.Duration
	store    *Store
	logger   *slog.Logger

	lastHash [sha256.Size]byte
}

// NewWatcher creates a watcher for path. An interval <= 0 defaults to 5s.
func NewWatcher(path string, interval time.Duration, store *Store, logger *slog.Logger) *Watcher {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		path:     path,
		interval: interval,
		store:    store,
		logger:   logger.With("component", "persona-watcher"),
	}
}

// Start blocks until ctx is cancelled, checking the file every interval.
func (w *Watcher) Start(ctx context.Context) {
	if data, err := os.ReadFile(w.path); err == nil {
		w.lastHash = sha256.Sum256(data)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.check()
		}
	}
}

// check reloads the persona if the file content changed since the last look.
// It reports whether the store was updated.
func (w *Watcher) check() bool {
	data, err := os.ReadFile(w.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			w.logger.Warn("failed to read persona file", "path", w.path, "error", err)
		}
		return false
	}

	hash := sha256.Sum256(data)
	if hash == w.lastHash {
		return false
	}
	w.lastHash = hash

	doc, err := Parse(data, formatFor(w.path))
	if err != nil {
		w.logger.Error("persona file changed but could not be parsed, keeping previous persona",
			"path", w.path, "error", err)
		return false
	}

	w.store.Replace(doc)
	w.logger.Info("persona reloaded", "path", w.path, "name", doc.Name)
	return true
}
