package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultSettle is how long a file must be quiet before it is processed.
const DefaultSettle = 500 * time.Millisecond

// Watcher processes documents as they appear in the batch input folder.
type Watcher struct {
	batch  *Batch
	settle time.Duration
	logger *slog.Logger

	// OnResult is called after each file, mainly for tests.
	OnResult func(path string, res *Result, err error)
}

// NewWatcher creates a Watcher over the batch input folder.
func NewWatcher(b *Batch, settle time.Duration, logger *slog.Logger) *Watcher {
	if settle <= 0 {
		settle = DefaultSettle
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{batch: b, settle: settle, logger: logger}
}

// Run blocks until ctx is cancelled. Files are processed one at a time once
// no write event has been seen for the settle period.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fw.Close()

	dir := w.batch.InputDir()
	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	w.logger.Info("watching for documents", "dir", dir, "settle", w.settle)

	pending := make(map[string]time.Time)
	ticker := time.NewTicker(w.settle / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			if !Supported(ev.Name) {
				continue
			}
			pending[ev.Name] = time.Now()

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)

		case now := <-ticker.C:
			for _, path := range readyPaths(pending, now, w.settle) {
				delete(pending, path)
				w.handle(ctx, path)
			}
		}
	}
}

func (w *Watcher) handle(ctx context.Context, path string) {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return
	}
	res, _, err := w.batch.ProcessFile(ctx, path)
	if err != nil {
		w.logger.Error("document failed", "name", filepath.Base(path), "error", err)
	} else {
		w.logger.Info("document saved", "name", filepath.Base(path), "found", res.Scores.FoundCount())
	}
	if w.OnResult != nil {
		w.OnResult(path, res, err)
	}
}

// readyPaths returns pending paths quiet for at least settle, sorted for a stable order.
func readyPaths(pending map[string]time.Time, now time.Time, settle time.Duration) []string {
	var ready []string
	for path, last := range pending {
		if now.Sub(last) >= settle {
			ready = append(ready, path)
		}
	}
	sort.Strings(ready)
	return ready
}
