package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"callpulse/metrics"
	"callpulse/queue"
)

// Importing is what the watcher hands each settled file to.
type Importing interface {
	ImportFile(ctx context.Context, path string) error
}

// ImportFunc adapts a function to Importing.
type ImportFunc func(ctx context.Context, path string) error

func (f ImportFunc) ImportFile(ctx context.Context, path string) error { return f(ctx, path) }

// FromImporter discards the import record and treats duplicates as success.
func FromImporter(im *Importer) Importing {
	return ImportFunc(func(ctx context.Context, path string) error {
		_, err := im.ImportFile(ctx, path)
		if errors.Is(err, ErrAlreadyImported) {
			return nil
		}
		return err
	})
}

// Options tune the watcher.
type Options struct {
	Dir     string
	Enabled bool
	// Settle is how long a file must stay quiet before it is imported.
	Settle time.Duration
	// EnqueueWindow bounds how long a full queue is retried.
	EnqueueWindow time.Duration
}

// Watcher monitors the import directory for review bundles and enqueues
// import jobs.
type Watcher struct {
	opts    Options
	queue   *queue.Queue
	imp     Importing
	metrics *metrics.Metrics
	logger  *zap.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer
}

func New(opts Options, q *queue.Queue, imp Importing, m *metrics.Metrics, logger *zap.Logger) *Watcher {
	if opts.Settle <= 0 {
		opts.Settle = 250 * time.Millisecond
	}
	if opts.EnqueueWindow <= 0 {
		opts.EnqueueWindow = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		opts:    opts,
		queue:   q,
		imp:     imp,
		metrics: m,
		logger:  logger.Named("watch"),
		pending: make(map[string]*time.Timer),
	}
}

// IsBundle reports whether path has an importable extension.
func IsBundle(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		return true
	default:
		return false
	}
}

// Run watches the directory until ctx is done. A disabled watcher returns
// immediately.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.opts.Enabled {
		w.logger.Info("watcher disabled")
		return nil
	}
	if err := os.MkdirAll(w.opts.Dir, 0o755); err != nil {
		return fmt.Errorf("create import dir: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.Add(w.opts.Dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.opts.Dir, err)
	}
	w.logger.Info("watching import dir", zap.String("dir", w.opts.Dir))
	defer w.stopPending()

	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if evt.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 && IsBundle(evt.Name) {
				w.schedule(ctx, evt.Name)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", zap.Error(err))
		}
	}
}

// schedule restarts the settle timer for path. Editors and copies emit several
// writes per file; only the last one triggers an import.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	w.pending[path] = time.AfterFunc(w.opts.Settle, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		if ctx.Err() != nil {
			return
		}
		if _, err := os.Stat(path); err != nil {
			return
		}
		w.enqueue(ctx, path)
	})
}

func (w *Watcher) stopPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) enqueue(ctx context.Context, path string) bool {
	job := queue.Job{
		ID:     filepath.Base(path),
		Source: "watch",
		Work: func(jobCtx context.Context) error {
			return w.imp.ImportFile(jobCtx, path)
		},
		Done: func(res queue.Result) {
			if w.metrics != nil {
				w.metrics.RecordJobCompletion(res.Err)
			}
		},
	}
	out := w.queue.SubmitWithin(ctx, job, w.opts.EnqueueWindow, 50*time.Millisecond)
	if w.metrics != nil {
		stats := w.queue.Stats()
		w.metrics.UpdateQueue(stats.Length, stats.Capacity, stats.Workers)
	}
	if out != queue.Accepted && out != queue.Cancelled {
		w.logger.Warn("import not queued", zap.String("file", path), zap.Stringer("outcome", out))
	}
	return out == queue.Accepted
}

// Backfill enqueues files already present in the directory, in name order.
// It returns how many were enqueued.
func (w *Watcher) Backfill(ctx context.Context) (int, error) {
	entries, err := filepath.Glob(filepath.Join(w.opts.Dir, "*"))
	if err != nil {
		return 0, err
	}
	sort.Strings(entries)
	n := 0
	for _, e := range entries {
		if !IsBundle(e) {
			continue
		}
		if w.enqueue(ctx, e) {
			n++
		}
	}
	if n > 0 {
		w.logger.Info("backfill enqueued", zap.Int("files", n))
	}
	return n, nil
}
