package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long a path must stay quiet before it is ingested.
const DefaultDebounce = 500 * time.Millisecond

// Watcher re-ingests best-practice and README files below a set of roots
// whenever they are written. Events for one path are debounced, and
// documents are ingested one at a time.
//
// The orchestrator's tracker should have content-hash invalidation enabled;
// otherwise a changed file whose earlier version succeeded is skipped.
type Watcher struct {
	orch     *Orchestrator
	roots    []string
	debounce time.Duration
	onResult func(DocumentResult)
	logger   *slog.Logger
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce sets the quiet period per path.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// OnResult registers a callback invoked after each ingestion.
func OnResult(fn func(DocumentResult)) WatcherOption {
	return func(w *Watcher) {
		w.onResult = fn
	}
}

// WithWatcherLogger sets a custom logger.
func WithWatcherLogger(logger *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// NewWatcher creates a Watcher over roots.
func NewWatcher(orch *Orchestrator, roots []string, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		orch:     orch,
		roots:    roots,
		debounce: DefaultDebounce,
		logger:   slog.Default().With("component", "watcher"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run watches until ctx is done. It returns nil on cancellation and an error
// when the roots cannot be watched or ingestion hits a fatal error.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close()

	for _, root := range w.roots {
		if err := w.addTree(fsw, root); err != nil {
			return err
		}
	}
	w.logger.Info("watching for document changes", "roots", w.roots)

	ready := make(chan string, 16)
	deb := newDebouncer(w.debounce, func(path string) {
		select {
		case ready <- path:
		case <-ctx.Done():
		}
	})
	defer deb.stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if path, ok := w.handleEvent(fsw, event); ok {
				deb.schedule(path)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "err", err)

		case path := <-ready:
			if err := w.ingest(ctx, path); err != nil {
				return err
			}
		}
	}
}

// debouncer emits a path once it has gone quiet for delay. Each schedule
// replaces the path's pending timer; a replaced timer never emits.
type debouncer struct {
	delay   time.Duration
	emit    func(path string)
	mu      sync.Mutex
	pending map[string]*pendingEmit
}

type pendingEmit struct {
	timer *time.Timer
}

func newDebouncer(delay time.Duration, emit func(string)) *debouncer {
	return &debouncer{delay: delay, emit: emit, pending: make(map[string]*pendingEmit)}
}

func (d *debouncer) schedule(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p, ok := d.pending[path]; ok {
		p.timer.Stop()
	}
	p := &pendingEmit{}
	p.timer = time.AfterFunc(d.delay, func() { d.fire(path, p) })
	d.pending[path] = p
}

// fire emits path only while p is still its latest schedule.
func (d *debouncer) fire(path string, p *pendingEmit) {
	d.mu.Lock()
	current := d.pending[path] == p
	if current {
		delete(d.pending, path)
	}
	d.mu.Unlock()
	if current {
		d.emit(path)
	}
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for path, p := range d.pending {
		p.timer.Stop()
		delete(d.pending, path)
	}
}

// handleEvent returns the path to ingest for event, if any. New directories
// are added to the watch.
func (w *Watcher) handleEvent(fsw *fsnotify.Watcher, event fsnotify.Event) (string, bool) {
	if hidden(event.Name) {
		return "", false
	}
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return "", false
	}
	if event.Has(fsnotify.Create) && isDir(event.Name) {
		if err := w.addTree(fsw, event.Name); err != nil {
			w.logger.Warn("failed to watch new directory", "path", event.Name, "err", err)
		}
		return "", false
	}
	if _, ok := Classify(event.Name); !ok {
		return "", false
	}
	return event.Name, true
}

func (w *Watcher) ingest(ctx context.Context, path string) error {
	docType, _ := Classify(path)
	res, err := w.orch.IngestDocument(ctx, Document{Source: path, Type: docType})
	if w.onResult != nil {
		w.onResult(res)
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
	w.logger.Info("document change handled", "path", path, "state", res.State)
	return nil
}

// addTree watches root and every non-hidden directory below it.
func (w *Watcher) addTree(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && hidden(path) {
			return filepath.SkipDir
		}
		return fsw.Add(path)
	})
}

func hidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
