package graph

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is how long the watcher waits for writes to settle
const DefaultDebounce = 500 * time.Millisecond

// Reloader is implemented by Store
type Reloader interface {
	Reload(ctx context.Context) *Snapshot
}

// Watcher reloads a graph when its file changes. The directory is watched
// rather than the file so atomic saves and files created later are seen.
type Watcher struct {
	path     string
	debounce time.Duration
	target   Reloader
	watcher  *fsnotify.Watcher
	logger   *zap.Logger

	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

// NewWatcher watches path and calls target.Reload after changes settle for
// debounce. A zero debounce uses DefaultDebounce.
func NewWatcher(path string, target Reloader, debounce time.Duration, logger *zap.Logger) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve graph path: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch graph directory: %w", err)
	}

	return &Watcher{
		path:     abs,
		debounce: debounce,
		target:   target,
		watcher:  fw,
		logger:   logger,
		done:     make(chan struct{}),
	}, nil
}

// Start begins watching in the background
func (w *Watcher) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	go w.watchLoop(ctx)
	w.logger.Info("Graph watcher started", zap.String("path", w.path))
}

// Stop ends the watch loop and waits for it to exit. Safe to call more than
// once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		if w.cancel == nil {
			w.watcher.Close()
			return
		}
		w.cancel()
		w.watcher.Close()
		<-w.done
		w.logger.Info("Graph watcher stopped")
	})
}

func (w *Watcher) watchLoop(ctx context.Context) {
	defer close(w.done)

	// Idle until the first event; Stop leaves no stale tick behind.
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			timer.Reset(w.debounce)

		case <-timer.C:
			w.logger.Info("Graph file changed, reloading", zap.String("path", w.path))
			w.target.Reload(ctx)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Graph watcher error", zap.Error(err))
		}
	}
}
