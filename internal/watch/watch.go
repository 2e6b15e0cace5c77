// Package watch signals when the VoiceInk database changes on disk.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces the burst of writes SQLite makes per commit.
const DefaultDebounce = 2 * time.Second

// Watcher watches a database file and its WAL and shared-memory siblings.
type Watcher struct {
	path     string
	debounce time.Duration
	logger   *slog.Logger
}

// New creates a watcher for the database at path.
func New(path string, debounce time.Duration, logger *slog.Logger) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{path: path, debounce: debounce, logger: logger}
}

// Start begins watching. The returned channel receives a value once per burst
// of changes and is closed when ctx is done. Pending signals are dropped
// rather than queued.
func (w *Watcher) Start(ctx context.Context) (<-chan struct{}, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	dir := filepath.Dir(w.path)
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	out := make(chan struct{}, 1)
	go w.loop(ctx, fw, out)
	return out, nil
}

func (w *Watcher) loop(ctx context.Context, fw *fsnotify.Watcher, out chan struct{}) {
	var (
		mu     sync.Mutex
		timer  *time.Timer
		closed bool
	)
	fire := func() {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case out <- struct{}{}:
		default:
		}
	}

	defer func() {
		mu.Lock()
		closed = true
		if timer != nil {
			timer.Stop()
		}
		close(out)
		mu.Unlock()
		_ = fw.Close()
	}()

	base := filepath.Base(w.path)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			if !strings.HasPrefix(filepath.Base(ev.Name), base) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			w.logger.Debug("Database changed", "file", ev.Name, "op", ev.Op.String())
			mu.Lock()
			if timer == nil {
				timer = time.AfterFunc(w.debounce, fire)
			} else {
				timer.Reset(w.debounce)
			}
			mu.Unlock()
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Watcher error", "error", err)
		}
	}
}
