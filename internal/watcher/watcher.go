// Package watcher provides the watch daemon behind "tether watch": it
// monitors the threads directory for thread document changes and
// triggers a per-topic sync for each batch of edits.
//
// The daemon:
// 1. Watches threads/*.md for create/write/remove events
// 2. Debounces rapid edits to the same topic
// 3. Invokes the sync callback once per changed topic
// 4. Handles graceful shutdown via context cancellation
package watcher

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// SyncFunc runs one sync for a topic. Errors are logged, not fatal;
// the daemon keeps watching.
type SyncFunc func(ctx context.Context, topic string) error

// Config holds configuration for the watch daemon.
type Config struct {
	// DebounceInterval is how long to wait before syncing a changed
	// topic. Batches rapid successive edits together.
	DebounceInterval time.Duration

	// Logger for daemon activity.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DebounceInterval: 500 * time.Millisecond,
		Logger:           log.New(os.Stderr, "[watch] ", log.LstdFlags),
	}
}

// Watcher monitors the threads directory and dispatches topic syncs.
type Watcher struct {
	threadsDir string
	syncFn     SyncFunc
	config     *Config

	watcher *fsnotify.Watcher

	changedMu sync.Mutex
	changed   map[string]time.Time // topic -> last event time

	wg sync.WaitGroup
}

// New creates a watch daemon over dir (the directory holding
// threads/*.md). Use Start to begin watching.
func New(dir string, syncFn SyncFunc, config *Config) (*Watcher, error) {
	if syncFn == nil {
		return nil, fmt.Errorf("syncFn cannot be nil")
	}
	if config == nil {
		config = DefaultConfig()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	return &Watcher{
		threadsDir: dir,
		syncFn:     syncFn,
		config:     config,
		watcher:    fsw,
		changed:    make(map[string]time.Time),
	}, nil
}

// Start begins watching. Blocks until ctx is cancelled or the watch
// cannot be established.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(w.threadsDir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.threadsDir, err)
	}
	w.config.Logger.Printf("Watching %s", w.threadsDir)

	w.wg.Add(2)
	go w.watchEvents(ctx)
	go w.flushLoop(ctx)

	<-ctx.Done()
	w.config.Logger.Println("Shutdown signal received")

	if err := w.watcher.Close(); err != nil {
		w.config.Logger.Printf("Error closing watcher: %v", err)
	}
	w.wg.Wait()
	return nil
}

// watchEvents queues topics whose documents changed.
func (w *Watcher) watchEvents(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			topic, ok := topicForPath(event.Name)
			if !ok {
				continue
			}
			w.config.Logger.Printf("File event: %s %s", event.Op, event.Name)
			w.changedMu.Lock()
			w.changed[topic] = time.Now()
			w.changedMu.Unlock()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.config.Logger.Printf("Watcher error: %v", err)
		}
	}
}

// flushLoop periodically syncs topics whose last event is older than
// the debounce interval.
func (w *Watcher) flushLoop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.DebounceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, topic := range w.takeDue() {
				if err := w.syncFn(ctx, topic); err != nil {
					w.config.Logger.Printf("Sync failed for %s: %v", topic, err)
				}
			}
		}
	}
}

// takeDue removes and returns topics quiet for at least the debounce
// interval, sorted for deterministic dispatch order.
func (w *Watcher) takeDue() []string {
	w.changedMu.Lock()
	defer w.changedMu.Unlock()

	cutoff := time.Now().Add(-w.config.DebounceInterval)
	var due []string
	for topic, last := range w.changed {
		if last.Before(cutoff) || last.Equal(cutoff) {
			due = append(due, topic)
			delete(w.changed, topic)
		}
	}
	sort.Strings(due)
	return due
}

// topicForPath maps a watched file path to its topic, rejecting lock
// files, hidden files, and non-markdown paths.
func topicForPath(path string) (string, bool) {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || !strings.HasSuffix(base, ".md") {
		return "", false
	}
	return strings.TrimSuffix(base, ".md"), true
}
