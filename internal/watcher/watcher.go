// Package watcher ingests conversation files dropped into an inbox directory.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"chat-audit-go/internal/ingest"
	"chat-audit-go/internal/logger"
	"chat-audit-go/internal/types"
)

// EventHandler processes one newly created file.
type EventHandler func(ctx context.Context, path string) error

type Options struct {
	// MaxConcurrent bounds files handled at once.
	MaxConcurrent int
	// Settle is the polling interval; a file is handed off once its size and
	// modification time are unchanged across one full interval.
	Settle time.Duration
	// MaxSettle gives up on files that are still growing after this long.
	MaxSettle time.Duration
}

// ErrStillWriting is returned by WaitStable when a file keeps changing past its deadline.
var ErrStillWriting = errors.New("file is still being written")

type Watcher struct {
	inputDir  string
	handler   EventHandler
	log       *logger.Logger
	watcher   *fsnotify.Watcher
	opts      Options
	semaphore chan struct{}
	wg        sync.WaitGroup

	mu      sync.Mutex
	pending map[string]bool
}

func New(inputDir string, handler EventHandler, opts Options, log *logger.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(inputDir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("add watch path: %w", err)
	}

	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 2
	}
	if opts.Settle <= 0 {
		opts.Settle = 500 * time.Millisecond
	}
	if opts.MaxSettle <= 0 {
		opts.MaxSettle = 10 * time.Minute
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Watcher{
		inputDir:  inputDir,
		handler:   handler,
		log:       log,
		watcher:   fw,
		opts:      opts,
		semaphore: make(chan struct{}, opts.MaxConcurrent),
		pending:   make(map[string]bool),
	}, nil
}

// Start blocks until ctx is done, handing every accepted new file to the handler.
func (w *Watcher) Start(ctx context.Context) error {
	log := w.log.Component("watcher").WithField("dir", w.inputDir)
	log.WithField("max_concurrent", w.opts.MaxConcurrent).Info("inbox watcher started")

	for {
		select {
		case <-ctx.Done():
			log.Info("waiting for in-flight files")
			w.wg.Wait()
			log.Info("inbox watcher stopped")
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if event.Op&fsnotify.Create != fsnotify.Create {
				continue
			}
			if !Accept(event.Name) {
				log.WithField("file", event.Name).Debug("ignoring file")
				continue
			}
			if !w.claim(event.Name) {
				continue
			}
			log.WithField("file", event.Name).Info("new file detected")
			w.wg.Add(1)
			go w.handle(ctx, event.Name)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			log.WithError(err).Error("watcher error")
		}
	}
}

// handle waits for the writer to finish, then runs the handler under the semaphore.
func (w *Watcher) handle(ctx context.Context, path string) {
	defer w.wg.Done()
	defer w.release(path)
	log := w.log.Component("watcher").WithField("file", path)

	if err := WaitStable(ctx, path, w.opts.Settle, w.opts.MaxSettle); err != nil {
		if ctx.Err() == nil {
			log.WithError(err).Warn("file not handed off")
		}
		return
	}

	select {
	case w.semaphore <- struct{}{}:
	case <-ctx.Done():
		return
	}
	defer func() { <-w.semaphore }()

	if err := w.handler(ctx, path); err != nil {
		log.WithError(err).Error("failed to process file")
	}
}

func (w *Watcher) claim(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending[path] {
		return false
	}
	w.pending[path] = true
	return true
}

func (w *Watcher) release(path string) {
	w.mu.Lock()
	delete(w.pending, path)
	w.mu.Unlock()
}

// WaitStable polls path every interval and returns once its size and
// modification time have not changed between two polls.
func WaitStable(ctx context.Context, path string, interval, maxWait time.Duration) error {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	prev, err := os.Stat(path)
	if err != nil {
		return err
	}
	deadline := time.Now().Add(maxWait)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		cur, err := os.Stat(path)
		if err != nil {
			return err
		}
		if cur.Size() == prev.Size() && cur.ModTime().Equal(prev.ModTime()) {
			return nil
		}
		if maxWait > 0 && time.Now().After(deadline) {
			return fmt.Errorf("%s: %w", filepath.Base(path), ErrStillWriting)
		}
		prev = cur
	}
}

func (w *Watcher) Stop() error {
	return w.watcher.Close()
}

// Accept reports whether a file in the inbox should be ingested. Our own
// outputs and hidden or partial files are ignored.
func Accept(path string) bool {
	base := filepath.Base(path)
	lower := strings.ToLower(base)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(lower, TranscriptSuffix) ||
		strings.HasSuffix(lower, ReportSuffix) || strings.HasSuffix(lower, ".part") {
		return false
	}
	return ingest.RouteOf(types.UploadedFile{Name: base}) != ""
}
