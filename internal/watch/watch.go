// Package watch feeds documents dropped into a directory to the upload widget.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"Retrievo/internal/api"
	"Retrievo/internal/cache"
	"Retrievo/internal/notify"
	"Retrievo/internal/upload"
)

// DefaultExtensions are the file types the backend accepts.
var DefaultExtensions = []string{".pdf", ".jpg", ".jpeg", ".png"}

// DefaultSettle is how long a path must stay quiet before it is ingested.
const DefaultSettle = 500 * time.Millisecond

// Uploader is the part of the upload widget the watcher drives.
type Uploader interface {
	UploadFile(ctx context.Context, f upload.File) (api.UploadResponse, error)
}

// Watcher uploads new or changed files from a directory, skipping content
// that was already uploaded successfully.
type Watcher struct {
	watcher    *fsnotify.Watcher
	extensions []string
	uploader   Uploader
	seen       *cache.Seen
	notifier   notify.Notifier
	logger     *slog.Logger

	// Settle delays ingestion until writes to a path stop.
	Settle time.Duration

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// New creates a watcher. A nil seen set starts empty.
func New(uploader Uploader, seen *cache.Seen, notifier notify.Notifier, logger *slog.Logger, extensions []string) (*Watcher, error) {
	if uploader == nil {
		return nil, errors.New("watch: uploader is required")
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create watcher: %w", err)
	}

	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	if seen == nil {
		seen = cache.NewSeen()
	}
	if notifier == nil {
		notifier = notify.Discard
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Watcher{
		watcher:    w,
		extensions: extensions,
		uploader:   uploader,
		seen:       seen,
		notifier:   notifier,
		logger:     logger,
		Settle:     DefaultSettle,
		timers:     make(map[string]*time.Timer),
	}, nil
}

// Run watches dir until ctx is done or the watcher is stopped.
func (w *Watcher) Run(ctx context.Context, dir string) error {
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("watch: add %s: %w", dir, err)
	}
	w.logger.Info("watching directory", "dir", dir, "extensions", w.extensions)

	ready := make(chan string, 100)
	defer w.stopTimers()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.isWatchedExtension(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			w.schedule(event.Name, ready)
		case path := <-ready:
			_, err := w.Ingest(ctx, path)
			switch {
			case errors.Is(err, upload.ErrBusy):
				// Another upload holds the widget; try again once it settles.
				w.logger.Debug("upload widget busy, retrying", "path", path)
				w.schedule(path, ready)
			case err != nil:
				w.logger.Warn("ingest failed", "path", path, "error", err)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", "error", err)
		}
	}
}

// Stop closes the underlying watcher.
func (w *Watcher) Stop() error {
	w.stopTimers()
	return w.watcher.Close()
}

// Ingest uploads path unless its content was uploaded before. It reports
// whether an upload happened. The fingerprint is recorded only on success.
func (w *Watcher) Ingest(ctx context.Context, path string) (bool, error) {
	key, err := fingerprintFile(path)
	if err != nil {
		w.notifier.Notify(notify.New(notify.LevelError, notify.SourceWatch, "Cannot read "+filepath.Base(path)))
		return false, err
	}
	if w.seen.Has(key) {
		w.logger.Debug("skipping already uploaded content", "path", path)
		return false, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return false, fmt.Errorf("watch: open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return false, fmt.Errorf("watch: stat %s: %w", path, err)
	}

	// Type is sniffed by the widget.
	_, err = w.uploader.UploadFile(ctx, upload.File{
		Name: filepath.Base(path),
		Size: info.Size(),
		Body: f,
	})
	if err != nil {
		return false, err
	}

	w.seen.Mark(key)
	return true, nil
}

func (w *Watcher) schedule(path string, ready chan<- string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[path]; ok {
		t.Stop()
	}
	w.timers[path] = time.AfterFunc(w.Settle, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()
		select {
		case ready <- path:
		default:
			w.logger.Warn("ingest queue full, dropping event", "path", path)
		}
	})
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
}

func (w *Watcher) isWatchedExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range w.extensions {
		if ext == e {
			return true
		}
	}
	return false
}

func fingerprintFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("watch: open %s: %w", path, err)
	}
	defer f.Close()
	return cache.Fingerprint(f)
}
