package upload

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"Retrievo/internal/api"
	"Retrievo/internal/notify"
)

// ErrBusy is returned when an operation is invoked while the same operation
// is still in flight
var ErrBusy = errors.New("upload: operation already in progress")

// Ingester is the part of the backend client the widget needs
type Ingester interface {
	UploadDocument(ctx context.Context, name, contentType string, body io.Reader) (api.UploadResponse, error)
	SubmitURL(ctx context.Context, rawURL string) (api.UploadResponse, error)
}

// Widget validates files and URLs and forwards them to the backend. File and
// URL submissions each have their own busy flag.
type Widget struct {
	client   Ingester
	notifier notify.Notifier
	limits   Limits
	logger   *slog.Logger

	mu       sync.Mutex
	fileBusy bool
	urlBusy  bool
}

// NewWidget creates an upload widget
func NewWidget(client Ingester, notifier notify.Notifier, limits Limits, logger *slog.Logger) (*Widget, error) {
	if client == nil {
		return nil, errors.New("upload: client must not be nil")
	}
	if notifier == nil {
		notifier = notify.Discard
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Widget{
		client:   client,
		notifier: notifier,
		limits:   limits.withDefaults(),
		logger:   logger,
	}, nil
}

// FileBusy reports whether a file upload is in flight
func (w *Widget) FileBusy() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.fileBusy
}

// URLBusy reports whether a URL submission is in flight
func (w *Widget) URLBusy() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.urlBusy
}

// UploadFile validates f and, if it passes, uploads it
func (w *Widget) UploadFile(ctx context.Context, f File) (api.UploadResponse, error) {
	if !w.acquire(&w.fileBusy) {
		return api.UploadResponse{}, ErrBusy
	}
	defer w.release(&w.fileBusy)

	if err := ValidateFile(&f, w.limits); err != nil {
		w.reject(notify.SourceUpload, err)
		return api.UploadResponse{}, err
	}

	w.notifier.Notify(notify.New(notify.LevelInfo, notify.SourceUpload, "Uploading..."))
	w.logger.Info("uploading document", "name", f.Name, "content_type", f.ContentType, "size", f.Size)

	resp, err := w.client.UploadDocument(ctx, f.Name, f.ContentType, f.Body)
	if err != nil {
		w.logger.Error("document upload failed", "name", f.Name, "error", err)
		w.notifier.Notify(notify.New(notify.LevelError, notify.SourceUpload, "Upload failed"))
		return api.UploadResponse{}, err
	}

	w.notifier.Notify(notify.New(notify.LevelSuccess, notify.SourceUpload, successText(resp, "File uploaded successfully")))
	return resp, nil
}

// ProcessURL validates raw and, if it parses, submits it for ingestion
func (w *Widget) ProcessURL(ctx context.Context, raw string) (api.UploadResponse, error) {
	if !w.acquire(&w.urlBusy) {
		return api.UploadResponse{}, ErrBusy
	}
	defer w.release(&w.urlBusy)

	target, err := ValidateURL(raw)
	if err != nil {
		w.reject(notify.SourceURL, err)
		return api.UploadResponse{}, err
	}

	w.notifier.Notify(notify.New(notify.LevelInfo, notify.SourceURL, "Processing..."))
	w.logger.Info("submitting url", "url", target)

	resp, err := w.client.SubmitURL(ctx, target)
	if err != nil {
		w.logger.Error("url submission failed", "url", target, "error", err)
		w.notifier.Notify(notify.New(notify.LevelError, notify.SourceURL, "Failed to process URL"))
		return api.UploadResponse{}, err
	}

	w.notifier.Notify(notify.New(notify.LevelSuccess, notify.SourceURL, successText(resp, "URL processed successfully")))
	return resp, nil
}

func (w *Widget) acquire(flag *bool) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if *flag {
		return false
	}
	*flag = true
	return true
}

func (w *Widget) release(flag *bool) {
	w.mu.Lock()
	*flag = false
	w.mu.Unlock()
}

func (w *Widget) reject(source notify.Source, err error) {
	text := "Invalid input"
	var verr *ValidationError
	if errors.As(err, &verr) {
		text = verr.Message()
	}
	w.logger.Info("rejected input", "source", source, "error", err)
	w.notifier.Notify(notify.New(notify.LevelError, source, text))
}

func successText(resp api.UploadResponse, fallback string) string {
	if resp.Message != "" {
		return resp.Message
	}
	return fallback
}
