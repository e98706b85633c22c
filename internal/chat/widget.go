package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"Retrievo/internal/api"
	"Retrievo/internal/notify"
	"Retrievo/internal/session"
)

// Bot texts shown in place of an answer
const (
	ErrorText      = "Error fetching response"
	NoResponseText = "No response."
)

var (
	ErrPending      = errors.New("chat: a query is already awaiting its response")
	ErrEmptyMessage = errors.New("chat: message is empty")
)

// Querier is the part of the backend client the widget needs
type Querier interface {
	SubmitQuery(ctx context.Context, text string) (api.QueryResponse, error)
}

// Widget holds the message log and allows one outstanding query at a time
type Widget struct {
	client   Querier
	log      *session.Log
	notifier notify.Notifier
	logger   *slog.Logger
	now      func() time.Time

	mu       sync.Mutex
	pending  bool
	onAppend []func(session.Message)
}

// NewWidget creates a chat widget writing to log
func NewWidget(client Querier, log *session.Log, notifier notify.Notifier, logger *slog.Logger) (*Widget, error) {
	if client == nil {
		return nil, errors.New("chat: client must not be nil")
	}
	if log == nil {
		log = session.NewLog()
	}
	if notifier == nil {
		notifier = notify.Discard
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Widget{
		client:   client,
		log:      log,
		notifier: notifier,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// OnAppend registers fn to be called with every message appended to the log
func (w *Widget) OnAppend(fn func(session.Message)) {
	w.mu.Lock()
	w.onAppend = append(w.onAppend, fn)
	w.mu.Unlock()
}

// Pending reports whether a query is awaiting its response
func (w *Widget) Pending() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pending
}

// Messages returns a copy of the log
func (w *Widget) Messages() []session.Message {
	return w.log.Messages()
}

// Send appends the user's message, queries the backend and appends the answer
// or the error placeholder. It is a no-op while another query is pending.
func (w *Widget) Send(ctx context.Context, text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ErrEmptyMessage
	}

	w.mu.Lock()
	if w.pending {
		w.mu.Unlock()
		return ErrPending
	}
	w.pending = true
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.pending = false
		w.mu.Unlock()
	}()

	w.append(session.NewMessage(session.SenderUser, trimmed, w.now()))

	resp, err := w.client.SubmitQuery(ctx, trimmed)
	if err != nil {
		w.logger.Error("query failed", "error", err)
		w.append(session.NewMessage(session.SenderBot, ErrorText, w.now()))
		w.notifier.Notify(notify.New(notify.LevelError, notify.SourceChat, ErrorText))
		return err
	}

	answer := resp.Text()
	if answer == "" {
		answer = NoResponseText
	}
	w.append(session.NewMessage(session.SenderBot, answer, w.now()))
	w.logger.Info("query answered", "type", resp.Type, "answer_len", len(answer))
	return nil
}

func (w *Widget) append(msg session.Message) {
	w.log.Append(msg)

	w.mu.Lock()
	hooks := make([]func(session.Message), len(w.onAppend))
	copy(hooks, w.onAppend)
	w.mu.Unlock()

	for _, fn := range hooks {
		fn(msg)
	}
}
