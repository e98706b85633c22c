// Package console is the terminal front-end: a line REPL over the chat and
// upload widgets.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"Retrievo/internal/api"
	"Retrievo/internal/cache"
	"Retrievo/internal/chat"
	"Retrievo/internal/notify"
	"Retrievo/internal/session"
	"Retrievo/internal/upload"
)

// AnswerChecker grades quiz answers.
type AnswerChecker interface {
	CheckAnswer(ctx context.Context, question, userAnswer, correctAnswer string) (api.AnswerFeedback, error)
}

// Archiver stores a transcript.
type Archiver interface {
	Save(ctx context.Context, sess session.Session) error
}

// Options wires a Console. Chat, Upload and Printer are required.
type Options struct {
	Chat    *chat.Widget
	Upload  *upload.Widget
	Checker AnswerChecker
	Archive Archiver
	Printer *notify.Printer
	In      io.Reader
	Backend string
	Logger  *slog.Logger

	// Watched, when set, is the folder watcher's set of uploaded content.
	Watched *cache.Seen
}

// Console reads commands and chat lines and prints replies.
type Console struct {
	chat    *chat.Widget
	upload  *upload.Widget
	checker AnswerChecker
	archive Archiver
	printer *notify.Printer
	out     io.Writer
	in      io.Reader
	backend string
	logger  *slog.Logger
	watched *cache.Seen

	sessionID string
	startTime time.Time

	wg sync.WaitGroup
}

func New(opts Options) (*Console, error) {
	if opts.Chat == nil || opts.Upload == nil {
		return nil, errors.New("console: chat and upload widgets are required")
	}
	if opts.Printer == nil {
		return nil, errors.New("console: printer is required")
	}
	if opts.In == nil {
		opts.In = os.Stdin
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Console{
		chat:      opts.Chat,
		upload:    opts.Upload,
		checker:   opts.Checker,
		archive:   opts.Archive,
		printer:   opts.Printer,
		out:       opts.Printer.Writer(),
		in:        opts.In,
		backend:   opts.Backend,
		logger:    opts.Logger,
		watched:   opts.Watched,
		sessionID: "session_" + uuid.NewString(),
		startTime: time.Now().UTC(),
	}, nil
}

// Run drives the REPL until input ends, /quit is entered or ctx is done.
// Pending uploads are awaited before the transcript is archived.
func (c *Console) Run(ctx context.Context) error {
	c.printf("=== Retrievo ===\n")
	c.printf("Session: %s\n", c.sessionID)
	c.printf("Backend: %s\n", c.backend)
	c.printf("Type /help for commands, /quit to exit\n\n")

	readCtx, stopReading := context.WithCancel(ctx)
	defer stopReading()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-readCtx.Done():
				return
			}
		}
	}()

loop:
	for {
		c.printf("You: ")

		var line string
		select {
		case <-ctx.Done():
			c.printf("\n")
			break loop
		case l, ok := <-lines:
			if !ok {
				break loop
			}
			line = l
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			shouldQuit, err := c.handleCommand(ctx, input)
			if err != nil {
				c.printf("Error: %v\n", err)
				c.logger.Error("command error", "error", err)
			}
			if shouldQuit {
				break
			}
			continue
		}

		c.send(ctx, input)
	}

	c.wg.Wait()

	if c.archive != nil {
		sess := session.Session{
			ID:        c.sessionID,
			StartTime: c.startTime,
			Backend:   c.backend,
			Messages:  c.chat.Messages(),
		}
		// ctx may already be canceled by a signal; the transcript is still saved.
		if err := c.archive.Save(context.WithoutCancel(ctx), sess); err != nil {
			c.logger.Error("failed to archive session on exit", "error", err)
			return err
		}
	}

	c.printf("Goodbye!\n")
	return nil
}

func (c *Console) send(ctx context.Context, input string) {
	err := c.chat.Send(ctx, input)
	switch {
	case errors.Is(err, chat.ErrPending):
		c.printf("Still waiting for the previous answer\n")
		return
	case errors.Is(err, chat.ErrEmptyMessage):
		return
	case err != nil:
		c.logger.Error("failed to send message", "error", err)
	}

	msgs := c.chat.Messages()
	if len(msgs) == 0 {
		return
	}
	reply := msgs[len(msgs)-1]
	if reply.Sender == session.SenderBot {
		c.printf("Bot: %s\n\n", reply.Text)
	}
}

func (c *Console) handleCommand(ctx context.Context, input string) (bool, error) {
	cmd, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "/quit", "/exit":
		return true, nil

	case "/upload":
		return false, c.startUpload(ctx, arg)

	case "/url":
		if c.upload.URLBusy() {
			c.printf("A URL is already being processed\n")
			return false, nil
		}
		c.async(func() {
			if _, err := c.upload.ProcessURL(ctx, arg); errors.Is(err, upload.ErrBusy) {
				c.printf("A URL is already being processed\n")
			}
		})
		return false, nil

	case "/check":
		return false, c.check(ctx, arg)

	case "/history":
		msgs := c.chat.Messages()
		if len(msgs) == 0 {
			c.printf("No messages yet.\n")
			return false, nil
		}
		for _, msg := range msgs {
			who := "You"
			if msg.Sender == session.SenderBot {
				who = "Bot"
			}
			c.printf("[%s] %s: %s\n", msg.Timestamp.Local().Format("15:04:05"), who, msg.Text)
		}
		c.printf("\n")
		return false, nil

	case "/status":
		c.printf("Backend:   %s\n", c.backend)
		c.printf("Session:   %s\n", c.sessionID)
		c.printf("Messages:  %d\n", len(c.chat.Messages()))
		c.printf("Uploading: %t\n", c.upload.FileBusy())
		c.printf("URL:       %t\n", c.upload.URLBusy())
		c.printf("Awaiting:  %t\n", c.chat.Pending())
		if c.watched != nil {
			c.printf("Watched:   %d uploaded\n", c.watched.Len())
		}
		c.printf("\n")
		return false, nil

	case "/help":
		c.printf("\nAvailable commands:\n")
		c.printf("  /upload <path>   - Upload a PDF, JPEG or PNG document (max 5MB)\n")
		c.printf("  /url <url>       - Submit a web page for ingestion\n")
		c.printf("  /check <question> | <your answer> | <correct answer>\n")
		c.printf("                   - Check a quiz answer\n")
		c.printf("  /history         - Show the conversation\n")
		c.printf("  /status          - Show backend and widget state\n")
		c.printf("  /help            - Show this help\n")
		c.printf("  /quit, /exit     - Exit\n")
		c.printf("Anything else is sent as a question.\n\n")
		return false, nil

	default:
		return false, fmt.Errorf("unknown command: %s (type /help for commands)", cmd)
	}
}

func (c *Console) startUpload(ctx context.Context, path string) error {
	if path == "" {
		// Let the widget report the missing file.
		_, _ = c.upload.UploadFile(ctx, upload.File{})
		return nil
	}
	if c.upload.FileBusy() {
		c.printf("An upload is already in progress\n")
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("cannot open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("cannot stat %s: %w", path, err)
	}

	file := upload.File{
		Name: filepath.Base(path),
		Size: info.Size(),
		Body: f,
	}
	c.async(func() {
		defer f.Close()
		if _, err := c.upload.UploadFile(ctx, file); errors.Is(err, upload.ErrBusy) {
			c.printf("An upload is already in progress\n")
		}
	})
	return nil
}

func (c *Console) check(ctx context.Context, arg string) error {
	if c.checker == nil {
		return errors.New("quiz checking is not available")
	}
	parts := strings.Split(arg, "|")
	if len(parts) != 3 {
		return errors.New("usage: /check <question> | <your answer> | <correct answer>")
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	fb, err := c.checker.CheckAnswer(ctx, parts[0], parts[1], parts[2])
	if err != nil {
		return fmt.Errorf("failed to check answer: %w", err)
	}
	verdict := "Incorrect."
	if fb.IsCorrect {
		verdict = "Correct!"
	}
	if fb.Feedback != "" {
		c.printf("%s %s\n\n", verdict, fb.Feedback)
	} else {
		c.printf("%s\n\n", verdict)
	}
	return nil
}

func (c *Console) async(fn func()) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		fn()
	}()
}

func (c *Console) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}
