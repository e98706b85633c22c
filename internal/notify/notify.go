package notify

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Level is the severity of a notification
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Source names the widget that raised a notification
type Source string

const (
	SourceUpload Source = "upload"
	SourceURL    Source = "url"
	SourceChat   Source = "chat"
	SourceWatch  Source = "watch"
)

// Notification is a transient, user-visible message
type Notification struct {
	Level  Level     `json:"level"`
	Source Source    `json:"source"`
	Text   string    `json:"text"`
	Time   time.Time `json:"time"`
}

// Notifier delivers notifications to the user
type Notifier interface {
	Notify(n Notification)
}

// Func adapts a function to Notifier
type Func func(Notification)

// Notify calls f(n)
func (f Func) Notify(n Notification) { f(n) }

// Discard drops every notification
var Discard Notifier = Func(func(Notification) {})

// Multi fans a notification out to several notifiers
type Multi []Notifier

// Notify delivers n to every notifier in order
func (m Multi) Notify(n Notification) {
	for _, target := range m {
		if target != nil {
			target.Notify(n)
		}
	}
}

// New builds a notification stamped with the current time
func New(level Level, source Source, text string) Notification {
	return Notification{Level: level, Source: source, Text: text, Time: time.Now()}
}

// Printer writes notifications as single lines, safe for concurrent use
type Printer struct {
	mu  sync.Mutex
	out io.Writer
}

// NewPrinter creates a Printer writing to out
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// Notify prints n
func (p *Printer) Notify(n Notification) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "%s %s\n", marker(n.Level), n.Text)
}

// Writer exposes the printer's lock around arbitrary writes
func (p *Printer) Writer() io.Writer {
	return lockedWriter{p: p}
}

type lockedWriter struct {
	p *Printer
}

func (w lockedWriter) Write(b []byte) (int, error) {
	w.p.mu.Lock()
	defer w.p.mu.Unlock()
	return w.p.out.Write(b)
}

func marker(level Level) string {
	switch level {
	case LevelSuccess:
		return "[ok]"
	case LevelError:
		return "[error]"
	default:
		return "[..]"
	}
}
