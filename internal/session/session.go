package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Sender identifies who produced a message
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// Message represents a single chat message. Messages are values and are never
// modified once appended to a Log.
type Message struct {
	ID        string    `json:"id"`
	Sender    Sender    `json:"sender"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMessage creates a message stamped with the given time
func NewMessage(sender Sender, text string, at time.Time) Message {
	return Message{
		ID:        uuid.NewString(),
		Sender:    sender,
		Text:      text,
		Timestamp: at,
	}
}

// Session represents a chat session
type Session struct {
	ID        string    `json:"id"`
	StartTime time.Time `json:"start_time"`
	Backend   string    `json:"backend"`
	Messages  []Message `json:"messages"`
}

// Log is an append-only, ordered message sequence
type Log struct {
	mu       sync.RWMutex
	messages []Message
}

// NewLog creates an empty log
func NewLog() *Log {
	return &Log{messages: make([]Message, 0, 16)}
}

// Append adds messages to the end of the log in the order given
func (l *Log) Append(msgs ...Message) {
	l.mu.Lock()
	l.messages = append(l.messages, msgs...)
	l.mu.Unlock()
}

// Messages returns a copy of the log
func (l *Log) Messages() []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	copied := make([]Message, len(l.messages))
	copy(copied, l.messages)
	return copied
}

// Snapshot captures the log as a Session
func (l *Log) Snapshot(id, backend string, start time.Time) Session {
	return Session{
		ID:        id,
		StartTime: start,
		Backend:   backend,
		Messages:  l.Messages(),
	}
}
