package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLogAppendPreservesOrder(t *testing.T) {
	log := NewLog()
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	log.Append(NewMessage(SenderUser, "hello", at))
	log.Append(NewMessage(SenderBot, "hi", at.Add(time.Second)))

	msgs := log.Messages()
	require.Len(t, msgs, 2)
	require.Equal(t, SenderUser, msgs[0].Sender)
	require.Equal(t, "hello", msgs[0].Text)
	require.Equal(t, SenderBot, msgs[1].Sender)
	require.Equal(t, "hi", msgs[1].Text)
	require.NotEqual(t, msgs[0].ID, msgs[1].ID)
}

func TestLogMessagesReturnsCopy(t *testing.T) {
	log := NewLog()
	log.Append(NewMessage(SenderUser, "original", time.Now()))

	msgs := log.Messages()
	msgs[0].Text = "mutated"

	require.Equal(t, "original", log.Messages()[0].Text)
	require.Len(t, log.Messages(), 1)
}

func TestSnapshot(t *testing.T) {
	log := NewLog()
	start := time.Now().UTC()
	log.Append(NewMessage(SenderUser, "q", start))

	snap := log.Snapshot("s-1", "http://localhost:8080", start)
	require.Equal(t, "s-1", snap.ID)
	require.Equal(t, start, snap.StartTime)
	require.Len(t, snap.Messages, 1)
}
