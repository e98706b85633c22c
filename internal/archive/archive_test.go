package archive

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"Retrievo/internal/session"
)

func TestSaveIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "archive.db")
	store, err := Open(path, nil)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	now := time.Now()
	log := session.NewLog()
	log.Append(
		session.NewMessage(session.SenderUser, "hello", now),
		session.NewMessage(session.SenderBot, "hi", now),
	)

	require.NoError(t, store.Save(ctx, log.Snapshot("s1", "http://localhost:8080", now)))
	require.NoError(t, store.Save(ctx, log.Snapshot("s1", "http://localhost:8080", now)))

	n, err := store.MessageCount(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, 2, n)

	log.Append(session.NewMessage(session.SenderUser, "again", now))
	require.NoError(t, store.Save(ctx, log.Snapshot("s1", "http://localhost:8080", now)))

	n, err = store.MessageCount(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, 3, n)

	n, err = store.MessageCount(ctx, "other")
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestOpenReusesExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.db")
	ctx := context.Background()

	store, err := Open(path, nil)
	require.NoError(t, err)
	log := session.NewLog()
	log.Append(session.NewMessage(session.SenderUser, "hello", time.Now()))
	require.NoError(t, store.Save(ctx, log.Snapshot("s1", "", time.Now())))
	require.NoError(t, store.Close())

	store, err = Open(path, nil)
	require.NoError(t, err)
	defer store.Close()

	n, err := store.MessageCount(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, 1, n)
}
