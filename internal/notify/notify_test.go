package notify

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPrinterMarksLevels(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.Notify(New(LevelSuccess, SourceUpload, "File uploaded successfully"))
	p.Notify(New(LevelError, SourceURL, "Invalid URL format"))
	p.Notify(New(LevelInfo, SourceUpload, "Uploading..."))

	require.Equal(t, "[ok] File uploaded successfully\n[error] Invalid URL format\n[..] Uploading...\n", buf.String())
}

func TestMultiSkipsNil(t *testing.T) {
	var got []Notification
	m := Multi{nil, Func(func(n Notification) { got = append(got, n) })}

	m.Notify(New(LevelInfo, SourceChat, "x"))

	require.Len(t, got, 1)
	require.Equal(t, SourceChat, got[0].Source)
}
