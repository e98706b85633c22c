package upload

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func reasonOf(t *testing.T, err error) Reason {
	t.Helper()
	var verr *ValidationError
	require.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
	return verr.Reason
}

func TestValidateFileAcceptsAllowedTypes(t *testing.T) {
	for _, contentType := range []string{"application/pdf", "image/jpeg", "image/png", "application/PDF; name=x.pdf"} {
		f := File{Name: "doc", ContentType: contentType, Size: 10, Body: strings.NewReader("x")}
		require.NoError(t, ValidateFile(&f, DefaultLimits()), contentType)
	}
}

func TestValidateFileRejectsDisallowedTypes(t *testing.T) {
	for _, contentType := range []string{"text/plain", "image/gif", "application/zip", "application/vnd.openxmlformats-officedocument.wordprocessingml.document"} {
		f := File{Name: "doc", ContentType: contentType, Size: 10, Body: strings.NewReader("x")}
		require.Equal(t, ReasonUnsupportedType, reasonOf(t, ValidateFile(&f, DefaultLimits())), contentType)
	}
}

func TestValidateFileSizeCeiling(t *testing.T) {
	atLimit := File{Name: "a.pdf", ContentType: "application/pdf", Size: MaxFileSize, Body: strings.NewReader("x")}
	require.NoError(t, ValidateFile(&atLimit, DefaultLimits()))

	over := File{Name: "b.pdf", ContentType: "application/pdf", Size: MaxFileSize + 1, Body: strings.NewReader("x")}
	require.Equal(t, ReasonTooLarge, reasonOf(t, ValidateFile(&over, DefaultLimits())))
}

func TestValidateFileChecksTypeBeforeSize(t *testing.T) {
	f := File{Name: "big.txt", ContentType: "text/plain", Size: MaxFileSize * 2, Body: strings.NewReader("x")}
	require.Equal(t, ReasonUnsupportedType, reasonOf(t, ValidateFile(&f, DefaultLimits())))
}

func TestValidateFileMissing(t *testing.T) {
	require.Equal(t, ReasonMissingFile, reasonOf(t, ValidateFile(nil, DefaultLimits())))
	require.Equal(t, ReasonMissingFile, reasonOf(t, ValidateFile(&File{Name: "x.pdf"}, DefaultLimits())))
}

func TestValidateFileSniffsUndeclaredType(t *testing.T) {
	content := []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\n")
	f := File{Name: "upload", Size: int64(len(content)), Body: bytes.NewReader(content)}

	require.NoError(t, ValidateFile(&f, DefaultLimits()))
	require.Equal(t, "application/pdf", f.ContentType)

	sent, err := io.ReadAll(f.Body)
	require.NoError(t, err)
	require.Equal(t, content, sent, "sniffed bytes must still be sent")
}

func TestValidateFileSniffRejectsText(t *testing.T) {
	f := File{Name: "notes", Size: 5, Body: strings.NewReader("hello")}
	require.Equal(t, ReasonUnsupportedType, reasonOf(t, ValidateFile(&f, DefaultLimits())))
}

func TestValidateURL(t *testing.T) {
	valid := []string{
		"https://example.com",
		"http://localhost:8000/docs?page=2",
		"  https://example.com/trim  ",
		"mailto:someone@example.com",
	}
	for _, raw := range valid {
		got, err := ValidateURL(raw)
		require.NoError(t, err, raw)
		require.Equal(t, strings.TrimSpace(raw), got)
	}

	cases := map[string]Reason{
		"":                  ReasonMissingURL,
		"   ":               ReasonMissingURL,
		"example.com":       ReasonInvalidURL,
		"not a url":         ReasonInvalidURL,
		"https://":          ReasonInvalidURL,
		"http://[::1":       ReasonInvalidURL,
		"/relative/path":    ReasonInvalidURL,
		"://missing-scheme": ReasonInvalidURL,
	}
	for raw, want := range cases {
		_, err := ValidateURL(raw)
		require.Equal(t, want, reasonOf(t, err), "input %q", raw)
	}
}

func TestValidationMessages(t *testing.T) {
	require.Equal(t, "Unsupported file type", (&ValidationError{Reason: ReasonUnsupportedType}).Message())
	require.Equal(t, "File too large (max 5MB)", (&ValidationError{Reason: ReasonTooLarge}).Message())
	require.Equal(t, "Invalid URL format", (&ValidationError{Reason: ReasonInvalidURL}).Message())
}
