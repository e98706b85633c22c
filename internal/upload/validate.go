package upload

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"net/url"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// MaxFileSize is the upload ceiling: 5 MiB
const MaxFileSize int64 = 5 * 1024 * 1024

// sniffLen bounds how much of an undeclared file is read to detect its type
const sniffLen = 3072

// DefaultAllowedTypes lists the MIME types the backend ingests
var DefaultAllowedTypes = []string{"application/pdf", "image/jpeg", "image/png"}

// Reason classifies a validation failure
type Reason string

const (
	ReasonMissingFile     Reason = "missing_file"
	ReasonUnsupportedType Reason = "unsupported_type"
	ReasonTooLarge        Reason = "too_large"
	ReasonMissingURL      Reason = "missing_url"
	ReasonInvalidURL      Reason = "invalid_url"
)

// ValidationError reports input rejected before any request is sent
type ValidationError struct {
	Reason Reason
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("upload: validation failed (%s)", e.Reason)
	}
	return fmt.Sprintf("upload: validation failed (%s): %s", e.Reason, e.Detail)
}

// Message returns the user-facing text for the failure
func (e *ValidationError) Message() string {
	switch e.Reason {
	case ReasonMissingFile:
		return "Please select a file first"
	case ReasonUnsupportedType:
		return "Unsupported file type"
	case ReasonTooLarge:
		return fmt.Sprintf("File too large (max %dMB)", MaxFileSize/(1024*1024))
	case ReasonMissingURL:
		return "Enter a URL"
	case ReasonInvalidURL:
		return "Invalid URL format"
	default:
		return "Invalid input"
	}
}

// Limits bounds what ValidateFile accepts
type Limits struct {
	MaxBytes     int64
	AllowedTypes []string
}

// DefaultLimits returns the 5 MiB, pdf/jpeg/png limits
func DefaultLimits() Limits {
	return Limits{
		MaxBytes:     MaxFileSize,
		AllowedTypes: append([]string(nil), DefaultAllowedTypes...),
	}
}

func (l Limits) withDefaults() Limits {
	if l.MaxBytes <= 0 {
		l.MaxBytes = MaxFileSize
	}
	if len(l.AllowedTypes) == 0 {
		l.AllowedTypes = DefaultAllowedTypes
	}
	return l
}

// File is a document picked by the user
type File struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// ValidateFile checks presence, type and size, in that order. When the file
// declares no content type it is sniffed from the body, and f is updated so
// the sniffed bytes are still sent.
func ValidateFile(f *File, limits Limits) error {
	limits = limits.withDefaults()

	if f == nil || f.Body == nil {
		return &ValidationError{Reason: ReasonMissingFile}
	}

	if strings.TrimSpace(f.ContentType) == "" {
		if err := sniff(f); err != nil {
			return err
		}
	}

	mediaType := normalizeType(f.ContentType)
	if !allowed(mediaType, limits.AllowedTypes) {
		return &ValidationError{Reason: ReasonUnsupportedType, Detail: mediaType}
	}

	if f.Size > limits.MaxBytes {
		return &ValidationError{
			Reason: ReasonTooLarge,
			Detail: fmt.Sprintf("%d bytes exceeds %d", f.Size, limits.MaxBytes),
		}
	}
	return nil
}

// ValidateURL checks that raw is an absolute URL. Web URLs also need a host.
func ValidateURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", &ValidationError{Reason: ReasonMissingURL}
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return "", &ValidationError{Reason: ReasonInvalidURL, Detail: err.Error()}
	}
	if u.Scheme == "" {
		return "", &ValidationError{Reason: ReasonInvalidURL, Detail: "missing scheme"}
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "ftp", "ws", "wss":
		if u.Host == "" {
			return "", &ValidationError{Reason: ReasonInvalidURL, Detail: "missing host"}
		}
	default:
		if u.Opaque == "" && u.Host == "" && u.Path == "" {
			return "", &ValidationError{Reason: ReasonInvalidURL, Detail: "empty URL body"}
		}
	}
	return trimmed, nil
}

func sniff(f *File) error {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(f.Body, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return fmt.Errorf("upload: read %s: %w", f.Name, err)
	}
	head = head[:n]
	f.ContentType = mimetype.Detect(head).String()
	f.Body = io.MultiReader(bytes.NewReader(head), f.Body)
	return nil
}

func normalizeType(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mediaType
}

func allowed(mediaType string, allowList []string) bool {
	for _, candidate := range allowList {
		if strings.EqualFold(mediaType, candidate) {
			return true
		}
	}
	return false
}
