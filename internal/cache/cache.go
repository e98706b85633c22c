package cache

import (
	"crypto/sha256"
	"fmt"
	"io"
	"sync"
)

// Fingerprint returns the hex SHA-256 of everything read from r.
func Fingerprint(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// Seen is a concurrent set of content fingerprints.
type Seen struct {
	entries sync.Map
}

func NewSeen() *Seen {
	return &Seen{}
}

// Has reports whether key was stored.
func (s *Seen) Has(key string) bool {
	_, ok := s.entries.Load(key)
	return ok
}

// Mark stores key. It returns false if key was already present.
func (s *Seen) Mark(key string) bool {
	_, loaded := s.entries.LoadOrStore(key, struct{}{})
	return !loaded
}

// Len counts the stored fingerprints.
func (s *Seen) Len() int {
	n := 0
	s.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
