// Package screenshot persists page captures as evidence of a validation.
package screenshot

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	DefaultDir     = "screenshots"
	DefaultPattern = "Wikipedia-%s-homepage.png"
	// ErrorSuffix is appended to the locale key on the failure path.
	ErrorSuffix = "-error"
)

// Store writes screenshots into Dir, named by Pattern.
type Store struct {
	Dir     string
	Pattern string
}

// NewStore returns a store rooted at dir. Empty values fall back to defaults.
func NewStore(dir, pattern string) *Store {
	if dir == "" {
		dir = DefaultDir
	}
	if pattern == "" || !strings.Contains(pattern, "%s") {
		pattern = DefaultPattern
	}
	return &Store{Dir: dir, Pattern: pattern}
}

// Key returns the file key for a locale, error-suffixed when failed.
func Key(locale string, failed bool) string {
	if failed {
		return locale + ErrorSuffix
	}
	return locale
}

// Path returns where the screenshot for key is written.
func (s *Store) Path(key string) string {
	return filepath.Join(s.Dir, fmt.Sprintf(s.Pattern, key))
}

// Save writes data for key, creating the directory if absent.
func (s *Store) Save(key string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", errors.New("empty screenshot")
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create screenshot directory: %w", err)
	}
	path := s.Path(key)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write screenshot: %w", err)
	}
	return path, nil
}
