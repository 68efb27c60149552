package prompts

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// validKeyPattern matches valid prompt keys (alphanumeric with dots, underscores).
var validKeyPattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9._]*$`)

// validBookPattern matches book names usable as directory names.
var validBookPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)

const overrideExt = ".tmpl"

// Store keeps per-book prompt overrides on disk as
// <dir>/<book>/<prompt key>.tmpl.
type Store struct {
	dir    string
	logger *slog.Logger
}

// NewStore creates a new prompt store rooted at dir.
func NewStore(dir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{dir: dir, logger: logger}
}

func (s *Store) path(book, key string) (string, error) {
	if !validKeyPattern.MatchString(key) {
		return "", fmt.Errorf("invalid prompt key: %s", key)
	}
	if !validBookPattern.MatchString(book) {
		return "", fmt.Errorf("invalid book name: %s", book)
	}
	return filepath.Join(s.dir, book, key+overrideExt), nil
}

// GetBookOverride returns the override for a book and prompt key, or nil
// when none exists.
func (s *Store) GetBookOverride(book, key string) (*BookPromptOverride, error) {
	path, err := s.path(book, key)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat override: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read override: %w", err)
	}
	return &BookPromptOverride{
		Book:      book,
		PromptKey: key,
		Text:      string(data),
		UpdatedAt: info.ModTime(),
	}, nil
}

// ListBookOverrides returns all overrides for a book, sorted by key.
func (s *Store) ListBookOverrides(book string) ([]BookPromptOverride, error) {
	if !validBookPattern.MatchString(book) {
		return nil, fmt.Errorf("invalid book name: %s", book)
	}
	entries, err := os.ReadDir(filepath.Join(s.dir, book))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list overrides: %w", err)
	}

	var keys []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), overrideExt) {
			continue
		}
		keys = append(keys, strings.TrimSuffix(e.Name(), overrideExt))
	}
	sort.Strings(keys)

	overrides := make([]BookPromptOverride, 0, len(keys))
	for _, key := range keys {
		o, err := s.GetBookOverride(book, key)
		if err != nil {
			s.logger.Warn("skipping unreadable override", "book", book, "key", key, "error", err)
			continue
		}
		if o != nil {
			overrides = append(overrides, *o)
		}
	}
	return overrides, nil
}

// SetBookOverride creates or replaces an override.
func (s *Store) SetBookOverride(book, key, text string) error {
	path, err := s.path(book, key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create override dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("failed to write override: %w", err)
	}
	s.logger.Info("set prompt override", "book", book, "key", key)
	return nil
}

// ClearBookOverride removes an override. Clearing a missing override is
// not an error.
func (s *Store) ClearBookOverride(book, key string) error {
	path, err := s.path(book, key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove override: %w", err)
	}
	return nil
}
