package home

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultDirName is the default name for the bookdeck home directory.
	DefaultDirName = ".bookdeck"

	// BooksDirName is the subdirectory holding one work directory per book.
	BooksDirName = "books"

	// CacheDirName is the API response cache, relative to the home.
	CacheDirName = "cache/api_responses"

	// PromptsDirName holds per-book prompt overrides.
	PromptsDirName = "prompts"

	// UploadsDirName holds books uploaded through the web wizard.
	UploadsDirName = "uploads"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"
)

// Dir represents the bookdeck home directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.bookdeck).
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}

	return &Dir{path: path}, nil
}

// Path returns the root path of the home directory.
func (d *Dir) Path() string {
	return d.path
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// CachePath returns the API response cache directory.
func (d *Dir) CachePath() string {
	return filepath.Join(d.path, filepath.FromSlash(CacheDirName))
}

// PromptsPath returns the prompt override directory.
func (d *Dir) PromptsPath() string {
	return filepath.Join(d.path, PromptsDirName)
}

// UploadsPath returns the directory uploaded books are saved to.
func (d *Dir) UploadsPath() string {
	return filepath.Join(d.path, UploadsDirName)
}

// BooksPath returns the directory holding all book work directories.
func (d *Dir) BooksPath() string {
	return filepath.Join(d.path, BooksDirName)
}

// WorkPath returns the work directory of a book.
func (d *Dir) WorkPath(name string) string {
	return filepath.Join(d.BooksPath(), name)
}

// EnsureWorkDir creates the work directory of a book and returns it.
func (d *Dir) EnsureWorkDir(name string) (string, error) {
	dir := d.WorkPath(name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create work directory: %w", err)
	}
	return dir, nil
}

// EnsureExists creates the home directory and subdirectories if they don't exist.
func (d *Dir) EnsureExists() error {
	for _, dir := range []string{d.BooksPath(), d.CachePath(), d.PromptsPath(), d.UploadsPath()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

// Exists returns true if the home directory exists.
func (d *Dir) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// ConfigExists returns true if the config file exists in the home directory.
func (d *Dir) ConfigExists() bool {
	_, err := os.Stat(d.ConfigPath())
	return err == nil
}

// Books lists the names of existing book work directories.
func (d *Dir) Books() ([]string, error) {
	entries, err := os.ReadDir(d.BooksPath())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list books: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}
