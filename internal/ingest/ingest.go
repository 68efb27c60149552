// Package ingest turns an EPUB or converter HTML file into the normalized
// document the rest of the pipeline addresses by tag identifier.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/jackzampolin/bookdeck/internal/cache"
	"github.com/jackzampolin/bookdeck/internal/epub"
	"github.com/jackzampolin/bookdeck/internal/normalize"
)

// ErrUnsupportedInput is returned for inputs that are neither EPUB nor HTML.
var ErrUnsupportedInput = errors.New("unsupported input format")

// Request contains the parameters for cleaning one book.
type Request struct {
	Input  string       // .epub, .html or .htm
	OutDir string       // where <name>.html and <name>_media/ are written
	Name   string       // optional, derived from the file name if empty
	Cache  *cache.Cache // optional; keyed by the sha256 of the input bytes
	Logger *slog.Logger
}

// Result contains the result of a successful clean.
type Result struct {
	Name     string `json:"name" yaml:"name"`
	HTMLPath string `json:"html_path" yaml:"html_path"`
	MediaDir string `json:"media_dir,omitempty" yaml:"media_dir,omitempty"`
	Images   int    `json:"images" yaml:"images"`
	SHA256   string `json:"sha256" yaml:"sha256"`
	Bytes    int    `json:"bytes" yaml:"bytes"`
	Cached   bool   `json:"cached" yaml:"cached"`

	HTML string `json:"-" yaml:"-"`
}

// Ingest converts and normalizes req.Input and writes <OutDir>/<name>.html.
// EPUB images are extracted to <OutDir>/<name>_media.
func Ingest(ctx context.Context, req Request) (*Result, error) {
	log := req.Logger
	if log == nil {
		log = slog.Default()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	kind := strings.ToLower(filepath.Ext(req.Input))
	switch kind {
	case ".epub", ".html", ".htm", ".xhtml":
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedInput, req.Input)
	}

	raw, err := os.ReadFile(req.Input)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	sum := sha256.Sum256(raw)

	name := req.Name
	if name == "" {
		name = DeriveName(req.Input)
	}
	res := &Result{
		Name:     name,
		HTMLPath: filepath.Join(req.OutDir, name+".html"),
		SHA256:   hex.EncodeToString(sum[:]),
	}
	if err := os.MkdirAll(req.OutDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	log.Info("cleaning book", "file", filepath.Base(req.Input), "name", name)

	var doc *epub.Document
	if kind == ".epub" {
		doc, err = epub.Convert(req.Input)
		if err != nil {
			return nil, fmt.Errorf("failed to convert %s: %w", filepath.Base(req.Input), err)
		}
		if len(doc.Images) > 0 {
			res.MediaDir = filepath.Join(req.OutDir, name+"_media")
			written, err := doc.ExtractMedia(res.MediaDir)
			if err != nil {
				return nil, fmt.Errorf("failed to extract media: %w", err)
			}
			res.Images = len(written)
		}
	}

	key := struct {
		SHA256 string `json:"sha256"`
	}{res.SHA256}
	html, cached, err := cache.Do(req.Cache, cache.KindDocument, key, func() (string, error) {
		source := string(raw)
		if doc != nil {
			source = doc.HTML
		}
		return normalize.Normalize(source), nil
	})
	if err != nil {
		return nil, err
	}
	res.HTML = html
	res.Bytes = len(html)
	res.Cached = cached

	if err := os.WriteFile(res.HTMLPath, []byte(html), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write cleaned HTML: %w", err)
	}
	log.Info("clean complete", "html", res.HTMLPath, "bytes", res.Bytes, "images", res.Images, "cached", cached)
	return res, nil
}

var (
	partSuffixRe = regexp.MustCompile(`[-_]\d+$`)
	unsafeNameRe = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)
)

// DeriveName extracts a work name from a book file name.
// e.g., "Deep Work.epub" -> "Deep_Work"
// e.g., "my-book-1.html" -> "my-book"
func DeriveName(path string) string {
	base := filepath.Base(path)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	name = partSuffixRe.ReplaceAllString(name, "")
	name = strings.Trim(unsafeNameRe.ReplaceAllString(name, "_"), "_.")
	if name == "" {
		return "book"
	}
	return name
}
