package render

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/jackzampolin/bookdeck/internal/book"
)

// ErrNothingToRender is returned when a page set would be empty.
var ErrNothingToRender = errors.New("nothing to render")

// Slugify lowercases text and keeps only letters and digits.
// e.g., "The Deep Work Hypothesis!" -> "thedeepworkhypothesis"
func Slugify(text string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// pageName returns "<slug>_<n>", or "<fallback>_<n>" when the title has no
// usable characters. n is 1-based so file order follows deck order.
func pageName(title, fallback string, i int) string {
	slug := Slugify(title)
	if slug == "" {
		slug = fallback
	}
	return fmt.Sprintf("%s_%d", slug, i+1)
}

// Cards renders one A5 landscape PDF per card into dir, in deck order.
func (r *Renderer) Cards(ctx context.Context, deck book.CardSet, dir string) ([]string, error) {
	if len(deck) == 0 {
		return nil, fmt.Errorf("%w: empty deck", ErrNothingToRender)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	pages := make([]Page, len(deck))
	for i, c := range deck {
		p, err := r.writePage(cardTemplate, c, dir, pageName(c.Title, "card", i))
		if err != nil {
			return nil, fmt.Errorf("card %d: %w", i, err)
		}
		pages[i] = p
	}
	r.logger.Info("rendering cards", "cards", len(pages), "dir", dir)
	return r.Convert(ctx, pages)
}

// Sections renders one A5 landscape PDF per section into dir.
func (r *Renderer) Sections(ctx context.Context, s book.Structure, dir string) ([]string, error) {
	if len(s.Sections) == 0 {
		return nil, fmt.Errorf("%w: no sections", ErrNothingToRender)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	pages := make([]Page, len(s.Sections))
	for i, sec := range s.Sections {
		p, err := r.writePage(sectionTemplate, sec, dir, "section_"+pageName(sec.Name, "untitled", i))
		if err != nil {
			return nil, fmt.Errorf("section %d: %w", i, err)
		}
		pages[i] = p
	}
	r.logger.Info("rendering sections", "sections", len(pages), "dir", dir)
	return r.Convert(ctx, pages)
}

type documentData struct {
	Title    string
	Sections []book.Section
}

// TOC renders the table of contents as an A4 portrait document at path.
func (r *Renderer) TOC(ctx context.Context, title string, s book.Structure, path string) (string, error) {
	return r.document(ctx, tocTemplate, title, s, path)
}

// Passages renders the key passages of every section as an A4 portrait
// document at path. Passages without text are left out.
func (r *Renderer) Passages(ctx context.Context, title string, s book.Structure, path string) (string, error) {
	return r.document(ctx, passagesTemplate, title, s, path)
}

func (r *Renderer) document(ctx context.Context, name, title string, s book.Structure, path string) (string, error) {
	if len(s.Sections) == 0 {
		return "", fmt.Errorf("%w: no sections", ErrNothingToRender)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	p, err := r.writePage(name, documentData{Title: title, Sections: s.Sections}, dir, base)
	if err != nil {
		return "", err
	}
	out, err := r.Convert(ctx, []Page{p})
	if err != nil {
		return "", err
	}
	return out[0], nil
}
