// Package epub flattens an EPUB into a single HTML document ready for
// normalization. Spine documents are concatenated in reading order with
// footnotes and note references removed.
package epub

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"html"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

var (
	// ErrInvalidEPUB is returned when the archive has no package document
	// or no readable spine.
	ErrInvalidEPUB = errors.New("invalid EPUB")

	// ErrFileNotFound is returned when a referenced entry is missing.
	ErrFileNotFound = errors.New("file not found in archive")
)

// Document is the flattened book.
type Document struct {
	Title  string
	HTML   string
	Images map[string][]byte // keyed by base file name
}

// Convert reads the EPUB at path.
func Convert(path string) (*Document, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer zr.Close()
	return convert(&zr.Reader)
}

// ConvertReader reads an EPUB from r.
func ConvertReader(r io.ReaderAt, size int64) (*Document, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("failed to open zip: %w", err)
	}
	return convert(zr)
}

func convert(zr *zip.Reader) (*Document, error) {
	a := newArchive(zr)

	opfPath, err := a.rootFile()
	if err != nil {
		return nil, err
	}
	data, err := a.read(opfPath)
	if err != nil {
		return nil, err
	}
	var pkg opfPackage
	if err := unmarshalOPF(data, &pkg); err != nil {
		return nil, err
	}

	hrefs := make(map[string]string, len(pkg.Manifest))
	images := make(map[string][]byte)
	for _, item := range pkg.Manifest {
		p := resolve(opfPath, item.Href)
		if p == "" {
			continue
		}
		hrefs[item.ID] = p
		if strings.HasPrefix(item.MediaType, "image/") {
			img, err := a.read(p)
			if err != nil {
				continue
			}
			images[path.Base(p)] = img
		}
	}

	doc := &Document{Images: images}
	if len(pkg.Title) > 0 {
		doc.Title = strings.TrimSpace(pkg.Title[0])
	}

	var body bytes.Buffer
	chapters := 0
	for _, ref := range pkg.Spine {
		p, ok := hrefs[ref.IDRef]
		if !ok {
			continue
		}
		raw, err := a.read(p)
		if err != nil {
			return nil, err
		}
		content, err := chapterBody(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", p, err)
		}
		if strings.TrimSpace(content) == "" {
			continue
		}
		body.WriteString("<section>\n")
		body.WriteString(content)
		body.WriteString("\n</section>\n")
		chapters++
	}
	if chapters == 0 {
		return nil, fmt.Errorf("spine has no readable documents: %w", ErrInvalidEPUB)
	}

	var out strings.Builder
	out.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\" />\n")
	fmt.Fprintf(&out, "<title>%s</title>\n", html.EscapeString(doc.Title))
	out.WriteString("</head>\n<body>\n")
	out.WriteString(body.String())
	out.WriteString("</body>\n</html>\n")
	doc.HTML = out.String()

	return doc, nil
}

// ExtractMedia writes the document's images into dir and returns the
// written paths in name order.
func (d *Document) ExtractMedia(dir string) ([]string, error) {
	if len(d.Images) == 0 {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create media dir: %w", err)
	}
	names := make([]string, 0, len(d.Images))
	for name := range d.Images {
		names = append(names, name)
	}
	sort.Strings(names)

	paths := make([]string, 0, len(names))
	for _, name := range names {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, d.Images[name], 0o644); err != nil {
			return paths, fmt.Errorf("failed to write %s: %w", name, err)
		}
		paths = append(paths, p)
	}
	return paths, nil
}
