package ingest

import (
	"archive/zip"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jackzampolin/bookdeck/internal/cache"
	"github.com/jackzampolin/bookdeck/internal/normalize"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDeriveName(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"books/Deep Work.epub", "Deep_Work"},
		{"my-book-1.html", "my-book"},
		{"/abs/path/The.Stoics_2.htm", "The.Stoics"},
		{"???.epub", "book"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := DeriveName(tt.path); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func writeEPUB(t *testing.T, path string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	files := []struct{ name, body string }{
		{"mimetype", "application/epub+zip"},
		{"META-INF/container.xml", `<?xml version="1.0"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
<rootfiles><rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/></rootfiles>
</container>`},
		{"OEBPS/content.opf", `<?xml version="1.0"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0">
<metadata xmlns:dc="http://purl.org/dc/elements/1.1/"><dc:title>Tiny</dc:title></metadata>
<manifest>
<item id="c1" href="text/c1.xhtml" media-type="application/xhtml+xml"/>
<item id="img" href="images/cover.jpg" media-type="image/jpeg"/>
</manifest>
<spine><itemref idref="c1"/></spine>
</package>`},
		{"OEBPS/text/c1.xhtml", `<html xmlns="http://www.w3.org/1999/xhtml"><body>
<h1 id="start">One</h1><p>Hello <a href="#n1">world</a>.</p><img src="../images/cover.jpg" alt="c"/>
</body></html>`},
		{"OEBPS/images/cover.jpg", "JPEG"},
	}
	for _, file := range files {
		w, err := zw.Create(file.name)
		if err != nil {
			t.Fatal(err)
		}
		w.Write([]byte(file.body))
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	f.Close()
}

func TestIngest_EPUB(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "Tiny Book.epub")
	writeEPUB(t, input)
	out := filepath.Join(dir, "out")

	res, err := Ingest(context.Background(), Request{Input: input, OutDir: out, Logger: quietLogger()})
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if res.Name != "Tiny_Book" {
		t.Errorf("Name = %q, want %q", res.Name, "Tiny_Book")
	}
	if res.Images != 1 {
		t.Errorf("Images = %d, want 1", res.Images)
	}
	if _, err := os.Stat(filepath.Join(out, "Tiny_Book_media", "cover.jpg")); err != nil {
		t.Errorf("media not extracted: %v", err)
	}

	data, err := os.ReadFile(res.HTMLPath)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	html := string(data)
	if html != res.HTML {
		t.Error("written file differs from result HTML")
	}
	for _, want := range []string{`id="tag-1"`, `src="cover.jpg"`, "Hello"} {
		if !strings.Contains(html, want) {
			t.Errorf("output missing %q", want)
		}
	}
	for _, banned := range []string{"href=", `id="start"`, "../images/"} {
		if strings.Contains(html, banned) {
			t.Errorf("output still contains %q", banned)
		}
	}
}

func TestIngest_HTMLDeterministicAndCached(t *testing.T) {
	dir := t.TempDir()
	raw := `<html><body><p id="x">A <span> </span><img
   src="C:\tmp\run1\pic.PNG" alt="p"></p></body></html>`
	input := filepath.Join(dir, "book.html")
	if err := os.WriteFile(input, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}
	c := cache.New(cache.Config{Dir: filepath.Join(dir, "cache"), Logger: quietLogger()})

	first, err := Ingest(context.Background(), Request{Input: input, OutDir: filepath.Join(dir, "a"), Cache: c, Logger: quietLogger()})
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if first.Cached {
		t.Error("first run reported cached")
	}
	if want := normalize.Normalize(raw); first.HTML != want {
		t.Errorf("got %q, want %q", first.HTML, want)
	}

	second, err := Ingest(context.Background(), Request{Input: input, OutDir: filepath.Join(dir, "b"), Cache: c, Logger: quietLogger()})
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if !second.Cached {
		t.Error("second run not served from cache")
	}
	if second.HTML != first.HTML || second.SHA256 != first.SHA256 {
		t.Error("outputs differ across runs")
	}

	stats, _ := c.Stats()
	if stats.Documents != 1 {
		t.Errorf("Documents = %d, want 1", stats.Documents)
	}
}

func TestIngest_Unsupported(t *testing.T) {
	_, err := Ingest(context.Background(), Request{Input: "notes.txt", OutDir: t.TempDir()})
	if !errors.Is(err, ErrUnsupportedInput) {
		t.Errorf("error = %v, want ErrUnsupportedInput", err)
	}
}
