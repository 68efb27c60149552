package epub

import (
	"archive/zip"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testContainer = `<?xml version="1.0"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles><rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/></rootfiles>
</container>`

const testOPF = `<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title>Deep Work &mdash; Rules</dc:title>
  </metadata>
  <manifest>
    <item id="c1" href="text/ch1.xhtml" media-type="application/xhtml+xml"/>
    <item id="c2" href="text/ch2.xhtml" media-type="application/xhtml+xml"/>
    <item id="fig" href="images/fig.png" media-type="image/png"/>
  </manifest>
  <spine>
    <itemref idref="c2"/>
    <itemref idref="c1"/>
  </spine>
</package>`

const testChapter1 = `<?xml version="1.0" encoding="UTF-8"?>
<html xmlns="http://www.w3.org/1999/xhtml" xmlns:epub="http://www.idpf.org/2007/ops">
<head><title>One</title></head>
<body>
<h1>One</h1>
<p>Text<a epub:type="noteref" href="#n1">1</a> more.</p>
<p>Sup<sup><a epub:type="noteref" href="#n2">2</a></sup>end</p>
<aside epub:type="footnote" id="n1"><p>Footnote body</p></aside>
<div role="doc-endnotes"><p>Endnote body</p></div>
<script>alert(1)</script>
<img src="../images/fig.png" alt="figure"/>
</body>
</html>`

const testChapter2 = `<html><body><h1>Two</h1><p>Second chapter.</p></body></html>`

func buildEPUB(t *testing.T, files map[string]string, order []string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range order {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(files[name])); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func testBook(t *testing.T, withContainer bool) []byte {
	files := map[string]string{
		"mimetype":               "application/epub+zip",
		"META-INF/container.xml": testContainer,
		"OEBPS/content.opf":      testOPF,
		"OEBPS/text/ch1.xhtml":   testChapter1,
		"OEBPS/text/ch2.xhtml":   testChapter2,
		"OEBPS/images/fig.png":   "PNGDATA",
	}
	order := []string{"mimetype", "META-INF/container.xml", "OEBPS/content.opf",
		"OEBPS/text/ch1.xhtml", "OEBPS/text/ch2.xhtml", "OEBPS/images/fig.png"}
	if !withContainer {
		order = append(order[:1], order[2:]...)
	}
	return buildEPUB(t, files, order)
}

func TestConvertReader(t *testing.T) {
	for _, withContainer := range []bool{true, false} {
		name := "container"
		if !withContainer {
			name = "opf fallback"
		}
		t.Run(name, func(t *testing.T) {
			data := testBook(t, withContainer)
			doc, err := ConvertReader(bytes.NewReader(data), int64(len(data)))
			if err != nil {
				t.Fatalf("ConvertReader: %v", err)
			}

			if doc.Title != "Deep Work — Rules" {
				t.Errorf("got title %q", doc.Title)
			}
			if got := string(doc.Images["fig.png"]); got != "PNGDATA" {
				t.Errorf("got image %q, want %q", got, "PNGDATA")
			}

			two := strings.Index(doc.HTML, "<h1>Two</h1>")
			one := strings.Index(doc.HTML, "<h1>One</h1>")
			if two < 0 || one < 0 || two > one {
				t.Errorf("chapters not in spine order:\n%s", doc.HTML)
			}

			for _, want := range []string{
				"<p>Text more.</p>",
				"<p>Supend</p>",
				`src="../images/fig.png"`,
				"<title>Deep Work — Rules</title>",
			} {
				if !strings.Contains(doc.HTML, want) {
					t.Errorf("missing %q in:\n%s", want, doc.HTML)
				}
			}
			for _, banned := range []string{"Footnote body", "Endnote body", "alert(1)", "noteref"} {
				if strings.Contains(doc.HTML, banned) {
					t.Errorf("unexpected %q in output", banned)
				}
			}
		})
	}
}

func TestConvertReader_Invalid(t *testing.T) {
	data := buildEPUB(t, map[string]string{"mimetype": "application/epub+zip"}, []string{"mimetype"})
	_, err := ConvertReader(bytes.NewReader(data), int64(len(data)))
	if !errors.Is(err, ErrInvalidEPUB) {
		t.Errorf("got %v, want ErrInvalidEPUB", err)
	}
}

func TestConvert_FileAndMedia(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "book.epub")
	if err := os.WriteFile(path, testBook(t, true), 0o644); err != nil {
		t.Fatal(err)
	}

	doc, err := Convert(path)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	paths, err := doc.ExtractMedia(filepath.Join(dir, "book_media"))
	if err != nil {
		t.Fatalf("ExtractMedia: %v", err)
	}
	if len(paths) != 1 || filepath.Base(paths[0]) != "fig.png" {
		t.Fatalf("got %v", paths)
	}
	data, err := os.ReadFile(paths[0])
	if err != nil || string(data) != "PNGDATA" {
		t.Errorf("media file content %q, err %v", data, err)
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		base, href, want string
	}{
		{"OEBPS/content.opf", "text/ch1.xhtml", "OEBPS/text/ch1.xhtml"},
		{"OEBPS/text/ch1.xhtml", "../images/a%20b.png", "OEBPS/images/a b.png"},
		{"content.opf", "ch1.xhtml#part", "ch1.xhtml"},
		{"content.opf", "../../etc/passwd", ""},
		{"content.opf", "/abs.xhtml", ""},
	}
	for _, tt := range tests {
		if got := resolve(tt.base, tt.href); got != tt.want {
			t.Errorf("resolve(%q, %q) = %q, want %q", tt.base, tt.href, got, tt.want)
		}
	}
}
