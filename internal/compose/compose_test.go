package compose

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/jackzampolin/bookdeck/internal/layout"
	"github.com/jackzampolin/bookdeck/internal/testutil"
)

// writeTestPDF writes a minimal valid PDF with one page per dimension.
func writeTestPDF(t *testing.T, path string, pages ...layout.Dim) {
	t.Helper()
	dims := make([][2]float64, len(pages))
	for i, d := range pages {
		dims[i] = [2]float64{d.Width, d.Height}
	}
	testutil.WritePDF(t, path, dims...)
}

func quietLogger() *slog.Logger {
	return testutil.QuietLogger()
}

var a5 = layout.Dim{Width: layout.A5Width, Height: layout.A5Height}

func writeCards(t *testing.T, dir string, n int) []string {
	t.Helper()
	var paths []string
	for i := 1; i <= n; i++ {
		p := filepath.Join(dir, fmt.Sprintf("card-%d.pdf", i))
		writeTestPDF(t, p, a5)
		paths = append(paths, p)
	}
	return paths
}

func TestSortPDFsByNumber(t *testing.T) {
	in := []string{"card-10.pdf", "toc.pdf", "card-2.pdf", "card_1.pdf", "alpha.pdf"}
	want := []string{"card_1.pdf", "card-2.pdf", "card-10.pdf", "alpha.pdf", "toc.pdf"}
	if got := SortPDFsByNumber(in); !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestPDFList(t *testing.T) {
	pdfs := NewPDFList([]layout.Source{
		{Path: "a.pdf", Pages: []layout.Dim{a5}},
		{Path: "b.pdf", Pages: []layout.Dim{a5, a5, a5}},
		{Path: "c.pdf", Pages: []layout.Dim{a5}},
	})

	if got := pdfs.TotalPages(); got != 5 {
		t.Errorf("TotalPages = %d, want 5", got)
	}
	if got := pdfs.GlobalPage(1, 2); got != 3 {
		t.Errorf("GlobalPage(1, 2) = %d, want 3", got)
	}
	if got := pdfs.GlobalPage(1, 4); got != 0 {
		t.Errorf("GlobalPage out of range = %d, want 0", got)
	}
	path, page := pdfs.FindPDFForPage(4)
	if path != "b.pdf" || page != 3 {
		t.Errorf("FindPDFForPage(4) = (%q, %d)", path, page)
	}
	if path, _ := pdfs.FindPDFForPage(9); path != "" {
		t.Errorf("expected no file for page 9, got %q", path)
	}
}

func TestListPDFs(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"card-2.pdf", "card-1.PDF", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.pdf"), 0o755); err != nil {
		t.Fatal(err)
	}

	got, err := ListPDFs(dir)
	if err != nil {
		t.Fatalf("ListPDFs: %v", err)
	}
	want := []string{filepath.Join(dir, "card-1.PDF"), filepath.Join(dir, "card-2.pdf")}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestCombine_NoInputs(t *testing.T) {
	dir := t.TempDir()
	_, err := Combine(context.Background(), Request{
		Inputs: []string{dir},
		Output: filepath.Join(dir, "out.pdf"),
		Logger: quietLogger(),
	})
	if !errors.Is(err, ErrNoInputs) {
		t.Errorf("got %v, want ErrNoInputs", err)
	}
}

func TestCombine_AllCorruptWritesNothing(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "broken-1.pdf")
	if err := os.WriteFile(bad, []byte("not a pdf"), 0o644); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "out.pdf")

	_, err := Combine(context.Background(), Request{
		Inputs: []string{bad},
		Output: out,
		Logger: quietLogger(),
	})
	if !errors.Is(err, ErrNoPages) {
		t.Fatalf("got %v, want ErrNoPages", err)
	}
	if _, statErr := os.Stat(out); !os.IsNotExist(statErr) {
		t.Error("output file must not be written")
	}
}

func TestCombine_Pair(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "cards")
	if err := os.Mkdir(in, 0o755); err != nil {
		t.Fatal(err)
	}
	writeCards(t, in, 3)
	if err := os.WriteFile(filepath.Join(in, "corrupt-9.pdf"), []byte("%PDF-garbage"), 0o644); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "combined.pdf")

	res, err := Combine(context.Background(), Request{
		Inputs: []string{in},
		Output: out,
		Layout: layout.Pair,
		Logger: quietLogger(),
	})
	if err != nil {
		t.Fatalf("Combine: %v", err)
	}
	if res.Sheets != 2 || res.Placed != 3 || res.Skipped != 1 {
		t.Errorf("unexpected result %+v", res)
	}

	dims, err := api.PageDimsFile(out)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if len(dims) != 2 {
		t.Fatalf("output has %d pages, want 2", len(dims))
	}
	for _, d := range dims {
		if layout.Classify(d.Width, d.Height) != layout.A4Portrait {
			t.Errorf("sheet %.2fx%.2f is not A4 portrait", d.Width, d.Height)
		}
	}
}

func TestCombine_UnknownLayout(t *testing.T) {
	dir := t.TempDir()
	writeCards(t, dir, 3)
	out := filepath.Join(dir, "combined.pdf")

	_, err := Combine(context.Background(), Request{
		Inputs: []string{dir},
		Output: out,
		Layout: layout.Layout("pairs"),
		Logger: quietLogger(),
	})
	if err == nil || errors.Is(err, ErrNoPages) {
		t.Fatalf("got %v, want an unknown layout error", err)
	}
	if _, statErr := os.Stat(out); !os.IsNotExist(statErr) {
		t.Error("output file must not be written")
	}
}

func TestCombine_QuadWithPassthrough(t *testing.T) {
	dir := t.TempDir()
	paths := writeCards(t, dir, 5)
	toc := filepath.Join(dir, "toc.pdf")
	writeTestPDF(t, toc,
		layout.Dim{Width: layout.A4Width, Height: layout.A4Height},
		layout.Dim{Width: layout.A4Width, Height: layout.A4Height})
	out := filepath.Join(dir, "combined.pdf")

	res, err := Combine(context.Background(), Request{
		Inputs:    append([]string{toc}, paths...),
		Output:    out,
		Layout:    layout.Quad,
		ScaleDown: true,
		Logger:    quietLogger(),
	})
	if err != nil {
		t.Fatalf("Combine: %v", err)
	}
	if res.Sheets != 4 {
		t.Errorf("got %d sheets, want 4", res.Sheets)
	}

	dims, err := api.PageDimsFile(out)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	want := []layout.SizeClass{layout.A4Landscape, layout.A4Landscape, layout.Unclassified, layout.Unclassified}
	for i, d := range dims {
		if got := layout.Classify(d.Width, d.Height); got != want[i] {
			t.Errorf("sheet %d is %q, want %q", i+1, got, want[i])
		}
	}
	if len(dims) == 4 && (dims[2].Width > layout.A4Width/2+1 || dims[2].Height > layout.A4Height/2+1) {
		t.Errorf("scaled-down sheet is %.2fx%.2f", dims[2].Width, dims[2].Height)
	}
}
