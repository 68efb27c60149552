package compose

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/jackzampolin/bookdeck/internal/layout"
)

// PDFInfo describes an input file and its page range in the merged
// document.
type PDFInfo struct {
	Path      string // Full path to the PDF
	StartPage int    // First page number (1-indexed, cumulative)
	EndPage   int    // Last page number (inclusive)
}

// PDFList is a slice of PDFInfo with helper methods.
type PDFList []PDFInfo

// NewPDFList builds cumulative page ranges for sources in order.
func NewPDFList(sources []layout.Source) PDFList {
	pdfs := make(PDFList, 0, len(sources))
	cumulative := 1
	for _, s := range sources {
		n := len(s.Pages)
		pdfs = append(pdfs, PDFInfo{
			Path:      s.Path,
			StartPage: cumulative,
			EndPage:   cumulative + n - 1,
		})
		cumulative += n
	}
	return pdfs
}

// GlobalPage returns the merged page number of page (1-indexed) of the
// i-th file, or 0 if out of range.
func (pdfs PDFList) GlobalPage(i, page int) int {
	if i < 0 || i >= len(pdfs) {
		return 0
	}
	n := pdfs[i].StartPage + page - 1
	if page < 1 || n > pdfs[i].EndPage {
		return 0
	}
	return n
}

// FindPDFForPage returns the file and page number within that file for a
// merged page number. Returns empty string and 0 if out of range.
func (pdfs PDFList) FindPDFForPage(pageNum int) (pdfPath string, pageInPDF int) {
	for _, pdf := range pdfs {
		if pageNum >= pdf.StartPage && pageNum <= pdf.EndPage {
			return pdf.Path, pageNum - pdf.StartPage + 1
		}
	}
	return "", 0
}

// TotalPages returns the page count of the merged document.
func (pdfs PDFList) TotalPages() int {
	if len(pdfs) == 0 {
		return 0
	}
	return pdfs[len(pdfs)-1].EndPage
}

// ListPDFs returns the PDF files in dir sorted by numeric suffix, then name.
func ListPDFs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasSuffix(strings.ToLower(entry.Name()), ".pdf") {
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	return SortPDFsByNumber(paths), nil
}

var numericSuffixRe = regexp.MustCompile(`[-_](\d+)\.pdf$`)

// SortPDFsByNumber sorts paths by their numeric suffix.
// e.g., ["card-2.pdf", "card-1.pdf", "card-10.pdf"] -> ["card-1.pdf", "card-2.pdf", "card-10.pdf"]
// Files without a numeric suffix sort lexicographically after numbered ones.
func SortPDFsByNumber(paths []string) []string {
	sorted := make([]string, len(paths))
	copy(sorted, paths)

	sort.SliceStable(sorted, func(i, j int) bool {
		mi := numericSuffixRe.FindStringSubmatch(strings.ToLower(sorted[i]))
		mj := numericSuffixRe.FindStringSubmatch(strings.ToLower(sorted[j]))

		switch {
		case len(mi) > 1 && len(mj) > 1:
			ni, _ := strconv.Atoi(mi[1])
			nj, _ := strconv.Atoi(mj[1])
			if ni != nj {
				return ni < nj
			}
			return sorted[i] < sorted[j]
		case len(mi) > 1:
			return true
		case len(mj) > 1:
			return false
		}
		return sorted[i] < sorted[j]
	})

	return sorted
}

// Probe reads the page dimensions of every file. Files that fail to parse
// are logged and left out of the result.
func Probe(paths []string, log *slog.Logger) []layout.Source {
	if log == nil {
		log = slog.Default()
	}
	var sources []layout.Source
	for _, p := range paths {
		dims, err := api.PageDimsFile(p)
		if err != nil {
			log.Warn("skipping unreadable PDF", "file", filepath.Base(p), "error", err)
			continue
		}
		if len(dims) == 0 {
			log.Warn("skipping PDF without pages", "file", filepath.Base(p))
			continue
		}
		src := layout.Source{Path: p, Pages: make([]layout.Dim, len(dims))}
		for i, d := range dims {
			src.Pages[i] = layout.Dim{Width: d.Width, Height: d.Height}
		}
		log.Debug("probed PDF", "file", filepath.Base(p), "pages", len(dims), "class", src.Class())
		sources = append(sources, src)
	}
	return sources
}
