package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jackzampolin/bookdeck/internal/book"
)

// Asset is a file produced or consumed by a stage. The set is closed.
type Asset int

const (
	AssetEPUB Asset = iota
	AssetCleanHTML
	AssetStructureJSON
	AssetCardsJSONL
	AssetCardPDFDir
	AssetTOCPDF
	AssetCombinedPDF
)

// Assets lists every asset in pipeline order.
var Assets = []Asset{
	AssetEPUB,
	AssetCleanHTML,
	AssetStructureJSON,
	AssetCardsJSONL,
	AssetCardPDFDir,
	AssetTOCPDF,
	AssetCombinedPDF,
}

func (a Asset) String() string {
	switch a {
	case AssetEPUB:
		return "epub"
	case AssetCleanHTML:
		return "clean-html"
	case AssetStructureJSON:
		return "structure-json"
	case AssetCardsJSONL:
		return "cards-jsonl"
	case AssetCardPDFDir:
		return "card-pdf-dir"
	case AssetTOCPDF:
		return "toc-pdf"
	case AssetCombinedPDF:
		return "combined-pdf"
	}
	return fmt.Sprintf("asset(%d)", int(a))
}

// ParseAsset returns the asset named s.
func ParseAsset(s string) (Asset, error) {
	for _, a := range Assets {
		if a.String() == s {
			return a, nil
		}
	}
	return 0, fmt.Errorf("unknown asset %q", s)
}

// Work is one book being processed: its source file and the directory its
// assets live in.
type Work struct {
	Name  string
	Dir   string
	Input string
}

// Path returns where asset a of w lives.
func (w Work) Path(a Asset) string {
	switch a {
	case AssetEPUB:
		return w.Input
	case AssetCleanHTML:
		return filepath.Join(w.Dir, w.Name+".html")
	case AssetStructureJSON:
		return book.StructurePath(w.Dir, w.Name)
	case AssetCardsJSONL:
		return book.DeckPath(w.Dir, w.Name)
	case AssetCardPDFDir:
		return filepath.Join(w.Dir, w.Name+"_pdfs")
	case AssetTOCPDF:
		return filepath.Join(w.Dir, "toc_"+w.Name+".pdf")
	case AssetCombinedPDF:
		return filepath.Join(w.Dir, w.Name+"_combined.pdf")
	}
	panic(fmt.Sprintf("pipeline: unhandled %v", a))
}

// Exists reports whether asset a of w is present on disk.
func (w Work) Exists(a Asset) bool {
	p := w.Path(a)
	if p == "" {
		return false
	}
	_, err := os.Stat(p)
	return err == nil
}

// Missing returns the assets of as not present on disk.
func (w Work) Missing(as []Asset) []Asset {
	var out []Asset
	for _, a := range as {
		if !w.Exists(a) {
			out = append(out, a)
		}
	}
	return out
}
