// Package compose assembles probed PDF pages onto printable sheets and
// writes the combined document with pdfcpu.
package compose

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/jackzampolin/bookdeck/internal/layout"
)

var (
	// ErrNoInputs is returned when no PDF files were supplied or found.
	ErrNoInputs = errors.New("no PDF files found")

	// ErrNoPages is returned when nothing could be placed on any sheet.
	ErrNoPages = errors.New("no pages could be composed")
)

// Request describes one combination run.
type Request struct {
	Inputs    []string      // PDF files, or a single directory of PDFs
	Output    string        // Output file path
	Layout    layout.Layout // Tiling for single card pages
	ScaleDown bool          // Halve passthrough pages
	Logger    *slog.Logger  // Optional logger for progress updates
}

// Result summarizes a successful run.
type Result struct {
	Output  string `json:"output" yaml:"output"`
	Sheets  int    `json:"sheets" yaml:"sheets"`
	Placed  int    `json:"placed" yaml:"placed"`
	Skipped int    `json:"skipped" yaml:"skipped"`
}

// ResolveInputs expands a single directory argument into its sorted PDFs.
func ResolveInputs(inputs []string) ([]string, error) {
	if len(inputs) == 1 {
		if fi, err := os.Stat(inputs[0]); err == nil && fi.IsDir() {
			return ListPDFs(inputs[0])
		}
	}
	return inputs, nil
}

// Combine probes, plans and composes the inputs into req.Output. Nothing is
// written when no page could be placed.
func Combine(ctx context.Context, req Request) (*Result, error) {
	log := req.Logger
	if log == nil {
		log = slog.Default()
	}
	if req.Layout == "" {
		req.Layout = layout.Pair
	}
	lay, err := layout.ParseLayout(string(req.Layout))
	if err != nil {
		return nil, err
	}
	req.Layout = lay

	paths, err := ResolveInputs(req.Inputs)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, ErrNoInputs
	}

	log.Info("starting combine", "files", len(paths), "layout", req.Layout, "scale_down", req.ScaleDown)

	sources := Probe(paths, log)
	skipped := len(paths) - len(sources)
	sheets := layout.Plan(sources, req.Layout, req.ScaleDown)
	if layout.PageCount(sheets) == 0 {
		return nil, ErrNoPages
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pdfCtx, err := loadMerged(sources)
	if err != nil {
		return nil, err
	}

	pdfs := NewPDFList(sources)
	built, placed := buildSheets(pdfCtx, pdfs, sheets, log)
	if placed == 0 {
		return nil, ErrNoPages
	}

	if err := replacePages(pdfCtx, built); err != nil {
		return nil, err
	}
	if err := api.WriteContextFile(pdfCtx, req.Output); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", req.Output, err)
	}

	log.Info("combine complete", "output", req.Output, "sheets", len(built), "pages", placed, "skipped", skipped)

	return &Result{
		Output:  req.Output,
		Sheets:  len(built),
		Placed:  placed,
		Skipped: skipped,
	}, nil
}

// loadMerged merges every source into one temporary document and reads it
// back, so all pages share one object table.
func loadMerged(sources []layout.Source) (*model.Context, error) {
	path := sources[0].Path
	if len(sources) > 1 {
		tmpDir, err := os.MkdirTemp("", "bookdeck-combine-*")
		if err != nil {
			return nil, fmt.Errorf("failed to create temp dir: %w", err)
		}
		defer os.RemoveAll(tmpDir)

		inputs := make([]string, len(sources))
		for i, s := range sources {
			inputs[i] = s.Path
		}
		path = filepath.Join(tmpDir, "merged.pdf")
		if err := api.MergeCreateFile(inputs, path, false, nil); err != nil {
			return nil, fmt.Errorf("failed to merge inputs: %w", err)
		}
	}

	pdfCtx, err := api.ReadContextFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read merged document: %w", err)
	}
	if err := api.ValidateContext(pdfCtx); err != nil {
		return nil, fmt.Errorf("failed to validate merged document: %w", err)
	}
	return pdfCtx, nil
}

// builtSheet is a planned sheet whose placements resolved to form objects.
type builtSheet struct {
	width, height float64
	placements    []placedForm
}

// buildSheets turns every placement into a form XObject. Placements whose
// page cannot be read are logged and dropped; sheets left empty are
// discarded.
func buildSheets(ctx *model.Context, pdfs PDFList, sheets []layout.Sheet, log *slog.Logger) ([]builtSheet, int) {
	forms := make(map[int]pageForm)
	var out []builtSheet
	placed := 0

	for i, sh := range sheets {
		b := builtSheet{width: sh.Width, height: sh.Height}
		for _, pl := range sh.Placements {
			pageNr := pdfs.GlobalPage(pl.Ref.Source, pl.Ref.Page)
			form, ok := forms[pageNr]
			if !ok {
				var err error
				form, err = newPageForm(ctx, pageNr)
				if err != nil {
					file, page := pdfs.FindPDFForPage(pageNr)
					log.Warn("skipping page", "file", filepath.Base(file), "page", page, "error", err)
					continue
				}
				forms[pageNr] = form
			}
			b.placements = append(b.placements, placedForm{form: form, placement: pl})
		}
		if len(b.placements) == 0 {
			log.Warn("discarding empty sheet", "sheet", i+1)
			continue
		}
		placed += len(b.placements)
		out = append(out, b)
	}
	return out, placed
}

// replacePages swaps the document's page tree for one page per sheet.
func replacePages(ctx *model.Context, sheets []builtSheet) error {
	pagesDict := types.Dict{
		"Type":  types.Name("Pages"),
		"Count": types.Integer(len(sheets)),
	}
	pagesRef, err := ctx.IndRefForNewObject(pagesDict)
	if err != nil {
		return fmt.Errorf("failed to create page tree: %w", err)
	}

	kids := make(types.Array, 0, len(sheets))
	for i, sh := range sheets {
		pageRef, err := newSheetPage(ctx, *pagesRef, sh)
		if err != nil {
			return fmt.Errorf("failed to build sheet %d: %w", i+1, err)
		}
		kids = append(kids, *pageRef)
	}
	pagesDict["Kids"] = kids

	root, err := ctx.Catalog()
	if err != nil {
		return fmt.Errorf("failed to read catalog: %w", err)
	}
	root.Update("Pages", *pagesRef)
	// These reference pages of the old tree.
	for _, key := range []string{"Outlines", "PageLabels", "StructTreeRoot", "OpenAction"} {
		root.Delete(key)
	}
	ctx.PageCount = len(sheets)
	return nil
}
