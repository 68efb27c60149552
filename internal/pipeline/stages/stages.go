// Package stages implements the deck-building pipeline stages.
package stages

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jackzampolin/bookdeck/internal/book"
	"github.com/jackzampolin/bookdeck/internal/cache"
	"github.com/jackzampolin/bookdeck/internal/compose"
	"github.com/jackzampolin/bookdeck/internal/generate"
	"github.com/jackzampolin/bookdeck/internal/ingest"
	"github.com/jackzampolin/bookdeck/internal/layout"
	"github.com/jackzampolin/bookdeck/internal/pipeline"
	"github.com/jackzampolin/bookdeck/internal/render"
)

// Stage names
const (
	Clean   = "clean"
	Analyze = "analyze"
	Cards   = "cards"
	Images  = "images"
	Render  = "render"
	TOC     = "toc"
	Combine = "combine"
)

// ErrNoGenerator is returned by model-driven stages run without a generator.
var ErrNoGenerator = errors.New("no generator configured")

// Options holds what the stages need beyond the Work itself.
type Options struct {
	Cache *cache.Cache

	// NewGenerator builds the generator for one book.
	NewGenerator func(w pipeline.Work) (*generate.Generator, error)
	Renderer     *render.Renderer

	TotalCards     int
	GenerateImages bool
	Layout         layout.Layout
	ScaleDown      bool

	Logger *slog.Logger
}

// Register adds every stage to r.
func Register(r *pipeline.Registry, opts Options) error {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Layout == "" {
		opts.Layout = layout.Pair
	}
	o := &opts
	for _, s := range []pipeline.Stage{
		&stage{
			name: Clean,
			desc: "Convert and normalize the book",
			in:   []pipeline.Asset{pipeline.AssetEPUB},
			out:  []pipeline.Asset{pipeline.AssetCleanHTML},
			run:  o.clean,
		},
		&stage{
			name: Analyze,
			deps: []string{Clean},
			desc: "Extract sections, chapters and key passages",
			in:   []pipeline.Asset{pipeline.AssetCleanHTML},
			out:  []pipeline.Asset{pipeline.AssetStructureJSON},
			run:  o.analyze,
		},
		&stage{
			name: Cards,
			deps: []string{Analyze},
			desc: "Generate and style the card deck",
			in:   []pipeline.Asset{pipeline.AssetCleanHTML, pipeline.AssetStructureJSON},
			out:  []pipeline.Asset{pipeline.AssetCardsJSONL},
			run:  o.cards,
		},
		&stage{
			name:   Images,
			deps:   []string{Cards},
			desc:   "Illustrate cards and section landscapes",
			in:     []pipeline.Asset{pipeline.AssetCardsJSONL, pipeline.AssetStructureJSON},
			out:    []pipeline.Asset{pipeline.AssetCardsJSONL, pipeline.AssetStructureJSON},
			run:    o.images,
			status: o.imagesStatus,
		},
		&stage{
			name: Render,
			deps: []string{Images},
			desc: "Render section and card pages to PDF",
			in:   []pipeline.Asset{pipeline.AssetCardsJSONL, pipeline.AssetStructureJSON},
			out:  []pipeline.Asset{pipeline.AssetCardPDFDir},
			run:  o.render,
		},
		&stage{
			name: TOC,
			deps: []string{Analyze},
			desc: "Render the table of contents and key passages",
			in:   []pipeline.Asset{pipeline.AssetStructureJSON},
			out:  []pipeline.Asset{pipeline.AssetTOCPDF},
			run:  o.toc,
		},
		&stage{
			name: Combine,
			deps: []string{Render, TOC},
			desc: "Tile every page onto printable sheets",
			in:   []pipeline.Asset{pipeline.AssetCardPDFDir, pipeline.AssetTOCPDF},
			out:  []pipeline.Asset{pipeline.AssetCombinedPDF},
			run:  o.combine,
		},
	} {
		if err := r.Register(s); err != nil {
			return err
		}
	}
	return r.Validate()
}

// stage adapts functions to pipeline.Stage.
type stage struct {
	name   string
	deps   []string
	desc   string
	in     []pipeline.Asset
	out    []pipeline.Asset
	run    func(ctx context.Context, w pipeline.Work) error
	status func(w pipeline.Work) (pipeline.StageStatus, error)
}

func (s *stage) Name() string              { return s.name }
func (s *stage) Dependencies() []string    { return s.deps }
func (s *stage) Description() string       { return s.desc }
func (s *stage) Inputs() []pipeline.Asset  { return s.in }
func (s *stage) Outputs() []pipeline.Asset { return s.out }

func (s *stage) Status(ctx context.Context, w pipeline.Work) (pipeline.StageStatus, error) {
	if s.status != nil {
		return s.status(w)
	}
	return pipeline.OutputStatus(s, w), nil
}

func (s *stage) Run(ctx context.Context, w pipeline.Work) error {
	for _, a := range s.in {
		if !w.Exists(a) {
			return fmt.Errorf("missing input %s at %s", a, w.Path(a))
		}
	}
	return s.run(ctx, w)
}

func (o *Options) generator(w pipeline.Work) (*generate.Generator, error) {
	if o.NewGenerator == nil {
		return nil, ErrNoGenerator
	}
	return o.NewGenerator(w)
}

func readDocument(w pipeline.Work) (string, error) {
	data, err := os.ReadFile(w.Path(pipeline.AssetCleanHTML))
	if err != nil {
		return "", fmt.Errorf("failed to read cleaned HTML: %w", err)
	}
	return string(data), nil
}

func (o *Options) clean(ctx context.Context, w pipeline.Work) error {
	_, err := ingest.Ingest(ctx, ingest.Request{
		Input:  w.Input,
		OutDir: w.Dir,
		Name:   w.Name,
		Cache:  o.Cache,
		Logger: o.Logger,
	})
	return err
}

func (o *Options) analyze(ctx context.Context, w pipeline.Work) error {
	gen, err := o.generator(w)
	if err != nil {
		return err
	}
	doc, err := readDocument(w)
	if err != nil {
		return err
	}
	s, err := gen.AnalyzeStructure(ctx, doc)
	if err != nil {
		return err
	}
	return book.SaveStructure(w.Path(pipeline.AssetStructureJSON), s)
}

func (o *Options) cards(ctx context.Context, w pipeline.Work) error {
	gen, err := o.generator(w)
	if err != nil {
		return err
	}
	doc, err := readDocument(w)
	if err != nil {
		return err
	}
	s, err := book.LoadStructure(w.Path(pipeline.AssetStructureJSON))
	if err != nil {
		return err
	}
	deck, err := gen.GenerateCards(ctx, doc, s, o.TotalCards)
	if err != nil {
		return err
	}
	styled, err := gen.AddStyles(ctx, deck)
	if err != nil {
		return err
	}
	return book.SaveDeck(w.Path(pipeline.AssetCardsJSONL), styled)
}

// imagesStatus is complete when image generation is off or every card and
// section carries a payload, the sentinel included.
func (o *Options) imagesStatus(w pipeline.Work) (pipeline.StageStatus, error) {
	st := pipeline.StageStatus{Stage: Images}
	if !o.GenerateImages {
		st.Complete = true
		return st, nil
	}
	deck, err := book.LoadDeck(w.Path(pipeline.AssetCardsJSONL))
	if err != nil {
		st.Missing = []string{pipeline.AssetCardsJSONL.String()}
		return st, nil
	}
	s, err := book.LoadStructure(w.Path(pipeline.AssetStructureJSON))
	if err != nil {
		st.Missing = []string{pipeline.AssetStructureJSON.String()}
		return st, nil
	}
	for _, c := range deck {
		if c.Image == "" {
			st.Missing = append(st.Missing, "card images")
			break
		}
	}
	for _, sec := range s.Sections {
		if sec.Image == "" {
			st.Missing = append(st.Missing, "landscape images")
			break
		}
	}
	st.Complete = len(st.Missing) == 0
	return st, nil
}

func (o *Options) images(ctx context.Context, w pipeline.Work) error {
	if !o.GenerateImages {
		o.Logger.Info("image generation disabled", "book", w.Name)
		return nil
	}
	gen, err := o.generator(w)
	if err != nil {
		return err
	}
	deck, err := book.LoadDeck(w.Path(pipeline.AssetCardsJSONL))
	if err != nil {
		return err
	}
	s, err := book.LoadStructure(w.Path(pipeline.AssetStructureJSON))
	if err != nil {
		return err
	}
	deck, s, err = gen.GenerateImages(ctx, deck, s)
	if err != nil {
		return err
	}
	_, _, err = book.SaveGame(w.Dir, w.Name, deck, s)
	return err
}

// Page directories inside the card PDF directory.
const (
	sectionsDir = "sections"
	cardsDir    = "cards"
)

func (o *Options) render(ctx context.Context, w pipeline.Work) error {
	if o.Renderer == nil {
		return fmt.Errorf("no renderer configured")
	}
	deck, err := book.LoadDeck(w.Path(pipeline.AssetCardsJSONL))
	if err != nil {
		return err
	}
	s, err := book.LoadStructure(w.Path(pipeline.AssetStructureJSON))
	if err != nil {
		return err
	}
	dir := w.Path(pipeline.AssetCardPDFDir)
	if _, err := o.Renderer.Sections(ctx, s, filepath.Join(dir, sectionsDir)); err != nil {
		return err
	}
	_, err = o.Renderer.Cards(ctx, deck, filepath.Join(dir, cardsDir))
	return err
}

// PassagesPath is where the toc stage writes the key passages document.
func PassagesPath(w pipeline.Work) string {
	return filepath.Join(w.Dir, "passages_"+w.Name+".pdf")
}

func (o *Options) toc(ctx context.Context, w pipeline.Work) error {
	if o.Renderer == nil {
		return fmt.Errorf("no renderer configured")
	}
	s, err := book.LoadStructure(w.Path(pipeline.AssetStructureJSON))
	if err != nil {
		return err
	}
	if _, err := o.Renderer.Passages(ctx, w.Name, s, PassagesPath(w)); err != nil {
		return err
	}
	_, err = o.Renderer.TOC(ctx, w.Name, s, w.Path(pipeline.AssetTOCPDF))
	return err
}

// CombineInputs lists the PDFs of w in print order: table of contents, key
// passages, section pages, card pages.
func CombineInputs(w pipeline.Work) ([]string, error) {
	inputs := []string{w.Path(pipeline.AssetTOCPDF)}
	if _, err := os.Stat(PassagesPath(w)); err == nil {
		inputs = append(inputs, PassagesPath(w))
	}
	for _, sub := range []string{sectionsDir, cardsDir} {
		dir := filepath.Join(w.Path(pipeline.AssetCardPDFDir), sub)
		if _, err := os.Stat(dir); err != nil {
			continue
		}
		pdfs, err := compose.ListPDFs(dir)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, pdfs...)
	}
	return inputs, nil
}

func (o *Options) combine(ctx context.Context, w pipeline.Work) error {
	inputs, err := CombineInputs(w)
	if err != nil {
		return err
	}
	res, err := compose.Combine(ctx, compose.Request{
		Inputs:    inputs,
		Output:    w.Path(pipeline.AssetCombinedPDF),
		Layout:    o.Layout,
		ScaleDown: o.ScaleDown,
		Logger:    o.Logger,
	})
	if err != nil {
		return err
	}
	o.Logger.Info("combined", "book", w.Name, "output", res.Output, "sheets", res.Sheets)
	return nil
}
