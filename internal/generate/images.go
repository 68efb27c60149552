package generate

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/jackzampolin/bookdeck/internal/book"
	"github.com/jackzampolin/bookdeck/internal/providers"
)

// GenerateImages illustrates every card and every section landscape
// concurrently and returns new records carrying the payloads. A failed
// image becomes book.NoImage; only cancellation is returned as an error.
func (g *Generator) GenerateImages(ctx context.Context, deck book.CardSet, s book.Structure) (book.CardSet, book.Structure, error) {
	if g.cfg.Images == nil {
		return nil, book.Structure{}, ErrNoImageGenerator
	}

	cardImages := make([]string, len(deck))
	landscapes := make([]string, len(s.Sections))

	var eg errgroup.Group
	if g.cfg.ImageConcurrency > 0 {
		eg.SetLimit(g.cfg.ImageConcurrency)
	}
	for i, c := range deck {
		eg.Go(func() error {
			cardImages[i] = g.image(ctx, "card", i, c.Illustration, providers.CardImageSize)
			return nil
		})
	}
	for i, sec := range s.Sections {
		eg.Go(func() error {
			landscapes[i] = g.image(ctx, "landscape", i, sec.Landscape, providers.LandscapeImageSize)
			return nil
		})
	}
	eg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, book.Structure{}, err
	}

	outDeck := make(book.CardSet, len(deck))
	failed := 0
	for i, c := range deck {
		outDeck[i] = c.WithImage(cardImages[i])
		if cardImages[i] == book.NoImage {
			failed++
		}
	}
	outStructure := book.Structure{Sections: make([]book.Section, len(s.Sections))}
	for i, sec := range s.Sections {
		outStructure.Sections[i] = sec.WithImage(landscapes[i])
		if landscapes[i] == book.NoImage {
			failed++
		}
	}

	g.logger.Info("images generated",
		"cards", len(deck),
		"landscapes", len(s.Sections),
		"failed", failed,
		"provider", g.cfg.Images.Name())
	return outDeck, outStructure, nil
}

func (g *Generator) image(ctx context.Context, kind string, i int, prompt string, size providers.ImageSize) string {
	if ctx.Err() != nil {
		return book.NoImage
	}
	payload, err := g.cfg.Images.Generate(ctx, providers.ImageRequest{
		Prompt:         prompt,
		NegativePrompt: g.cfg.NegativePrompt,
		Size:           size,
		Model:          g.cfg.ImageModel,
	})
	if err != nil || payload == "" {
		g.logger.Warn("image generation failed", "kind", kind, "index", i, "error", err)
		return book.NoImage
	}
	return payload
}
