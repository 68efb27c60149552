package generate

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/jackzampolin/bookdeck/internal/allocate"
	"github.com/jackzampolin/bookdeck/internal/book"
	"github.com/jackzampolin/bookdeck/internal/prompts/cards"
	"github.com/jackzampolin/bookdeck/internal/segment"
)

// GenerateCards distributes total cards across the structure's sections by
// text length and generates each section's concept and example cards
// concurrently. The deck is in section order, concepts before examples.
// A missing section boundary is fatal.
func (g *Generator) GenerateCards(ctx context.Context, doc string, s book.Structure, total int) (book.CardSet, error) {
	segments, err := segment.SplitSections(doc, s)
	if err != nil {
		return nil, err
	}
	plan := allocate.Plan(segments, total, g.cfg.ConceptRatio)

	results := make([]book.CardSet, len(segments))
	eg, ctx := errgroup.WithContext(ctx)
	for i := range segments {
		eg.Go(func() error {
			deck, err := g.sectionCards(ctx, i, segments[i], plan[i], s.Sections[i].Color.Hex)
			if err != nil {
				return fmt.Errorf("section %d (%s): %w", i, s.Sections[i].Name, err)
			}
			results[i] = deck
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	var deck book.CardSet
	for _, r := range results {
		deck = append(deck, r...)
	}
	g.logger.Info("cards generated", "cards", len(deck), "requested", total, "sections", len(segments))
	return deck, nil
}

// sectionCards runs the concept and example prompts for one section. A
// kind with a zero budget is not requested.
func (g *Generator) sectionCards(ctx context.Context, i int, text string, budget allocate.Budget, color string) (book.CardSet, error) {
	var concepts, examples []cards.Definition

	eg, ctx := errgroup.WithContext(ctx)
	if budget.Concepts > 0 {
		eg.Go(func() (err error) {
			concepts, err = g.requestCards(ctx, i, cards.ConceptPromptKey, budget.Concepts, text)
			return err
		})
	}
	if budget.Examples > 0 {
		eg.Go(func() (err error) {
			examples, err = g.requestCards(ctx, i, cards.ExamplePromptKey, budget.Examples, text)
			return err
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	deck := make(book.CardSet, 0, len(concepts)+len(examples))
	deck = appendCards(deck, concepts, book.KindConcept, color)
	deck = appendCards(deck, examples, book.KindExample, color)

	g.logger.Info("section cards",
		"section", i,
		"bytes", len(text),
		"budget", budget.Total,
		"concepts", len(concepts),
		"examples", len(examples))
	return deck, nil
}

func (g *Generator) requestCards(ctx context.Context, i int, key string, count int, text string) ([]cards.Definition, error) {
	user, hash, err := g.render(key, cards.Data{Count: count, Section: text})
	if err != nil {
		return nil, err
	}
	format, err := cards.ResponseFormat()
	if err != nil {
		return nil, err
	}
	var res cards.Result
	if err := g.chat(ctx, call{
		key:     key,
		hash:    hash,
		section: intPtr(i),
		user:    user,
		format:  format,
	}, &res); err != nil {
		return nil, err
	}
	if len(res.Cards) != count {
		g.logger.Debug("card count differs from request", "section", i, "prompt", key, "requested", count, "got", len(res.Cards))
	}
	return res.Cards, nil
}

func appendCards(deck book.CardSet, defs []cards.Definition, kind book.CardKind, color string) book.CardSet {
	for _, d := range defs {
		c := book.Card{
			Title:        d.Title,
			Description:  d.Description,
			Illustration: d.Illustration,
			Quotes:       d.Quotes,
			Kind:         kind,
		}
		deck = append(deck, c.WithColor(color))
	}
	return deck
}
