package generate

import (
	"context"
	"fmt"

	"github.com/jackzampolin/bookdeck/internal/book"
	"github.com/jackzampolin/bookdeck/internal/prompts/style"
)

// AddStyles asks the model for one illustration style per card and returns
// a new deck whose prompts end with their style. The input deck is not
// modified. Cards beyond the returned style list keep their prompt.
func (g *Generator) AddStyles(ctx context.Context, deck book.CardSet) (book.CardSet, error) {
	if len(deck) == 0 {
		return book.CardSet{}, nil
	}
	data, err := style.NewData(deck)
	if err != nil {
		return nil, err
	}
	user, hash, err := g.render(style.UserPromptKey, data)
	if err != nil {
		return nil, err
	}
	format, err := style.ResponseFormat()
	if err != nil {
		return nil, err
	}

	var res style.Result
	if err := g.chat(ctx, call{
		key:    style.UserPromptKey,
		hash:   hash,
		user:   user,
		format: format,
	}, &res); err != nil {
		return nil, fmt.Errorf("style assignment failed: %w", err)
	}
	if len(res.Styles) != len(deck) {
		g.logger.Warn("style count mismatch", "cards", len(deck), "styles", len(res.Styles))
	}

	out := make(book.CardSet, len(deck))
	for i, c := range deck {
		var s string
		if i < len(res.Styles) {
			s = res.Styles[i]
		}
		out[i] = c.WithStyle(s)
	}
	return out, nil
}
