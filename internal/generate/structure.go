package generate

import (
	"context"
	"fmt"

	"github.com/jackzampolin/bookdeck/internal/book"
	"github.com/jackzampolin/bookdeck/internal/prompts/structure"
	"github.com/jackzampolin/bookdeck/internal/segment"
)

// AnalyzeStructure asks the model to split the normalized document into
// sections and fills every key passage from the document. Passages whose
// anchors are missing keep an empty text.
func (g *Generator) AnalyzeStructure(ctx context.Context, doc string) (book.Structure, error) {
	system, _, err := g.render(structure.SystemPromptKey, structure.SystemData{Sections: g.cfg.Sections})
	if err != nil {
		return book.Structure{}, err
	}
	user, hash, err := g.render(structure.UserPromptKey, structure.UserData{Book: doc})
	if err != nil {
		return book.Structure{}, err
	}
	format, err := structure.ResponseFormat()
	if err != nil {
		return book.Structure{}, err
	}

	g.logger.Info("analyzing structure", "bytes", len(doc), "sections", g.cfg.Sections)

	var s book.Structure
	if err := g.chat(ctx, call{
		key:    structure.UserPromptKey,
		hash:   hash,
		system: system,
		user:   user,
		format: format,
	}, &s); err != nil {
		return book.Structure{}, fmt.Errorf("structure extraction failed: %w", err)
	}
	if err := validateStructure(s); err != nil {
		return book.Structure{}, err
	}

	// Images are generated later; anything the model put here is noise.
	for i := range s.Sections {
		s.Sections[i].Image = ""
	}

	filled := segment.FillPassages(doc, s, g.logger)
	for i, sec := range filled.Sections {
		g.logger.Info("section found",
			"section", i,
			"name", sec.Name,
			"chapters", len(sec.Chapters),
			"passages", len(sec.KeyPassages),
			"color", sec.Color.Hex)
	}
	return filled, nil
}

func validateStructure(s book.Structure) error {
	if len(s.Sections) == 0 {
		return ErrEmptyStructure
	}
	for i, sec := range s.Sections {
		if len(sec.Chapters) == 0 {
			return fmt.Errorf("%w: section %d (%q) has no chapters", ErrEmptyStructure, i, sec.Name)
		}
	}
	return nil
}
