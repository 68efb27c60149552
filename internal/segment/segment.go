// Package segment maps tag references produced by the structuring model
// back onto byte ranges of a normalized document.
package segment

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/jackzampolin/bookdeck/internal/book"
	"github.com/jackzampolin/bookdeck/internal/normalize"
)

// ErrAnchorNotFound is returned when a section boundary cannot be located.
var ErrAnchorNotFound = errors.New("anchor not found")

// openBefore returns the index of the last '<' at or before i.
func openBefore(doc string, i int) int {
	if j := strings.LastIndexByte(doc[:i+1], '<'); j >= 0 {
		return j
	}
	return 0
}

// ExtractBetween returns the text from the opening '<' of the element
// carrying startRef up to the end of endRef's attribute text. The end is
// deliberately not element-balanced. ok is false when either anchor is
// missing.
func ExtractBetween(doc, startRef, endRef string) (text string, ok bool) {
	startAttr := normalize.AnchorAttr(startRef)
	endAttr := normalize.AnchorAttr(endRef)

	start := strings.Index(doc, startAttr)
	end := strings.Index(doc, endAttr)
	if start == -1 || end == -1 {
		return "", false
	}

	from := openBefore(doc, start)
	to := end + len(endAttr)
	if to < from {
		return "", false
	}
	return doc[from:to], true
}

// SectionRange returns the byte range of a section: the opening '<' of its
// first chapter's start element up to just past its last chapter's end
// anchor attribute.
func SectionRange(doc string, s book.Section) (start, end int, err error) {
	if len(s.Chapters) == 0 {
		return 0, 0, fmt.Errorf("%w: section %q has no chapters", ErrAnchorNotFound, s.Name)
	}
	first := s.Chapters[0]
	last := s.Chapters[len(s.Chapters)-1]

	startAttr := normalize.AnchorAttr(first.StartTag)
	endAttr := normalize.AnchorAttr(last.EndTag)

	startIdx := strings.Index(doc, startAttr)
	if startIdx == -1 {
		return 0, 0, fmt.Errorf("%w: start %q of section %q", ErrAnchorNotFound, first.StartTag, s.Name)
	}
	endIdx := strings.Index(doc, endAttr)
	if endIdx == -1 {
		return 0, 0, fmt.Errorf("%w: end %q of section %q", ErrAnchorNotFound, last.EndTag, s.Name)
	}

	start = openBefore(doc, startIdx)
	end = endIdx + len(endAttr)
	if end < start {
		return 0, 0, fmt.Errorf("section %q ends before it starts (%s > %s)", s.Name, first.StartTag, last.EndTag)
	}
	return start, end, nil
}

// SplitSections returns one segment per section, in structure order. A
// missing boundary anchor is fatal.
func SplitSections(doc string, structure book.Structure) ([]string, error) {
	out := make([]string, 0, len(structure.Sections))
	for _, s := range structure.Sections {
		start, end, err := SectionRange(doc, s)
		if err != nil {
			return nil, err
		}
		out = append(out, doc[start:end])
	}
	return out, nil
}

// FillPassages returns a copy of structure whose key passages carry their
// extracted text. Passages with unknown anchors keep an empty text and are
// logged.
func FillPassages(doc string, structure book.Structure, log *slog.Logger) book.Structure {
	if log == nil {
		log = slog.Default()
	}
	out := book.Structure{Sections: make([]book.Section, len(structure.Sections))}
	for i, s := range structure.Sections {
		passages := make([]book.KeyPassage, len(s.KeyPassages))
		for j, p := range s.KeyPassages {
			text, ok := ExtractBetween(doc, p.StartTag, p.EndTag)
			if !ok {
				log.Warn("passage anchors not found",
					"section", s.Name, "start", p.StartTag, "end", p.EndTag)
			}
			p.Text = text
			passages[j] = p
		}
		out.Sections[i] = s.WithPassages(passages)
	}
	return out
}

// excerptStep is the growth increment, in runes, of the legacy search.
const excerptStep = 5

// FindExcerpt locates the shortest prefix of excerpt that occurs exactly
// once in doc[from:]. The prefix starts at five runes and grows by five.
// If the whole excerpt is still ambiguous, the first occurrence at the
// longest length tried is returned. The returned index is absolute; ok is
// false when the excerpt never occurs.
func FindExcerpt(doc, excerpt string, from int) (idx int, ok bool) {
	if from < 0 {
		from = 0
	}
	if from > len(doc) || excerpt == "" {
		return -1, false
	}
	hay := doc[from:]
	total := utf8.RuneCountInString(excerpt)

	first := -1
	for n := min(excerptStep, total); ; n = min(n+excerptStep, total) {
		prefix := prefixRunes(excerpt, n)
		count := strings.Count(hay, prefix)
		if count == 0 {
			break
		}
		first = strings.Index(hay, prefix)
		if count == 1 || n == total {
			break
		}
	}
	if first == -1 {
		return -1, false
	}
	return from + first, true
}

func prefixRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
