// Package book defines the book structure and card deck records exchanged
// between pipeline stages, and their on-disk formats.
package book

// NoImage is the payload an image generator returns when it could not
// produce an image. Renderers must check for it before decoding.
const NoImage = "No image generated"

// CardKind distinguishes the two card categories generated per section.
type CardKind string

const (
	KindConcept CardKind = "concept"
	KindExample CardKind = "example"
)

// Color is a named section color.
type Color struct {
	Name string `json:"name"`
	Hex  string `json:"html_color"`
}

// KeyPassage locates a representative passage by tag references. Text is
// filled by the segmenter and stays empty when an anchor is missing.
type KeyPassage struct {
	StartTag string `json:"passage_start_tag"`
	EndTag   string `json:"passage_end_tag"`
	Text     string `json:"passage_post_process"`
	Chapter  string `json:"chapter"`
}

// Chapter is a chapter of a section.
type Chapter struct {
	Name      string   `json:"chapter_name"`
	Comment   string   `json:"chapter_comment"`
	StartTag  string   `json:"chapter_start_tag"`
	EndTag    string   `json:"chapter_end_tag"`
	KeyQuotes []string `json:"key_quotes"`
}

// Section is a thematic range of the book spanning one or more chapters.
type Section struct {
	Name         string       `json:"section_name"`
	Introduction string       `json:"section_introduction"`
	Color        Color        `json:"section_color"`
	KeyPassages  []KeyPassage `json:"key_passages"`
	Landscape    string       `json:"visual_landscape_description"`
	Chapters     []Chapter    `json:"chapters"`
	Image        string       `json:"image_base64"`
}

// Structure is the full analysis of a book.
type Structure struct {
	Sections []Section `json:"sections"`
}

// Card is one learning card.
type Card struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Illustration string   `json:"illustration"`
	Quotes       []string `json:"quotes"`
	Kind         CardKind `json:"card_type"`
	Color        string   `json:"card_color"`
	Image        string   `json:"image_base64,omitempty"`
}

// HasImage reports whether the card carries a decodable image payload.
func (c Card) HasImage() bool {
	return c.Image != "" && c.Image != NoImage
}

// HasImage reports whether the section carries a decodable image payload.
func (s Section) HasImage() bool {
	return s.Image != "" && s.Image != NoImage
}

// WithStyle returns a copy of c whose illustration prompt ends with style.
func (c Card) WithStyle(style string) Card {
	c.Quotes = cloneStrings(c.Quotes)
	if style != "" {
		c.Illustration += " " + style
	}
	return c
}

// WithImage returns a copy of c carrying the given image payload.
func (c Card) WithImage(payload string) Card {
	c.Quotes = cloneStrings(c.Quotes)
	c.Image = payload
	return c
}

// WithColor returns a copy of c colored with hex.
func (c Card) WithColor(hex string) Card {
	c.Quotes = cloneStrings(c.Quotes)
	c.Color = hex
	return c
}

// WithImage returns a copy of s carrying the given landscape image payload.
func (s Section) WithImage(payload string) Section {
	s = s.clone()
	s.Image = payload
	return s
}

// WithPassages returns a copy of s with its key passages replaced.
func (s Section) WithPassages(passages []KeyPassage) Section {
	s = s.clone()
	s.KeyPassages = passages
	return s
}

func (s Section) clone() Section {
	s.KeyPassages = append([]KeyPassage(nil), s.KeyPassages...)
	chapters := make([]Chapter, len(s.Chapters))
	for i, ch := range s.Chapters {
		ch.KeyQuotes = cloneStrings(ch.KeyQuotes)
		chapters[i] = ch
	}
	s.Chapters = chapters
	return s
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}

// CardSet is an ordered deck. Order is presentation order.
type CardSet []Card

// Prompts returns the illustration prompts in deck order.
func (cs CardSet) Prompts() []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Illustration
	}
	return out
}

// Landscapes returns the landscape prompts in section order.
func (s Structure) Landscapes() []string {
	out := make([]string, len(s.Sections))
	for i, sec := range s.Sections {
		out[i] = sec.Landscape
	}
	return out
}
