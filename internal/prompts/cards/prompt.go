package cards

import (
	_ "embed"

	"github.com/jackzampolin/bookdeck/internal/prompts"
)

//go:embed concept.tmpl
var conceptPromptTmpl string

//go:embed example.tmpl
var examplePromptTmpl string

// Prompt keys
const (
	ConceptPromptKey = "stages.cards.concept"
	ExamplePromptKey = "stages.cards.example"
)

// Data fills both card prompts.
type Data struct {
	Count   int
	Section string
}

// RegisterPrompts registers the card prompts with the resolver.
func RegisterPrompts(r *prompts.Resolver) {
	r.Register(prompts.EmbeddedPrompt{
		Key:         ConceptPromptKey,
		Text:        conceptPromptTmpl,
		Description: "Concept card extraction - one atomic idea per card covering the whole section",
	})
	r.Register(prompts.EmbeddedPrompt{
		Key:         ExamplePromptKey,
		Text:        examplePromptTmpl,
		Description: "Example card extraction - stories, case studies and metaphors from the section",
	})
}
