package structure

import (
	_ "embed"

	"github.com/jackzampolin/bookdeck/internal/prompts"
)

//go:embed system.tmpl
var systemPrompt string

//go:embed user.tmpl
var userPromptTmpl string

// DefaultSections is how many sections the book is split into.
const DefaultSections = 3

// Prompt keys
const (
	SystemPromptKey = "stages.structure.system"
	UserPromptKey   = "stages.structure.user"
)

// SystemData fills the system prompt.
type SystemData struct {
	Sections int
}

// UserData fills the user prompt.
type UserData struct {
	Book string
}

// RegisterPrompts registers the structure prompts with the resolver.
func RegisterPrompts(r *prompts.Resolver) {
	r.Register(prompts.EmbeddedPrompt{
		Key:         SystemPromptKey,
		Text:        systemPrompt,
		Description: "Book structure system prompt - splits the book into sections, chapters and key passages by tag id",
	})
	r.Register(prompts.EmbeddedPrompt{
		Key:         UserPromptKey,
		Text:        userPromptTmpl,
		Description: "Book structure user prompt template carrying the normalized HTML",
	})
}
