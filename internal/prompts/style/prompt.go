package style

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackzampolin/bookdeck/internal/book"
	"github.com/jackzampolin/bookdeck/internal/prompts"
	"github.com/jackzampolin/bookdeck/internal/providers"
)

//go:embed user.tmpl
var userPromptTmpl string

// UserPromptKey is the style prompt key.
const UserPromptKey = "stages.style.user"

// CardSeparator joins card blocks in the prompt.
const CardSeparator = "\n\n----\n\n"

// Data fills the style prompt.
type Data struct {
	Count int
	Cards string
}

// NewData renders the deck as "CARD #i" blocks.
func NewData(deck book.CardSet) (Data, error) {
	blocks := make([]string, len(deck))
	for i, c := range deck {
		body, err := json.Marshal(struct {
			Title        string   `json:"title"`
			Description  string   `json:"description"`
			Illustration string   `json:"illustration"`
			Quotes       []string `json:"quotes"`
			Kind         string   `json:"card_type"`
		}{c.Title, c.Description, c.Illustration, c.Quotes, string(c.Kind)})
		if err != nil {
			return Data{}, fmt.Errorf("failed to encode card %d: %w", i, err)
		}
		blocks[i] = fmt.Sprintf("CARD #%d\n%s", i, body)
	}
	return Data{Count: len(deck), Cards: strings.Join(blocks, CardSeparator)}, nil
}

// RegisterPrompts registers the style prompt with the resolver.
func RegisterPrompts(r *prompts.Resolver) {
	r.Register(prompts.EmbeddedPrompt{
		Key:         UserPromptKey,
		Text:        userPromptTmpl,
		Description: "Illustration style assignment - one style per card for a cohesive deck",
	})
}

// SchemaName names the structured output.
const SchemaName = "style_list"

// Schema is the JSON schema for the style list.
var Schema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"style_list": map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "string"},
		},
	},
	"required":             []string{"style_list"},
	"additionalProperties": false,
}

// Result represents the parsed style list.
type Result struct {
	Styles []string `json:"style_list"`
}

// ResponseFormat returns the strict json_schema response format.
func ResponseFormat() (*providers.ResponseFormat, error) {
	raw, err := json.Marshal(Schema)
	if err != nil {
		return nil, err
	}
	return providers.JSONSchemaFormat(SchemaName, raw)
}
