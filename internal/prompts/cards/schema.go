package cards

import (
	"encoding/json"

	"github.com/jackzampolin/bookdeck/internal/providers"
)

// SchemaName names the structured output.
const SchemaName = "create_cards"

// Schema is the JSON schema for card extraction output.
var Schema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"card_definitions": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"title": map[string]any{
						"type":        "string",
						"description": "A few words capturing the core idea",
					},
					"description": map[string]any{
						"type":        "string",
						"description": "Short explanation of the idea",
					},
					"illustration": map[string]any{
						"type":        "string",
						"description": "A scene, without any text, that represents the idea",
					},
					"quotes": map[string]any{
						"type":        "array",
						"items":       map[string]any{"type": "string"},
						"description": "1-5 direct quotes from the book",
					},
				},
				"required":             []string{"title", "description", "illustration", "quotes"},
				"additionalProperties": false,
			},
		},
	},
	"required":             []string{"card_definitions"},
	"additionalProperties": false,
}

// Definition is one card as returned by the model.
type Definition struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Illustration string   `json:"illustration"`
	Quotes       []string `json:"quotes"`
}

// Result represents the parsed result from card extraction.
type Result struct {
	Cards []Definition `json:"card_definitions"`
}

// ResponseFormat returns the strict json_schema response format.
func ResponseFormat() (*providers.ResponseFormat, error) {
	raw, err := json.Marshal(Schema)
	if err != nil {
		return nil, err
	}
	return providers.JSONSchemaFormat(SchemaName, raw)
}
