package structure

import (
	"encoding/json"

	"github.com/jackzampolin/bookdeck/internal/providers"
)

// SchemaName names the structured output.
const SchemaName = "book_structure"

var tagRef = map[string]any{
	"type":        "string",
	"description": "Identifier value of an element, e.g. 'tag-342'",
}

func emptyField(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

// Schema is the JSON schema for the book structure. Field names match
// book.Structure.
var Schema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"sections": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"section_name": map[string]any{
						"type":        "string",
						"description": "Name of the section",
					},
					"section_introduction": map[string]any{
						"type":        "string",
						"description": "The questions this section explores and how it connects to the previous one",
					},
					"section_color": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"name": map[string]any{"type": "string"},
							"html_color": map[string]any{
								"type":        "string",
								"pattern":     "^#[0-9A-Fa-f]{6}$",
								"description": "HTML hex color like #1A2B3C",
							},
						},
						"required":             []string{"name", "html_color"},
						"additionalProperties": false,
					},
					"key_passages": map[string]any{
						"type": "array",
						"items": map[string]any{
							"type": "object",
							"properties": map[string]any{
								"passage_start_tag":    tagRef,
								"passage_end_tag":      tagRef,
								"passage_post_process": emptyField("Keep empty"),
								"chapter": map[string]any{
									"type":        "string",
									"description": "Chapter the passage appears in",
								},
							},
							"required":             []string{"passage_start_tag", "passage_end_tag", "passage_post_process", "chapter"},
							"additionalProperties": false,
						},
					},
					"visual_landscape_description": map[string]any{
						"type":        "string",
						"description": "A detailed landscape, in English, illustrating the section's mood",
					},
					"chapters": map[string]any{
						"type":     "array",
						"minItems": 1,
						"items": map[string]any{
							"type": "object",
							"properties": map[string]any{
								"chapter_name": map[string]any{
									"type":        "string",
									"description": "Chapter title as in the table of contents",
								},
								"chapter_comment":   map[string]any{"type": "string"},
								"chapter_start_tag": tagRef,
								"chapter_end_tag":   tagRef,
								"key_quotes": map[string]any{
									"type":  "array",
									"items": map[string]any{"type": "string"},
								},
							},
							"required":             []string{"chapter_name", "chapter_comment", "chapter_start_tag", "chapter_end_tag", "key_quotes"},
							"additionalProperties": false,
						},
					},
					"image_base64": emptyField("Keep empty"),
				},
				"required": []string{
					"section_name",
					"section_introduction",
					"section_color",
					"key_passages",
					"visual_landscape_description",
					"chapters",
					"image_base64",
				},
				"additionalProperties": false,
			},
		},
	},
	"required":             []string{"sections"},
	"additionalProperties": false,
}

// ResponseFormat returns the strict json_schema response format.
func ResponseFormat() (*providers.ResponseFormat, error) {
	raw, err := json.Marshal(Schema)
	if err != nil {
		return nil, err
	}
	return providers.JSONSchemaFormat(SchemaName, raw)
}
