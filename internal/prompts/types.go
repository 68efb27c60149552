// Package prompts provides prompt management with embedded defaults and
// book-level overrides.
//
// Embedded .tmpl files in code are the source of truth for defaults. A
// book can override any prompt by key with a file in the override store.
//
// Resolution order for a specific book:
//  1. Book override (per-book customization, if exists)
//  2. Embedded default (from .tmpl files in code)
package prompts

import "time"

// BookPromptOverride represents a per-book prompt customization.
type BookPromptOverride struct {
	Book      string    `json:"book" yaml:"book"`
	PromptKey string    `json:"prompt_key" yaml:"prompt_key"`
	Text      string    `json:"text" yaml:"text"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// ResolvedPrompt is the result of resolving a prompt for a specific book.
type ResolvedPrompt struct {
	Key        string   `json:"key" yaml:"key"`
	Text       string   `json:"text" yaml:"text"`
	Variables  []string `json:"variables,omitempty" yaml:"variables,omitempty"`
	IsOverride bool     `json:"is_override" yaml:"is_override"`
	Hash       string   `json:"hash" yaml:"hash"`
}

// EmbeddedPrompt represents a prompt loaded from an embedded .tmpl file.
type EmbeddedPrompt struct {
	Key         string   `json:"key" yaml:"key"` // Hierarchical key: stages.cards.concept
	Text        string   `json:"text" yaml:"text"`
	Description string   `json:"description" yaml:"description"`
	Variables   []string `json:"variables,omitempty" yaml:"variables,omitempty"`
	Hash        string   `json:"hash" yaml:"hash"` // SHA256 of Text
}
