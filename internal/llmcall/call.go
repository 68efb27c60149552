// Package llmcall provides LLM call recording and querying for traceability.
// Every LLM API call made while building a deck is recorded with its prompt
// key, outcome and usage.
package llmcall

import (
	"time"

	"github.com/google/uuid"

	"github.com/jackzampolin/bookdeck/internal/providers"
)

// Call represents a recorded LLM API call.
type Call struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	LatencyMs int       `json:"latency_ms"`

	// Context references
	Book    string `json:"book,omitempty"`
	Section *int   `json:"section,omitempty"`

	// Prompt traceability
	PromptKey  string `json:"prompt_key"`
	PromptHash string `json:"prompt_hash,omitempty"` // hash of the exact prompt text used

	// Model info
	Provider string `json:"provider"`
	Model    string `json:"model"`

	// Usage
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	CostUSD      float64 `json:"cost_usd,omitempty"`
	Attempts     int     `json:"attempts"`

	// Status
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// RecordOptions provides context for recording an LLM call.
type RecordOptions struct {
	Book    string
	Section *int

	PromptKey  string
	PromptHash string
}

// FromChatResult creates a Call from a ChatResult.
// Returns nil if result is nil.
func FromChatResult(result *providers.ChatResult, opts RecordOptions) *Call {
	if result == nil {
		return nil
	}

	call := &Call{
		ID:           uuid.New().String(),
		Timestamp:    time.Now(),
		LatencyMs:    int(result.ExecutionTime.Milliseconds()),
		Book:         opts.Book,
		Section:      opts.Section,
		PromptKey:    opts.PromptKey,
		PromptHash:   opts.PromptHash,
		Provider:     result.Provider,
		Model:        result.ModelUsed,
		InputTokens:  result.PromptTokens,
		OutputTokens: result.CompletionTokens,
		CostUSD:      result.CostUSD,
		Attempts:     result.Attempts,
		Success:      result.Success,
	}
	if !result.Success {
		call.Error = result.ErrorMessage
	}
	return call
}
