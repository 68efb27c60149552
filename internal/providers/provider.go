package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// LLMClient sends chat completion requests.
type LLMClient interface {
	// Chat sends a chat completion request.
	Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error)

	// Name returns the client identifier (e.g., "openrouter").
	Name() string
}

// Message is one turn of a conversation.
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// ResponseFormat requests structured output.
type ResponseFormat struct {
	Type       string          `json:"type"` // "json_schema"
	JSONSchema json.RawMessage `json:"json_schema,omitempty"`
}

// JSONSchemaFormat wraps a raw schema document in a strict json_schema
// response format.
func JSONSchemaFormat(name string, schema json.RawMessage) (*ResponseFormat, error) {
	wrapped, err := json.Marshal(map[string]any{
		"name":   name,
		"strict": true,
		"schema": schema,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to wrap schema %s: %w", name, err)
	}
	return &ResponseFormat{Type: "json_schema", JSONSchema: wrapped}, nil
}

// ChatRequest is a request to an LLM.
type ChatRequest struct {
	Messages []Message `json:"messages"`

	// Model selection (uses client default if empty)
	Model string `json:"model,omitempty"`

	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`

	// Structured output; the reply is parsed and validated locally.
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`

	RequestID string `json:"-"`
}

// ChatResult is the response from an LLM call.
type ChatResult struct {
	Content    string          `json:"content"`
	ParsedJSON json.RawMessage `json:"parsed_json,omitempty"` // set when ResponseFormat was requested

	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`

	CostUSD       float64       `json:"cost_usd"`
	ExecutionTime time.Duration `json:"execution_time"`

	Provider  string `json:"provider"`
	ModelUsed string `json:"model_used"`
	RequestID string `json:"request_id"`
	Attempts  int    `json:"attempts"`

	Success      bool   `json:"success"`
	ErrorType    string `json:"error_type,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// Decode unmarshals the structured reply into v.
func (r *ChatResult) Decode(v any) error {
	data := r.ParsedJSON
	if len(data) == 0 {
		parsed, err := parseStructuredJSON(r.Content)
		if err != nil {
			return err
		}
		data = parsed
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode structured reply: %w", err)
	}
	return nil
}
