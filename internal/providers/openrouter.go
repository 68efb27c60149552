package providers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const (
	OpenRouterName         = "openrouter"
	OpenRouterBaseURL      = "https://openrouter.ai/api/v1"
	OpenRouterDefaultModel = "google/gemini-2.5-flash"
)

// OpenRouterConfig holds configuration for the OpenRouter client.
type OpenRouterConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	Timeout      time.Duration
	RPM          int           // Requests per minute (default: 150)
	MaxRetries   int           // Max attempts per request (default: 3)
	RetryDelay   time.Duration // Base delay between retries (default: 1s)
	HTTPClient   *http.Client  // Optional (tests)
}

// OpenRouterClient implements LLMClient using the OpenRouter API.
type OpenRouterClient struct {
	apiKey       string
	baseURL      string
	defaultModel string
	client       *http.Client
	limiter      *RateLimiter
	rpm          int
	maxRetries   int
	retryDelay   time.Duration
}

// NewOpenRouterClient creates a new OpenRouter client.
func NewOpenRouterClient(cfg OpenRouterConfig) *OpenRouterClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = OpenRouterBaseURL
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = OpenRouterDefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 300 * time.Second
	}
	if cfg.RPM <= 0 {
		cfg.RPM = DefaultRequestsPerMinute
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &OpenRouterClient{
		apiKey:       cfg.APIKey,
		baseURL:      cfg.BaseURL,
		defaultModel: cfg.DefaultModel,
		client:       httpClient,
		limiter:      NewRateLimiter(cfg.RPM),
		rpm:          cfg.RPM,
		maxRetries:   cfg.MaxRetries,
		retryDelay:   cfg.RetryDelay,
	}
}

// Name returns the client identifier.
func (c *OpenRouterClient) Name() string {
	return OpenRouterName
}

// Model returns the default model.
func (c *OpenRouterClient) Model() string {
	return c.defaultModel
}

// Chat sends a chat completion request. When a response format is set the
// reply is parsed and validated against its schema, and the model is asked
// to repair invalid output up to maxStructuredRepairAttempts times.
func (c *OpenRouterClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	start := time.Now()

	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.New().String()
	}
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	orReq := openRouterRequest{
		Model:       model,
		Messages:    make([]openRouterMessage, 0, len(req.Messages)),
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Usage:       &openRouterUsageRequest{Include: true},
	}
	for _, m := range req.Messages {
		orReq.Messages = append(orReq.Messages, openRouterMessage{Role: m.Role, Content: m.Content})
	}
	if rf := req.ResponseFormat; rf != nil {
		orReq.ResponseFormat = &openRouterResponseFormat{Type: rf.Type, JSONSchema: rf.JSONSchema}
	}

	result := &ChatResult{
		RequestID: requestID,
		Provider:  OpenRouterName,
	}
	fail := func(errType string, err error) (*ChatResult, error) {
		result.Success = false
		result.ErrorType = errType
		result.ErrorMessage = err.Error()
		result.ExecutionTime = time.Since(start)
		return result, err
	}

	for round := 0; ; round++ {
		orResp, attempts, err := c.doRequest(ctx, &orReq)
		result.Attempts += attempts
		if err != nil {
			return fail("http_error", err)
		}

		content, err := orResp.content()
		if err != nil {
			return fail("content_marshal_error", fmt.Errorf("failed to marshal content: %w", err))
		}
		result.Content = content
		result.ModelUsed = orResp.Model
		result.PromptTokens += orResp.Usage.PromptTokens
		result.CompletionTokens += orResp.Usage.CompletionTokens
		result.TotalTokens += orResp.Usage.TotalTokens
		result.CostUSD += orResp.Usage.Cost

		if req.ResponseFormat == nil {
			break
		}

		parsed, issue := parseStructuredJSON(content)
		if issue == nil {
			issue = validateStructuredJSON(req.ResponseFormat.JSONSchema, parsed)
		}
		if issue == nil {
			result.ParsedJSON = parsed
			break
		}
		if round >= maxStructuredRepairAttempts {
			return fail("json_parse", fmt.Errorf("structured output unusable after %d repairs: %w", round, issue))
		}
		orReq.Messages = append(orReq.Messages,
			openRouterMessage{Role: "assistant", Content: content},
			openRouterMessage{Role: "user", Content: structuredRepairPrompt(req.ResponseFormat.JSONSchema, issue)},
		)
	}

	result.Success = true
	result.ExecutionTime = time.Since(start)
	return result, nil
}

// Verify interface
var _ LLMClient = (*OpenRouterClient)(nil)
