package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const MockClientName = "mock"

// MockClient is an LLMClient for testing.
type MockClient struct {
	// Configurable behavior
	Latency      time.Duration
	ShouldFail   bool
	FailAfter    int // Fail after N requests (0 = never)
	ResponseText string
	ResponseJSON json.RawMessage

	// Respond, when set, produces the reply text for each request and
	// overrides ResponseText and ResponseJSON.
	Respond func(req *ChatRequest) (string, error)

	requestCount atomic.Int64
	mu           sync.Mutex
	requests     []ChatRequest
}

// NewMockClient creates a new mock client with sensible defaults.
func NewMockClient() *MockClient {
	return &MockClient{
		Latency:      time.Millisecond,
		ResponseText: "mock response",
	}
}

// Name returns the client identifier.
func (c *MockClient) Name() string {
	return MockClientName
}

// Chat sends a mock chat request.
func (c *MockClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	start := time.Now()
	count := c.requestCount.Add(1)

	c.mu.Lock()
	c.requests = append(c.requests, *req)
	c.mu.Unlock()

	result := &ChatResult{
		RequestID: fmt.Sprintf("mock-%d", count),
		Provider:  MockClientName,
		ModelUsed: req.Model,
		Attempts:  1,
	}
	fail := func(errType string, err error) (*ChatResult, error) {
		result.Success = false
		result.ErrorType = errType
		result.ErrorMessage = err.Error()
		result.ExecutionTime = time.Since(start)
		return result, err
	}

	if c.ShouldFail {
		return fail("mock_failure", fmt.Errorf("mock client configured to fail"))
	}
	if c.FailAfter > 0 && int(count) > c.FailAfter {
		return fail("mock_failure", fmt.Errorf("mock client failed after %d requests", c.FailAfter))
	}

	select {
	case <-time.After(c.Latency):
	case <-ctx.Done():
		return fail("context_cancelled", ctx.Err())
	}

	content := c.ResponseText
	if req.ResponseFormat != nil && len(c.ResponseJSON) > 0 {
		content = string(c.ResponseJSON)
	}
	if c.Respond != nil {
		var err error
		if content, err = c.Respond(req); err != nil {
			return fail("mock_failure", err)
		}
	}

	result.Success = true
	result.Content = content
	if req.ResponseFormat != nil {
		parsed, err := parseStructuredJSON(content)
		if err != nil {
			return fail("json_parse", err)
		}
		result.ParsedJSON = parsed
	}

	for _, m := range req.Messages {
		result.PromptTokens += len(m.Content) / 4 // Rough estimate
	}
	result.CompletionTokens = len(content) / 4
	result.TotalTokens = result.PromptTokens + result.CompletionTokens
	result.ExecutionTime = time.Since(start)

	return result, nil
}

// RequestCount returns the number of requests made.
func (c *MockClient) RequestCount() int64 {
	return c.requestCount.Load()
}

// Requests returns copies of every request received, in arrival order.
func (c *MockClient) Requests() []ChatRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ChatRequest, len(c.requests))
	copy(out, c.requests)
	return out
}

// Reset clears recorded requests.
func (c *MockClient) Reset() {
	c.requestCount.Store(0)
	c.mu.Lock()
	c.requests = nil
	c.mu.Unlock()
}

// MockImageGenerator is an ImageGenerator for testing. It returns the
// base64 of the prompt unless Fail reports true for it.
type MockImageGenerator struct {
	Fail func(req ImageRequest) bool

	mu       sync.Mutex
	requests []ImageRequest
}

// Name returns the generator identifier.
func (g *MockImageGenerator) Name() string {
	return MockClientName
}

// Generate records the request and returns a deterministic payload.
func (g *MockImageGenerator) Generate(ctx context.Context, req ImageRequest) (string, error) {
	g.mu.Lock()
	g.requests = append(g.requests, req)
	g.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if g.Fail != nil && g.Fail(req) {
		return "", ErrNoImage
	}
	return MockImagePayload(req), nil
}

// Requests returns every request received.
func (g *MockImageGenerator) Requests() []ImageRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]ImageRequest, len(g.requests))
	copy(out, g.requests)
	return out
}

// MockImagePayload is the payload MockImageGenerator returns for req.
func MockImagePayload(req ImageRequest) string {
	return fmt.Sprintf("img:%dx%d:%s", req.Size.Width, req.Size.Height, req.Prompt)
}

// Verify interface
var (
	_ LLMClient      = (*MockClient)(nil)
	_ ImageGenerator = (*MockImageGenerator)(nil)
)
