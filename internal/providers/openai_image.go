package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	OpenAIImageName         = "openai"
	openAIImageDefaultModel = openai.ImageModelDallE3
)

// OpenAIImageConfig holds configuration for the OpenAI image client.
type OpenAIImageConfig struct {
	APIKey     string
	BaseURL    string // Optional
	Model      string
	Timeout    time.Duration
	MaxRetries int
	HTTPClient *http.Client // Optional (tests)
}

// OpenAIImageClient implements ImageGenerator using the official OpenAI SDK.
type OpenAIImageClient struct {
	model  string
	client openai.Client
}

// NewOpenAIImageClient creates a new OpenAI image client.
func NewOpenAIImageClient(cfg OpenAIImageConfig) *OpenAIImageClient {
	if cfg.Model == "" {
		cfg.Model = string(openAIImageDefaultModel)
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 180 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIImageClient{
		model:  cfg.Model,
		client: openai.NewClient(opts...),
	}
}

// Name returns the provider identifier.
func (c *OpenAIImageClient) Name() string {
	return OpenAIImageName
}

// Generate requests a single b64_json image. The SDK retries transient
// failures itself. OpenAI has no negative prompt, so it is folded into the
// prompt.
func (c *OpenAIImageClient) Generate(ctx context.Context, req ImageRequest) (string, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}
	prompt := req.Prompt
	if req.NegativePrompt != "" {
		prompt += "\n\nAvoid: " + req.NegativePrompt
	}

	resp, err := c.client.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt:         prompt,
		Model:          openai.ImageModel(model),
		N:              openai.Int(1),
		Size:           openAISize(req.Size),
		ResponseFormat: openai.ImageGenerateParamsResponseFormatB64JSON,
	})
	if err != nil {
		return "", mapOpenAIError(err)
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return "", ErrNoImage
	}
	return resp.Data[0].B64JSON, nil
}

// openAISize picks the supported size with the same orientation.
func openAISize(s ImageSize) openai.ImageGenerateParamsSize {
	switch {
	case s.Height > s.Width:
		return openai.ImageGenerateParamsSize1024x1792
	case s.Width > s.Height:
		return openai.ImageGenerateParamsSize1792x1024
	default:
		return openai.ImageGenerateParamsSize1024x1024
	}
}

func mapOpenAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		se := &StatusError{Provider: OpenAIImageName, StatusCode: apiErr.StatusCode, Body: apiErr.Message}
		if apiErr.Response != nil {
			se.RetryAfter = parseRetryAfter(apiErr.Response.Header.Get("Retry-After"))
		}
		return se
	}
	return fmt.Errorf("openai image request failed: %w", err)
}

var _ ImageGenerator = (*OpenAIImageClient)(nil)
