package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	SDWebUIName           = "sdwebui"
	SDWebUIDefaultBaseURL = "http://127.0.0.1:7860"
)

// SDWebUIConfig holds configuration for a local Stable Diffusion WebUI.
type SDWebUIConfig struct {
	BaseURL    string
	Steps      int
	CFGScale   float64
	Timeout    time.Duration
	Retry      RetryConfig
	HTTPClient *http.Client // Optional (tests)
}

// SDWebUIClient implements ImageGenerator against /sdapi/v1/txt2img.
type SDWebUIClient struct {
	baseURL  string
	steps    int
	cfgScale float64
	retry    RetryConfig
	client   *http.Client
}

// NewSDWebUIClient creates a new SD-WebUI client.
func NewSDWebUIClient(cfg SDWebUIConfig) *SDWebUIClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = SDWebUIDefaultBaseURL
	}
	if cfg.Steps <= 0 {
		cfg.Steps = 20
	}
	if cfg.CFGScale == 0 {
		cfg.CFGScale = 3.0
	}
	if cfg.Timeout == 0 {
		// Local generation can take a while.
		cfg.Timeout = 5 * time.Minute
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &SDWebUIClient{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		steps:    cfg.Steps,
		cfgScale: cfg.CFGScale,
		retry:    cfg.Retry,
		client:   httpClient,
	}
}

// Name returns the provider identifier.
func (c *SDWebUIClient) Name() string {
	return SDWebUIName
}

type sdWebUIRequest struct {
	Prompt           string         `json:"prompt"`
	NegativePrompt   string         `json:"negative_prompt,omitempty"`
	Steps            int            `json:"steps"`
	Width            int            `json:"width"`
	Height           int            `json:"height"`
	CFGScale         float64        `json:"cfg_scale,omitempty"`
	BatchSize        int            `json:"batch_size,omitempty"`
	OverrideSettings map[string]any `json:"override_settings,omitempty"`
}

type sdWebUIResponse struct {
	Images []string `json:"images"`
	Info   string   `json:"info"`
	Error  string   `json:"error,omitempty"`
}

// Generate renders one image. The WebUI already answers in base64.
func (c *SDWebUIClient) Generate(ctx context.Context, req ImageRequest) (string, error) {
	payload := sdWebUIRequest{
		Prompt:         req.Prompt,
		NegativePrompt: req.NegativePrompt,
		Steps:          c.steps,
		Width:          req.Size.Width,
		Height:         req.Size.Height,
		CFGScale:       c.cfgScale,
		BatchSize:      1,
	}
	if req.Model != "" {
		payload.OverrideSettings = map[string]any{"sd_model_checkpoint": req.Model}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	var image string
	err = c.retry.do(ctx, func() error {
		var postErr error
		image, postErr = c.post(ctx, body)
		return postErr
	})
	return image, err
}

func (c *SDWebUIClient) post(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/sdapi/v1/txt2img", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", newStatusError(SDWebUIName, resp, respBody)
	}

	var sdResp sdWebUIResponse
	if err := json.Unmarshal(respBody, &sdResp); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if sdResp.Error != "" {
		return "", &StatusError{Provider: SDWebUIName, StatusCode: http.StatusBadRequest, Body: sdResp.Error}
	}
	if len(sdResp.Images) == 0 || sdResp.Images[0] == "" {
		return "", ErrNoImage
	}
	return sdResp.Images[0], nil
}

var _ ImageGenerator = (*SDWebUIClient)(nil)
