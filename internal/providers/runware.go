package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const (
	RunwareName         = "runware"
	RunwareBaseURL      = "https://api.runware.ai/v1"
	RunwareDefaultModel = "runware:101@1"
)

// RunwareConfig holds configuration for the Runware client.
type RunwareConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	Retry      RetryConfig
	HTTPClient *http.Client // Optional (tests)
}

// RunwareClient implements ImageGenerator with Runware's REST task API.
type RunwareClient struct {
	apiKey  string
	baseURL string
	model   string
	retry   RetryConfig
	client  *http.Client
}

// NewRunwareClient creates a new Runware client.
func NewRunwareClient(cfg RunwareConfig) *RunwareClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = RunwareBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = RunwareDefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &RunwareClient{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
		retry:   cfg.Retry,
		client:  httpClient,
	}
}

// Name returns the provider identifier.
func (c *RunwareClient) Name() string {
	return RunwareName
}

type runwareTask struct {
	TaskType       string `json:"taskType"`
	TaskUUID       string `json:"taskUUID"`
	PositivePrompt string `json:"positivePrompt"`
	NegativePrompt string `json:"negativePrompt,omitempty"`
	Model          string `json:"model"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
	NumberResults  int    `json:"numberResults"`
	OutputType     string `json:"outputType"`
	OutputFormat   string `json:"outputFormat"`
}

type runwareResponse struct {
	Data []struct {
		TaskType        string `json:"taskType"`
		TaskUUID        string `json:"taskUUID"`
		ImageBase64Data string `json:"imageBase64Data"`
		ImageURL        string `json:"imageURL"`
	} `json:"data"`
	Errors []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

// Generate runs one imageInference task.
func (c *RunwareClient) Generate(ctx context.Context, req ImageRequest) (string, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}
	task := runwareTask{
		TaskType:       "imageInference",
		TaskUUID:       uuid.New().String(),
		PositivePrompt: req.Prompt,
		NegativePrompt: req.NegativePrompt,
		Model:          model,
		Width:          req.Size.Width,
		Height:         req.Size.Height,
		NumberResults:  1,
		OutputType:     "base64Data",
		OutputFormat:   "PNG",
	}
	body, err := json.Marshal([]runwareTask{task})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	var image string
	err = c.retry.do(ctx, func() error {
		var postErr error
		image, postErr = c.post(ctx, body, task.TaskUUID)
		return postErr
	})
	return image, err
}

func (c *RunwareClient) post(ctx context.Context, body []byte, taskUUID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", newStatusError(RunwareName, resp, respBody)
	}

	var rwResp runwareResponse
	if err := json.Unmarshal(respBody, &rwResp); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(rwResp.Errors) > 0 {
		e := rwResp.Errors[0]
		return "", &StatusError{Provider: RunwareName, StatusCode: http.StatusBadRequest, Body: e.Code + ": " + e.Message}
	}
	for _, d := range rwResp.Data {
		if d.TaskUUID != taskUUID {
			continue
		}
		if d.ImageBase64Data != "" {
			return d.ImageBase64Data, nil
		}
		if d.ImageURL != "" {
			return download(ctx, c.client, RunwareName, d.ImageURL)
		}
	}
	return "", ErrNoImage
}

var _ ImageGenerator = (*RunwareClient)(nil)
