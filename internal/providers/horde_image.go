package providers

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/opd-ai/horde"
)

const HordeName = "horde"

// HordeConfig holds configuration for the AI Horde client.
type HordeConfig struct {
	APIKey string // anonymous key "0000000000" when empty
	Model  string
	Steps  int
	Retry  RetryConfig
}

// HordeClient implements ImageGenerator on the AI Horde volunteer cluster.
// The horde client blocks without a context, so cancellation is checked
// between its stages.
type HordeClient struct {
	client *horde.Client
	model  string
	steps  int
	retry  RetryConfig
}

// NewHordeClient creates a new AI Horde client.
func NewHordeClient(cfg HordeConfig) *HordeClient {
	if cfg.APIKey == "" {
		cfg.APIKey = "0000000000"
	}
	if cfg.Model == "" {
		cfg.Model = horde.DefaultModel
	}
	if cfg.Steps <= 0 {
		cfg.Steps = horde.DefaultSteps
	}
	return &HordeClient{
		client: horde.NewClient(cfg.APIKey),
		model:  cfg.Model,
		steps:  cfg.Steps,
		retry:  cfg.Retry,
	}
}

// Name returns the provider identifier.
func (c *HordeClient) Name() string {
	return HordeName
}

// Generate submits a job, waits for it and downloads the result.
func (c *HordeClient) Generate(ctx context.Context, req ImageRequest) (string, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}
	width, height := req.Size.Width, req.Size.Height
	if width == 0 || height == 0 {
		width, height = horde.DefaultWidth, horde.DefaultHeight
	}
	prompt := req.Prompt
	if req.NegativePrompt != "" {
		// Horde takes the negative prompt after a "###" separator.
		prompt += " ### " + strings.ToLower(req.NegativePrompt)
	}

	var image string
	err := c.retry.do(ctx, func() error {
		resp, err := c.client.RequestGeneration(horde.GenerationRequest{
			Prompt: prompt,
			Params: horde.Params{
				Steps:     c.steps,
				Width:     width,
				Height:    height,
				ModelName: model,
			},
		})
		if err != nil {
			return fmt.Errorf("requesting generation: %w", err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		status, err := c.client.WaitForCompletion(resp.ID)
		if err != nil {
			return fmt.Errorf("waiting for completion: %w", err)
		}
		if len(status.Generation) == 0 || status.Generation[0].Image == "" {
			return ErrNoImage
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		data, err := c.client.DownloadImage(status.Generation[0].Image)
		if err != nil {
			return fmt.Errorf("downloading image: %w", err)
		}
		if len(data) == 0 {
			return ErrNoImage
		}
		image = base64.StdEncoding.EncodeToString(data)
		return nil
	})
	return image, err
}

var _ ImageGenerator = (*HordeClient)(nil)
