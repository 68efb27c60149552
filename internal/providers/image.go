package providers

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
)

// DefaultNegativePrompt keeps generated illustrations free of lettering.
const DefaultNegativePrompt = "Text, label, diagram, blurry, low quality, distorted"

// ImageSize is a pixel size.
type ImageSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

var (
	// CardImageSize is the portrait illustration on a card.
	CardImageSize = ImageSize{Width: 384, Height: 768}

	// LandscapeImageSize is the banner on a section card.
	LandscapeImageSize = ImageSize{Width: 640, Height: 384}
)

// ImageRequest describes one illustration.
type ImageRequest struct {
	Prompt         string    `json:"prompt"`
	NegativePrompt string    `json:"negative_prompt,omitempty"`
	Size           ImageSize `json:"size"`
	Model          string    `json:"model,omitempty"`
}

// ImageGenerator produces an image for a prompt.
type ImageGenerator interface {
	// Generate returns the image as standard base64. ErrNoImage means the
	// service answered without an image.
	Generate(ctx context.Context, req ImageRequest) (string, error)

	// Name returns the provider identifier.
	Name() string
}

// RetryConfig controls retry-go for the image providers.
type RetryConfig struct {
	Attempts uint
	Delay    time.Duration
}

func (r RetryConfig) withDefaults() RetryConfig {
	if r.Attempts == 0 {
		r.Attempts = 3
	}
	if r.Delay == 0 {
		r.Delay = 2 * time.Second
	}
	return r
}

// do runs fn with exponential backoff, stopping on non-retryable errors.
func (r RetryConfig) do(ctx context.Context, fn func() error) error {
	r = r.withDefaults()
	return retry.Do(fn,
		retry.Context(ctx),
		retry.Attempts(r.Attempts),
		retry.Delay(r.Delay),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(isRetryable),
		retry.LastErrorOnly(true),
	)
}

// download fetches url and returns its body base64 encoded.
func download(ctx context.Context, client *http.Client, provider, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create download request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", newStatusError(provider, resp, data)
	}
	if len(data) == 0 {
		return "", ErrNoImage
	}
	return base64.StdEncoding.EncodeToString(data), nil
}
