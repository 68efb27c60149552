package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// doRequest posts a chat completion with retries. It returns the number of
// attempts made alongside the response.
func (c *OpenRouterClient) doRequest(ctx context.Context, orReq *openRouterRequest) (*openRouterResponse, int, error) {
	var lastErr error
	attempt := 0
	for ; attempt < c.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, attempt, err
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, attempt, err
		}

		// A retried request is made unique so an upstream cache cannot
		// replay the failed reply.
		if attempt > 0 {
			injectNonce(orReq, attempt)
		}

		orResp, err := c.post(ctx, orReq)
		if err == nil {
			return orResp, attempt + 1, nil
		}
		lastErr = err

		var se *StatusError
		if errors.As(err, &se) {
			if !se.Retryable() {
				return nil, attempt + 1, err
			}
			if se.StatusCode == http.StatusTooManyRequests && se.RetryAfter > 0 {
				c.limiter.Backoff(se.RetryAfter)
			}
		}
		c.sleepWithJitter(ctx, attempt)
	}

	return nil, attempt, fmt.Errorf("max retries (%d) exceeded: %w", c.maxRetries, lastErr)
}

func (c *OpenRouterClient) post(ctx context.Context, orReq *openRouterRequest) (*openRouterResponse, error) {
	body, err := json.Marshal(orReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("HTTP-Referer", "https://github.com/jackzampolin/bookdeck")
	req.Header.Set("X-Title", "Bookdeck")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, newStatusError(OpenRouterName, resp, respBody)
	}

	var orResp openRouterResponse
	if err := json.Unmarshal(respBody, &orResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if err := checkResponse(&orResp); err != nil {
		return nil, err
	}
	return &orResp, nil
}

// checkResponse turns API-level errors in a 200 reply into errors. Overload
// and empty replies are reported as retryable.
func checkResponse(resp *openRouterResponse) error {
	if resp.Error != nil {
		code := fmt.Sprintf("%v", resp.Error.Code)
		switch code {
		case "overloaded", "rate_limit_exceeded", "500", "502", "503":
			return &StatusError{Provider: OpenRouterName, StatusCode: http.StatusServiceUnavailable, Body: resp.Error.Message}
		}
		return &StatusError{Provider: OpenRouterName, StatusCode: http.StatusBadRequest, Body: resp.Error.Message}
	}
	if len(resp.Choices) == 0 {
		return &StatusError{
			Provider:   OpenRouterName,
			StatusCode: http.StatusBadGateway,
			Body:       fmt.Sprintf("empty choices in response (model=%s, id=%s)", resp.Model, resp.ID),
		}
	}
	return nil
}

// injectNonce appends a unique comment to the last user message.
func injectNonce(req *openRouterRequest, attempt int) {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			req.Messages[i].Content += fmt.Sprintf("\n<!-- retry_%d_id: %s -->", attempt, uuid.New().String()[:16])
			return
		}
	}
}

// sleepWithJitter backs off exponentially from retryDelay, capped at 10s,
// with -20%..+30% jitter.
func (c *OpenRouterClient) sleepWithJitter(ctx context.Context, attempt int) {
	base := c.retryDelay * time.Duration(1<<attempt)
	if base > 10*time.Second {
		base = 10 * time.Second
	}
	d := time.Duration(float64(base) * (0.8 + 0.5*rand.Float64()))

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
