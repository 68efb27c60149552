package providers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// ErrNoImage is returned when a generator answered without an image.
var ErrNoImage = errors.New("no image generated")

// StatusError is a non-2xx reply from a provider's HTTP API.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s error (status %d): %s", e.Provider, e.StatusCode, e.Body)
}

// Retryable reports whether the request may succeed if sent again.
func (e *StatusError) Retryable() bool {
	return retryableStatus(e.StatusCode)
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusRequestEntityTooLarge, http.StatusUnprocessableEntity, http.StatusTooManyRequests:
		return true
	default:
		return code >= 500
	}
}

// isRetryable is the retry-go predicate shared by the image providers.
// Transport failures are retried; API errors only when their status allows.
func isRetryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	return !errors.Is(err, ErrNoImage)
}

func newStatusError(provider string, resp *http.Response, body []byte) *StatusError {
	msg := string(body)
	if len(msg) > 2000 {
		msg = msg[:2000] + "...[truncated]"
	}
	return &StatusError{
		Provider:   provider,
		StatusCode: resp.StatusCode,
		Body:       msg,
		RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
	}
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
