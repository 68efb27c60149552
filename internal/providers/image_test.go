package providers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

var fastRetry = RetryConfig{Attempts: 3, Delay: time.Millisecond}

func TestRunwareClient_Generate(t *testing.T) {
	t.Run("base64 reply", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if auth := r.Header.Get("Authorization"); auth != "Bearer rw-key" {
				t.Errorf("unexpected authorization: %s", auth)
			}
			var tasks []runwareTask
			if err := json.NewDecoder(r.Body).Decode(&tasks); err != nil || len(tasks) != 1 {
				t.Fatalf("decode tasks: %v (%d)", err, len(tasks))
			}
			task := tasks[0]
			if task.TaskType != "imageInference" {
				t.Errorf("taskType = %q", task.TaskType)
			}
			if task.Model != RunwareDefaultModel {
				t.Errorf("model = %q, want %q", task.Model, RunwareDefaultModel)
			}
			if task.Width != 384 || task.Height != 768 {
				t.Errorf("size = %dx%d, want 384x768", task.Width, task.Height)
			}
			if task.NegativePrompt != DefaultNegativePrompt {
				t.Errorf("negativePrompt = %q", task.NegativePrompt)
			}
			json.NewEncoder(w).Encode(map[string]any{
				"data": []map[string]any{{
					"taskType":        "imageInference",
					"taskUUID":        task.TaskUUID,
					"imageBase64Data": "QUJD",
				}},
			})
		}))
		defer server.Close()

		client := NewRunwareClient(RunwareConfig{APIKey: "rw-key", BaseURL: server.URL, Retry: fastRetry})
		got, err := client.Generate(context.Background(), ImageRequest{
			Prompt:         "a lighthouse",
			NegativePrompt: DefaultNegativePrompt,
			Size:           CardImageSize,
		})
		if err != nil {
			t.Fatalf("Generate() error = %v", err)
		}
		if got != "QUJD" {
			t.Errorf("got %q, want %q", got, "QUJD")
		}
	})

	t.Run("url reply is downloaded", func(t *testing.T) {
		var server *httptest.Server
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/img.png" {
				w.Write([]byte("PNG"))
				return
			}
			var tasks []runwareTask
			json.NewDecoder(r.Body).Decode(&tasks)
			json.NewEncoder(w).Encode(map[string]any{
				"data": []map[string]any{{"taskUUID": tasks[0].TaskUUID, "imageURL": server.URL + "/img.png"}},
			})
		}))
		defer server.Close()

		client := NewRunwareClient(RunwareConfig{APIKey: "k", BaseURL: server.URL, Retry: fastRetry})
		got, err := client.Generate(context.Background(), ImageRequest{Prompt: "p", Size: LandscapeImageSize})
		if err != nil {
			t.Fatalf("Generate() error = %v", err)
		}
		if want := base64.StdEncoding.EncodeToString([]byte("PNG")); got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	})

	t.Run("api error is not retried", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			json.NewEncoder(w).Encode(map[string]any{
				"errors": []map[string]any{{"code": "invalidPrompt", "message": "too short"}},
			})
		}))
		defer server.Close()

		client := NewRunwareClient(RunwareConfig{APIKey: "k", BaseURL: server.URL, Retry: fastRetry})
		if _, err := client.Generate(context.Background(), ImageRequest{Prompt: "p"}); err == nil {
			t.Fatal("expected error")
		}
		if calls.Load() != 1 {
			t.Errorf("calls = %d, want 1", calls.Load())
		}
	})

	t.Run("server errors are retried", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			var tasks []runwareTask
			json.NewDecoder(r.Body).Decode(&tasks)
			json.NewEncoder(w).Encode(map[string]any{
				"data": []map[string]any{{"taskUUID": tasks[0].TaskUUID, "imageBase64Data": "T0s="}},
			})
		}))
		defer server.Close()

		client := NewRunwareClient(RunwareConfig{APIKey: "k", BaseURL: server.URL, Retry: fastRetry})
		got, err := client.Generate(context.Background(), ImageRequest{Prompt: "p"})
		if err != nil {
			t.Fatalf("Generate() error = %v", err)
		}
		if got != "T0s=" || calls.Load() != 3 {
			t.Errorf("got %q after %d calls, want %q after 3", got, calls.Load(), "T0s=")
		}
	})
}

func TestSDWebUIClient_Generate(t *testing.T) {
	t.Run("txt2img", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/sdapi/v1/txt2img" {
				t.Errorf("unexpected path: %s", r.URL.Path)
			}
			var req sdWebUIRequest
			json.NewDecoder(r.Body).Decode(&req)
			if req.Width != 640 || req.Height != 384 {
				t.Errorf("size = %dx%d, want 640x384", req.Width, req.Height)
			}
			if req.Steps != 20 {
				t.Errorf("steps = %d, want 20", req.Steps)
			}
			if req.OverrideSettings["sd_model_checkpoint"] != "dreamshaper" {
				t.Errorf("override_settings = %v", req.OverrideSettings)
			}
			json.NewEncoder(w).Encode(sdWebUIResponse{Images: []string{"SU1H"}})
		}))
		defer server.Close()

		client := NewSDWebUIClient(SDWebUIConfig{BaseURL: server.URL + "/", Retry: fastRetry})
		got, err := client.Generate(context.Background(), ImageRequest{
			Prompt: "hills",
			Size:   LandscapeImageSize,
			Model:  "dreamshaper",
		})
		if err != nil {
			t.Fatalf("Generate() error = %v", err)
		}
		if got != "SU1H" {
			t.Errorf("got %q, want %q", got, "SU1H")
		}
	})

	t.Run("no images", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			json.NewEncoder(w).Encode(sdWebUIResponse{})
		}))
		defer server.Close()

		client := NewSDWebUIClient(SDWebUIConfig{BaseURL: server.URL, Retry: fastRetry})
		_, err := client.Generate(context.Background(), ImageRequest{Prompt: "x"})
		if !errors.Is(err, ErrNoImage) {
			t.Errorf("error = %v, want ErrNoImage", err)
		}
		if calls.Load() != 1 {
			t.Errorf("calls = %d, want 1", calls.Load())
		}
	})
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"no image", ErrNoImage, false},
		{"rate limited", &StatusError{StatusCode: http.StatusTooManyRequests}, true},
		{"server error", &StatusError{StatusCode: http.StatusInternalServerError}, true},
		{"bad request", &StatusError{StatusCode: http.StatusBadRequest}, false},
		{"unauthorized", &StatusError{StatusCode: http.StatusUnauthorized}, false},
		{"transport", errors.New("connection reset"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRetryable(tt.err); got != tt.want {
				t.Errorf("isRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseRetryAfter(t *testing.T) {
	if got := parseRetryAfter("7"); got != 7*time.Second {
		t.Errorf("got %v, want 7s", got)
	}
	if got := parseRetryAfter(""); got != 0 {
		t.Errorf("got %v, want 0", got)
	}
	if got := parseRetryAfter("soon"); got != 0 {
		t.Errorf("got %v, want 0", got)
	}
}
