package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// chatReply builds an OpenRouter completion body.
func chatReply(content string, tokens int) map[string]any {
	return map[string]any{
		"id":    "test-id",
		"model": "google/gemini-2.5-flash",
		"choices": []map[string]any{
			{
				"message": map[string]any{
					"role":    "assistant",
					"content": content,
				},
				"finish_reason": "stop",
			},
		},
		"usage": map[string]any{
			"prompt_tokens":     tokens,
			"completion_tokens": tokens,
			"total_tokens":      2 * tokens,
			"cost":              0.001,
		},
	}
}

func newTestOpenRouter(url string) *OpenRouterClient {
	return NewOpenRouterClient(OpenRouterConfig{
		APIKey:     "test-key",
		BaseURL:    url,
		RetryDelay: time.Millisecond,
		RPM:        6000,
	})
}

func TestOpenRouterClient_Chat(t *testing.T) {
	t.Run("successful chat", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/chat/completions" {
				t.Errorf("unexpected path: %s", r.URL.Path)
			}
			if r.Method != http.MethodPost {
				t.Errorf("unexpected method: %s", r.Method)
			}
			if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
				t.Errorf("unexpected authorization: %s", auth)
			}
			var req openRouterRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("decode request: %v", err)
			}
			if req.Model != OpenRouterDefaultModel {
				t.Errorf("model = %q, want %q", req.Model, OpenRouterDefaultModel)
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(chatReply("Hello!", 9))
		}))
		defer server.Close()

		result, err := newTestOpenRouter(server.URL).Chat(context.Background(), &ChatRequest{
			Messages: []Message{{Role: "user", Content: "Hello"}},
		})
		if err != nil {
			t.Fatalf("Chat() error = %v", err)
		}
		if !result.Success {
			t.Error("expected Success = true")
		}
		if result.Content != "Hello!" {
			t.Errorf("Content = %q, want %q", result.Content, "Hello!")
		}
		if result.TotalTokens != 18 {
			t.Errorf("TotalTokens = %d, want 18", result.TotalTokens)
		}
		if result.Attempts != 1 {
			t.Errorf("Attempts = %d, want 1", result.Attempts)
		}
		if result.RequestID == "" {
			t.Error("expected a generated RequestID")
		}
	})

	t.Run("retries server errors", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusBadGateway)
				w.Write([]byte("upstream down"))
				return
			}
			var req openRouterRequest
			json.NewDecoder(r.Body).Decode(&req)
			if last := req.Messages[len(req.Messages)-1].Content; !strings.Contains(last, "retry_1_id") {
				t.Errorf("retried request missing nonce: %q", last)
			}
			json.NewEncoder(w).Encode(chatReply("ok", 1))
		}))
		defer server.Close()

		result, err := newTestOpenRouter(server.URL).Chat(context.Background(), &ChatRequest{
			Messages: []Message{{Role: "user", Content: "Hello"}},
		})
		if err != nil {
			t.Fatalf("Chat() error = %v", err)
		}
		if result.Attempts != 2 {
			t.Errorf("Attempts = %d, want 2", result.Attempts)
		}
	})

	t.Run("client errors are not retried", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"bad model"}`))
		}))
		defer server.Close()

		result, err := newTestOpenRouter(server.URL).Chat(context.Background(), &ChatRequest{
			Messages: []Message{{Role: "user", Content: "Hello"}},
		})
		if err == nil {
			t.Fatal("expected error")
		}
		var se *StatusError
		if !errors.As(err, &se) || se.StatusCode != http.StatusBadRequest {
			t.Errorf("error = %v, want StatusError 400", err)
		}
		if calls.Load() != 1 {
			t.Errorf("calls = %d, want 1", calls.Load())
		}
		if result.Success || result.ErrorType != "http_error" {
			t.Errorf("result = %+v, want failed http_error", result)
		}
	})

	t.Run("structured output repair", func(t *testing.T) {
		schema := json.RawMessage(`{"type":"object","properties":{"n":{"type":"integer"}},"required":["n"],"additionalProperties":false}`)
		format, err := JSONSchemaFormat("count", schema)
		if err != nil {
			t.Fatalf("JSONSchemaFormat() error = %v", err)
		}

		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req openRouterRequest
			json.NewDecoder(r.Body).Decode(&req)
			if req.ResponseFormat == nil || req.ResponseFormat.Type != "json_schema" {
				t.Errorf("response_format = %+v", req.ResponseFormat)
			}
			if calls.Add(1) == 1 {
				json.NewEncoder(w).Encode(chatReply(`{"n":"three"}`, 5))
				return
			}
			if len(req.Messages) != 3 {
				t.Errorf("repair round sent %d messages, want 3", len(req.Messages))
			}
			json.NewEncoder(w).Encode(chatReply("```json\n{\"n\":3}\n```", 5))
		}))
		defer server.Close()

		result, err := newTestOpenRouter(server.URL).Chat(context.Background(), &ChatRequest{
			Messages:       []Message{{Role: "user", Content: "count"}},
			ResponseFormat: format,
		})
		if err != nil {
			t.Fatalf("Chat() error = %v", err)
		}
		var got struct{ N int }
		if err := result.Decode(&got); err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
		if got.N != 3 {
			t.Errorf("n = %d, want 3", got.N)
		}
		if result.TotalTokens != 20 {
			t.Errorf("TotalTokens = %d, want 20 across both rounds", result.TotalTokens)
		}
	})

	t.Run("structured output gives up", func(t *testing.T) {
		format, _ := JSONSchemaFormat("any", json.RawMessage(`{"type":"object"}`))
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			json.NewEncoder(w).Encode(chatReply("not json at all", 1))
		}))
		defer server.Close()

		result, err := newTestOpenRouter(server.URL).Chat(context.Background(), &ChatRequest{
			Messages:       []Message{{Role: "user", Content: "x"}},
			ResponseFormat: format,
		})
		if err == nil {
			t.Fatal("expected error")
		}
		if result.ErrorType != "json_parse" {
			t.Errorf("ErrorType = %q, want %q", result.ErrorType, "json_parse")
		}
		if want := int32(maxStructuredRepairAttempts + 1); calls.Load() != want {
			t.Errorf("calls = %d, want %d", calls.Load(), want)
		}
	})
}

func TestCheckResponse(t *testing.T) {
	tests := []struct {
		name      string
		resp      openRouterResponse
		wantErr   bool
		retryable bool
	}{
		{name: "overloaded", resp: openRouterResponse{Error: &openRouterError{Message: "busy", Code: "overloaded"}}, wantErr: true, retryable: true},
		{name: "invalid", resp: openRouterResponse{Error: &openRouterError{Message: "bad", Code: 400.0}}, wantErr: true},
		{name: "empty choices", resp: openRouterResponse{}, wantErr: true, retryable: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkResponse(&tt.resp)
			if (err != nil) != tt.wantErr {
				t.Fatalf("checkResponse() error = %v, wantErr %v", err, tt.wantErr)
			}
			var se *StatusError
			if !errors.As(err, &se) {
				t.Fatalf("error %T is not a StatusError", err)
			}
			if se.Retryable() != tt.retryable {
				t.Errorf("Retryable() = %v, want %v", se.Retryable(), tt.retryable)
			}
		})
	}
}
