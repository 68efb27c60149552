package endpoints

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"

	"github.com/jackzampolin/bookdeck/internal/api"
	"github.com/jackzampolin/bookdeck/internal/svcctx"
)

// PromptResponse represents a single prompt, resolved for a book when one
// was named.
type PromptResponse struct {
	Key         string   `json:"key" yaml:"key"`
	Text        string   `json:"text" yaml:"text"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Variables   []string `json:"variables,omitempty" yaml:"variables,omitempty"`
	Hash        string   `json:"hash,omitempty" yaml:"hash,omitempty"`
	Book        string   `json:"book,omitempty" yaml:"book,omitempty"`
	IsOverride  bool     `json:"is_override" yaml:"is_override"`
}

// PromptsListResponse contains all prompts.
type PromptsListResponse struct {
	Prompts []PromptResponse `json:"prompts" yaml:"prompts"`
}

// SetPromptRequest is the request body for setting a book prompt override.
type SetPromptRequest struct {
	Text string `json:"text"`
}

// ListPromptsEndpoint handles GET /api/prompts[?book=name].
type ListPromptsEndpoint struct{}

func (e *ListPromptsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/prompts", e.handler
}

func (e *ListPromptsEndpoint) Group() string { return "prompts" }

func (e *ListPromptsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	resolver := svcctx.PromptResolverFrom(r.Context())
	if resolver == nil {
		writeError(w, http.StatusInternalServerError, "prompt resolver not available")
		return
	}
	book := r.URL.Query().Get("book")

	var resp PromptsListResponse
	for _, p := range resolver.AllEmbedded() {
		item := PromptResponse{
			Key:         p.Key,
			Text:        p.Text,
			Description: p.Description,
			Variables:   p.Variables,
			Hash:        p.Hash,
		}
		if book != "" {
			resolved, err := resolver.Resolve(p.Key, book)
			if err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
			item.Book = book
			item.Text = resolved.Text
			item.Variables = resolved.Variables
			item.Hash = resolved.Hash
			item.IsOverride = resolved.IsOverride
		}
		resp.Prompts = append(resp.Prompts, item)
	}

	writeJSON(w, http.StatusOK, resp)
}

func (e *ListPromptsEndpoint) Command(getServerURL func() string) *cobra.Command {
	var book string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all prompts",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			path := "/api/prompts"
			if book != "" {
				path += "?book=" + url.QueryEscape(book)
			}
			var resp PromptsListResponse
			if err := client.Get(cmd.Context(), path, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&book, "book", "", "Resolve overrides for this book")
	return cmd
}

// GetPromptEndpoint handles GET /api/prompts/{key}[?book=name].
type GetPromptEndpoint struct{}

func (e *GetPromptEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/prompts/{key}", e.handler
}

func (e *GetPromptEndpoint) Group() string { return "prompts" }

func (e *GetPromptEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	resolver := svcctx.PromptResolverFrom(r.Context())
	if resolver == nil {
		writeError(w, http.StatusInternalServerError, "prompt resolver not available")
		return
	}

	embedded, ok := resolver.GetEmbedded(key)
	if !ok {
		writeError(w, http.StatusNotFound, "prompt not found: "+key)
		return
	}
	resp := PromptResponse{
		Key:         embedded.Key,
		Text:        embedded.Text,
		Description: embedded.Description,
		Variables:   embedded.Variables,
		Hash:        embedded.Hash,
	}
	if book := r.URL.Query().Get("book"); book != "" {
		resolved, err := resolver.Resolve(key, book)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp.Book = book
		resp.Text = resolved.Text
		resp.Variables = resolved.Variables
		resp.Hash = resolved.Hash
		resp.IsOverride = resolved.IsOverride
	}
	writeJSON(w, http.StatusOK, resp)
}

func (e *GetPromptEndpoint) Command(getServerURL func() string) *cobra.Command {
	var book string
	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Get a prompt by key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			path := "/api/prompts/" + url.PathEscape(args[0])
			if book != "" {
				path += "?book=" + url.QueryEscape(book)
			}
			var resp PromptResponse
			if err := client.Get(cmd.Context(), path, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&book, "book", "", "Resolve the override for this book")
	return cmd
}

// SetBookPromptEndpoint handles PUT /api/books/{book}/prompts/{key}.
type SetBookPromptEndpoint struct{}

func (e *SetBookPromptEndpoint) Route() (string, string, http.HandlerFunc) {
	return "PUT", "/api/books/{book}/prompts/{key}", e.handler
}

func (e *SetBookPromptEndpoint) Group() string { return "prompts" }

func (e *SetBookPromptEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	book, key := chi.URLParam(r, "book"), chi.URLParam(r, "key")
	resolver := svcctx.PromptResolverFrom(r.Context())
	store := svcctx.PromptStoreFrom(r.Context())
	if resolver == nil || store == nil {
		writeError(w, http.StatusInternalServerError, "prompt store not available")
		return
	}
	if _, ok := resolver.GetEmbedded(key); !ok {
		writeError(w, http.StatusNotFound, "prompt not found: "+key)
		return
	}

	var req SetPromptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	if err := store.SetBookOverride(book, key, req.Text); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resolved, err := resolver.Resolve(key, book)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, PromptResponse{
		Key:        key,
		Text:       resolved.Text,
		Variables:  resolved.Variables,
		Hash:       resolved.Hash,
		Book:       book,
		IsOverride: resolved.IsOverride,
	})
}

func (e *SetBookPromptEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "set <book> <key> <file>",
		Short: "Override a prompt for one book from a template file",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := os.ReadFile(args[2])
			if err != nil {
				return fmt.Errorf("failed to read template: %w", err)
			}
			client := api.NewClient(getServerURL())
			path := "/api/books/" + url.PathEscape(args[0]) + "/prompts/" + url.PathEscape(args[1])
			var resp PromptResponse
			if err := client.Put(cmd.Context(), path, SetPromptRequest{Text: string(text)}, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// ClearBookPromptEndpoint handles DELETE /api/books/{book}/prompts/{key}.
type ClearBookPromptEndpoint struct{}

func (e *ClearBookPromptEndpoint) Route() (string, string, http.HandlerFunc) {
	return "DELETE", "/api/books/{book}/prompts/{key}", e.handler
}

func (e *ClearBookPromptEndpoint) Group() string { return "prompts" }

func (e *ClearBookPromptEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	store := svcctx.PromptStoreFrom(r.Context())
	if store == nil {
		writeError(w, http.StatusInternalServerError, "prompt store not available")
		return
	}
	if err := store.ClearBookOverride(chi.URLParam(r, "book"), chi.URLParam(r, "key")); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (e *ClearBookPromptEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "clear <book> <key>",
		Short: "Remove a book's prompt override",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			path := "/api/books/" + url.PathEscape(args[0]) + "/prompts/" + url.PathEscape(args[1])
			if err := client.Delete(cmd.Context(), path); err != nil {
				return err
			}
			fmt.Printf("Cleared %s for %s\n", args[1], args[0])
			return nil
		},
	}
}
