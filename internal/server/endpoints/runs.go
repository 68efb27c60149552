package endpoints

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/spf13/cobra"

	"github.com/jackzampolin/bookdeck/internal/api"
	"github.com/jackzampolin/bookdeck/internal/pipeline"
	"github.com/jackzampolin/bookdeck/internal/svcctx"
	"github.com/jackzampolin/bookdeck/internal/wizard"
)

// DefaultMaxUploadBytes caps uploaded books when no limit is configured.
const DefaultMaxUploadBytes = 64 << 20

// CreateRunRequest is the JSON body of POST /api/runs. Omitted fields take
// the server's configured defaults.
type CreateRunRequest struct {
	Input          string `json:"input"`
	Name           string `json:"name,omitempty"`
	TotalCards     int    `json:"total_cards,omitempty"`
	GenerateImages *bool  `json:"generate_images,omitempty"`
	TOCOnly        bool   `json:"toc_only,omitempty"`
	Layout         string `json:"layout,omitempty"`
	ScaleDown      bool   `json:"scale_down,omitempty"`
	Force          bool   `json:"force,omitempty"`
}

// Settings applies defaults and returns the wizard settings.
func (req CreateRunRequest) Settings(defaults wizard.Settings) wizard.Settings {
	s := wizard.Settings{
		Name:           req.Name,
		Input:          req.Input,
		TotalCards:     req.TotalCards,
		GenerateImages: defaults.GenerateImages,
		TOCOnly:        req.TOCOnly,
		Layout:         req.Layout,
		ScaleDown:      req.ScaleDown,
		Force:          req.Force,
	}
	if req.GenerateImages != nil {
		s.GenerateImages = *req.GenerateImages
	}
	if s.TotalCards == 0 && !s.TOCOnly {
		s.TotalCards = defaults.TotalCards
	}
	if s.Layout == "" {
		s.Layout = defaults.Layout
	}
	return s
}

// RunsResponse lists runs.
type RunsResponse struct {
	Runs []wizard.State `json:"runs" yaml:"runs"`
}

// CreateRunEndpoint handles POST /api/runs. It accepts either a JSON
// CreateRunRequest naming a file on the server, or a multipart form with
// the book in the "book" field.
type CreateRunEndpoint struct {
	Defaults       wizard.Settings
	RunsPerMinute  int
	MaxUploadBytes int64
}

func (e *CreateRunEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/runs", e.handler
}

func (e *CreateRunEndpoint) Group() string { return "runs" }

func (e *CreateRunEndpoint) Middlewares() []func(http.Handler) http.Handler {
	if e.RunsPerMinute <= 0 {
		return nil
	}
	return []func(http.Handler) http.Handler{httprate.LimitByIP(e.RunsPerMinute, time.Minute)}
}

func (e *CreateRunEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	sessions := svcctx.SessionsFrom(r.Context())
	runner := svcctx.RunnerFrom(r.Context())
	if sessions == nil || runner == nil {
		writeError(w, http.StatusServiceUnavailable, "runner not initialized")
		return
	}

	session := sessions.Create()

	var req CreateRunRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		var err error
		req, err = e.fromForm(w, r, session.ID)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	} else if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	st, err := runner.Start(session.ID, req.Settings(e.Defaults))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, st)
}

var unsafeFileRe = regexp.MustCompile(`[^a-zA-Z0-9._ -]+`)

// fromForm saves the uploaded book under the uploads directory and reads
// the remaining fields.
func (e *CreateRunEndpoint) fromForm(w http.ResponseWriter, r *http.Request, id string) (CreateRunRequest, error) {
	limit := e.MaxUploadBytes
	if limit <= 0 {
		limit = DefaultMaxUploadBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		return CreateRunRequest{}, fmt.Errorf("invalid form: %w", err)
	}

	file, header, err := r.FormFile("book")
	if err != nil {
		return CreateRunRequest{}, fmt.Errorf("book file is required: %w", err)
	}
	defer file.Close()

	h := svcctx.HomeFrom(r.Context())
	if h == nil {
		return CreateRunRequest{}, errors.New("no upload directory configured")
	}
	dir := filepath.Join(h.UploadsPath(), id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return CreateRunRequest{}, fmt.Errorf("failed to create upload directory: %w", err)
	}
	name := unsafeFileRe.ReplaceAllString(filepath.Base(header.Filename), "_")
	path := filepath.Join(dir, name)
	out, err := os.Create(path)
	if err != nil {
		return CreateRunRequest{}, fmt.Errorf("failed to save upload: %w", err)
	}
	if _, err := io.Copy(out, file); err != nil {
		out.Close()
		return CreateRunRequest{}, fmt.Errorf("failed to save upload: %w", err)
	}
	if err := out.Close(); err != nil {
		return CreateRunRequest{}, fmt.Errorf("failed to save upload: %w", err)
	}

	req := CreateRunRequest{
		Input:     path,
		Name:      r.FormValue("name"),
		TOCOnly:   formBool(r, "toc_only"),
		Layout:    r.FormValue("layout"),
		ScaleDown: formBool(r, "scale_down"),
	}
	if v := r.FormValue("total_cards"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return CreateRunRequest{}, fmt.Errorf("invalid total_cards %q", v)
		}
		req.TotalCards = n
	}
	if _, ok := r.MultipartForm.Value["generate_images"]; ok {
		images := formBool(r, "generate_images")
		req.GenerateImages = &images
	}
	return req, nil
}

func formBool(r *http.Request, key string) bool {
	switch r.FormValue(key) {
	case "on", "true", "1", "yes":
		return true
	}
	return false
}

func (e *CreateRunEndpoint) Command(getServerURL func() string) *cobra.Command {
	var req CreateRunRequest
	var noImages, wait bool
	cmd := &cobra.Command{
		Use:   "create <input>",
		Short: "Start a run for a book on the server",
		Long: `Start a run for a book file readable by the server.

Omitted options take the server's configured defaults. With --wait the
command polls until the run reaches results.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			input, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			req.Input = input
			if noImages {
				off := false
				req.GenerateImages = &off
			}

			client := api.NewClient(getServerURL())
			var st wizard.State
			if err := client.Post(ctx, "/api/runs", req, &st); err != nil {
				return err
			}
			for wait && st.Phase == wizard.PhaseProcessing {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(time.Second):
				}
				if err := client.Get(ctx, "/api/runs/"+st.ID, &st); err != nil {
					return err
				}
			}
			return api.Output(st)
		},
	}
	cmd.Flags().StringVar(&req.Name, "name", "", "Work name (default: derived from the file name)")
	cmd.Flags().IntVar(&req.TotalCards, "cards", 0, "Total cards to generate")
	cmd.Flags().BoolVar(&noImages, "no-images", false, "Skip image generation")
	cmd.Flags().BoolVar(&req.TOCOnly, "toc-only", false, "Only produce the table of contents")
	cmd.Flags().StringVar(&req.Layout, "layout", "", "Sheet layout: pair or quad")
	cmd.Flags().BoolVar(&req.ScaleDown, "scale-down", false, "Halve full-size pages when combining")
	cmd.Flags().BoolVar(&req.Force, "force", false, "Rerun stages whose outputs exist")
	cmd.Flags().BoolVar(&wait, "wait", false, "Wait for the run to finish")
	return cmd
}

// ListRunsEndpoint handles GET /api/runs.
type ListRunsEndpoint struct{}

func (e *ListRunsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/runs", e.handler
}

func (e *ListRunsEndpoint) Group() string { return "runs" }

func (e *ListRunsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	sessions := svcctx.SessionsFrom(r.Context())
	if sessions == nil {
		writeError(w, http.StatusServiceUnavailable, "runner not initialized")
		return
	}
	writeJSON(w, http.StatusOK, RunsResponse{Runs: sessions.List()})
}

func (e *ListRunsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List runs, most recent first",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp RunsResponse
			if err := client.Get(cmd.Context(), "/api/runs", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// GetRunEndpoint handles GET /api/runs/{id}.
type GetRunEndpoint struct{}

func (e *GetRunEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/runs/{id}", e.handler
}

func (e *GetRunEndpoint) Group() string { return "runs" }

func (e *GetRunEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	sessions := svcctx.SessionsFrom(r.Context())
	if sessions == nil {
		writeError(w, http.StatusServiceUnavailable, "runner not initialized")
		return
	}
	st, err := sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (e *GetRunEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Get a run's wizard state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var st wizard.State
			if err := client.Get(cmd.Context(), "/api/runs/"+args[0], &st); err != nil {
				return err
			}
			return api.Output(st)
		},
	}
}

// RestartRunEndpoint handles POST /api/runs/{id}/restart, returning a
// finished run to the configure step.
type RestartRunEndpoint struct{}

func (e *RestartRunEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/runs/{id}/restart", e.handler
}

func (e *RestartRunEndpoint) Group() string { return "runs" }

func (e *RestartRunEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	sessions := svcctx.SessionsFrom(r.Context())
	if sessions == nil {
		writeError(w, http.StatusServiceUnavailable, "runner not initialized")
		return
	}
	st, err := sessions.Update(chi.URLParam(r, "id"), func(s wizard.State) (wizard.State, error) {
		return wizard.Restart(s, time.Now())
	})
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (e *RestartRunEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "restart <id>",
		Short: "Return a finished run to the configure step",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var st wizard.State
			if err := client.Post(cmd.Context(), "/api/runs/"+args[0]+"/restart", nil, &st); err != nil {
				return err
			}
			return api.Output(st)
		},
	}
}

// RunFileEndpoint handles GET /api/runs/{id}/files/{asset}, serving one of
// the run's result files.
type RunFileEndpoint struct{}

func (e *RunFileEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/runs/{id}/files/{asset}", e.handler
}

func (e *RunFileEndpoint) Command(_ func() string) *cobra.Command {
	return nil
}

func (e *RunFileEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	sessions := svcctx.SessionsFrom(r.Context())
	if sessions == nil {
		writeError(w, http.StatusServiceUnavailable, "runner not initialized")
		return
	}
	st, err := sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeSessionError(w, err)
		return
	}
	asset, err := pipeline.ParseAsset(chi.URLParam(r, "asset"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if st.Outcome == nil {
		writeError(w, http.StatusConflict, "run has no results yet")
		return
	}
	path, ok := st.Outcome.Files[asset.String()]
	if !ok {
		writeError(w, http.StatusNotFound, "run did not produce "+asset.String())
		return
	}
	info, err := os.Stat(path)
	if err != nil {
		writeError(w, http.StatusNotFound, "file is gone: "+filepath.Base(path))
		return
	}
	if info.IsDir() {
		writeError(w, http.StatusBadRequest, asset.String()+" is a directory")
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(path)))
	http.ServeFile(w, r, path)
}

func writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, wizard.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, wizard.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
