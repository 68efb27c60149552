package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"
)

type pingEndpoint struct{ group string }

func (e *pingEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/ping/{name}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"name": chi.URLParam(r, "name")})
	}
}

func (e *pingEndpoint) Command(func() string) *cobra.Command {
	return &cobra.Command{Use: "ping"}
}

type groupedPing struct{ pingEndpoint }

func (e *groupedPing) Group() string { return e.group }

type headerLimited struct{ pingEndpoint }

func (e *headerLimited) Route() (string, string, http.HandlerFunc) {
	return "GET", "/limited", func(w http.ResponseWriter, r *http.Request) {}
}

func (e *headerLimited) Middlewares() []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Limited", "yes")
			next.ServeHTTP(w, r)
		})
	}}
}

type silentEndpoint struct{ pingEndpoint }

func (e *silentEndpoint) Command(func() string) *cobra.Command { return nil }

func TestSetOutputFormat(t *testing.T) {
	defer SetOutputFormat("yaml")

	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{"json", OutputFormatJSON, false},
		{"yaml", OutputFormatYAML, false},
		{"", OutputFormatYAML, false},
		{"xml", OutputFormatYAML, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			SetOutputFormat("yaml")
			err := SetOutputFormat(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("SetOutputFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if format != tt.want {
				t.Errorf("got %q, want %q", format, tt.want)
			}
		})
	}
}

func TestOutputTo(t *testing.T) {
	data := struct {
		Name  string `json:"name" yaml:"name"`
		Cards int    `json:"cards" yaml:"cards"`
	}{"Deep Work", 12}

	var buf bytes.Buffer
	if err := OutputTo(&buf, OutputFormatYAML, data); err != nil {
		t.Fatal(err)
	}
	if got, want := buf.String(), "name: Deep Work\ncards: 12\n"; got != want {
		t.Errorf("yaml: got %q, want %q", got, want)
	}

	buf.Reset()
	if err := OutputTo(&buf, OutputFormatJSON, data); err != nil {
		t.Fatal(err)
	}
	if got, want := buf.String(), "{\n  \"name\": \"Deep Work\",\n  \"cards\": 12\n}\n"; got != want {
		t.Errorf("json: got %q, want %q", got, want)
	}

	if err := OutputTo(&buf, "xml", data); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestRegistry_RegisterRoutes(t *testing.T) {
	r := NewRegistry()
	r.Register(&pingEndpoint{})
	r.Register(&headerLimited{})

	router := chi.NewRouter()
	r.RegisterRoutes(router)
	ts := httptest.NewServer(router)
	defer ts.Close()

	client := NewClient(ts.URL)
	var got map[string]string
	if err := client.Get(context.Background(), "/ping/deck", &got); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got["name"] != "deck" {
		t.Errorf("got %q, want %q", got["name"], "deck")
	}

	resp, err := http.Get(ts.URL + "/limited")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.Header.Get("X-Limited") != "yes" {
		t.Error("middleware of Limited endpoint not applied")
	}

	err = client.Get(context.Background(), "/missing", nil)
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Errorf("Get(/missing) error = %v, want a 404", err)
	}
}

func TestRegistry_BuildCommands(t *testing.T) {
	r := NewRegistry()
	r.Register(&pingEndpoint{})
	r.Register(&groupedPing{pingEndpoint{group: "runs"}})
	r.Register(&groupedPing{pingEndpoint{group: "runs"}})
	r.Register(&silentEndpoint{})

	cmd := r.BuildCommands(func() string { return "" })
	var top []string
	for _, c := range cmd.Commands() {
		top = append(top, c.Name())
	}
	if got, want := strings.Join(top, ","), "ping,runs"; got != want {
		t.Fatalf("top-level commands = %q, want %q", got, want)
	}

	runs, _, err := cmd.Find([]string{"runs"})
	if err != nil {
		t.Fatal(err)
	}
	if n := len(runs.Commands()); n != 2 {
		t.Errorf("runs has %d subcommands, want 2", n)
	}
}
