package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"
)

// Registry holds all registered endpoints.
type Registry struct {
	endpoints []Endpoint
}

// NewRegistry creates a new endpoint registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds an endpoint to the registry.
func (r *Registry) Register(ep Endpoint) {
	r.endpoints = append(r.endpoints, ep)
}

// RegisterRoutes registers all endpoint HTTP routes with the given router.
func (r *Registry) RegisterRoutes(router chi.Router) {
	for _, ep := range r.endpoints {
		method, path, handler := ep.Route()
		rt := router
		if l, ok := ep.(Limited); ok {
			rt = router.With(l.Middlewares()...)
		}
		rt.Method(method, path, handler)
	}
}

// BuildCommands returns a cobra.Command tree for all registered endpoints.
// getServerURL is called at runtime to get the server URL.
func (r *Registry) BuildCommands(getServerURL func() string) *cobra.Command {
	apiCmd := &cobra.Command{
		Use:   "api",
		Short: "Commands that call the running server",
		Long: `API commands call the running bookdeck server via HTTP.

These commands require a running server (bookdeck serve).
Use --server to specify a custom server URL.

Examples:
  bookdeck api status                      # Server and provider status
  bookdeck api runs create book.epub       # Start a run on the server
  bookdeck api runs get <id>               # Show a run's wizard state`,
	}

	groups := make(map[string]*cobra.Command)
	for _, ep := range r.endpoints {
		cmd := ep.Command(getServerURL)
		if cmd == nil {
			continue
		}
		if g, ok := ep.(Grouped); ok {
			parent, ok := groups[g.Group()]
			if !ok {
				parent = &cobra.Command{Use: g.Group(), Short: "Manage " + g.Group()}
				groups[g.Group()] = parent
				apiCmd.AddCommand(parent)
			}
			parent.AddCommand(cmd)
			continue
		}
		apiCmd.AddCommand(cmd)
	}

	return apiCmd
}

// Grouped is implemented by endpoints whose command lives under a
// subcommand such as "runs".
type Grouped interface {
	Group() string
}

// Endpoints returns all registered endpoints.
func (r *Registry) Endpoints() []Endpoint {
	return r.endpoints
}
