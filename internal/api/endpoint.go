package api

import (
	"net/http"

	"github.com/spf13/cobra"
)

// Endpoint defines both an HTTP route and its corresponding CLI command.
// This provides a single source of truth for API operations.
type Endpoint interface {
	// Route returns the HTTP method, path, and handler for this endpoint.
	// Paths use chi patterns ("/api/runs/{id}").
	Route() (method, path string, handler http.HandlerFunc)

	// Command returns a Cobra command that calls this endpoint via HTTP,
	// or nil for routes with no CLI counterpart.
	// getServerURL is called at runtime to get the server URL (deferred evaluation).
	Command(getServerURL func() string) *cobra.Command
}

// Limited is implemented by endpoints that wrap their handler in extra
// middleware, such as a rate limiter.
type Limited interface {
	Middlewares() []func(http.Handler) http.Handler
}
