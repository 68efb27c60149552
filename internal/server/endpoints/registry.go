package endpoints

import (
	"github.com/jackzampolin/bookdeck/internal/api"
	"github.com/jackzampolin/bookdeck/internal/wizard"
)

// Config holds dependencies needed by some endpoints.
type Config struct {
	// Defaults fill settings a run request leaves out.
	Defaults wizard.Settings

	// RunsPerMinute limits run creation per client IP. Zero disables it.
	RunsPerMinute int

	// MaxUploadBytes caps uploaded book size.
	MaxUploadBytes int64
}

// All returns all endpoint instances.
func All(cfg Config) []api.Endpoint {
	return []api.Endpoint{
		// Health endpoints
		&HealthEndpoint{},
		&StatusEndpoint{},

		// Run endpoints
		&CreateRunEndpoint{
			Defaults:       cfg.Defaults,
			RunsPerMinute:  cfg.RunsPerMinute,
			MaxUploadBytes: cfg.MaxUploadBytes,
		},
		&ListRunsEndpoint{},
		&GetRunEndpoint{},
		&RestartRunEndpoint{},
		&RunFileEndpoint{},

		// Prompt endpoints
		&ListPromptsEndpoint{},
		&GetPromptEndpoint{},
		&SetBookPromptEndpoint{},
		&ClearBookPromptEndpoint{},

		// Static files (catch-all, must be last)
		&StaticEndpoint{},
	}
}
