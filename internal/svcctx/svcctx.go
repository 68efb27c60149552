// Package svcctx provides service context for dependency injection via context.
// This package is separate from server to avoid import cycles with endpoints.
package svcctx

import (
	"context"
	"log/slog"

	"github.com/jackzampolin/bookdeck/internal/cache"
	"github.com/jackzampolin/bookdeck/internal/home"
	"github.com/jackzampolin/bookdeck/internal/prompts"
	"github.com/jackzampolin/bookdeck/internal/providers"
	"github.com/jackzampolin/bookdeck/internal/wizard"
)

// Services holds all core services that flow through context.
// Components extract what they need via the individual extractors.
type Services struct {
	Registry    *providers.Registry
	Sessions    *wizard.Sessions
	Runner      *wizard.Runner
	Prompts     *prompts.Resolver
	PromptStore *prompts.Store
	Cache       *cache.Cache
	Home        *home.Dir
	Logger      *slog.Logger
}

type servicesKey struct{}

// WithServices returns a new context with services attached.
func WithServices(ctx context.Context, s *Services) context.Context {
	return context.WithValue(ctx, servicesKey{}, s)
}

// ServicesFrom extracts the full Services struct from context.
// Returns nil if not present.
func ServicesFrom(ctx context.Context) *Services {
	s, _ := ctx.Value(servicesKey{}).(*Services)
	return s
}

// RegistryFrom extracts the provider registry from context.
func RegistryFrom(ctx context.Context) *providers.Registry {
	if s := ServicesFrom(ctx); s != nil {
		return s.Registry
	}
	return nil
}

// SessionsFrom extracts the wizard session store from context.
func SessionsFrom(ctx context.Context) *wizard.Sessions {
	if s := ServicesFrom(ctx); s != nil {
		return s.Sessions
	}
	return nil
}

// RunnerFrom extracts the background run driver from context.
func RunnerFrom(ctx context.Context) *wizard.Runner {
	if s := ServicesFrom(ctx); s != nil {
		return s.Runner
	}
	return nil
}

// PromptResolverFrom extracts the prompt resolver from context.
func PromptResolverFrom(ctx context.Context) *prompts.Resolver {
	if s := ServicesFrom(ctx); s != nil {
		return s.Prompts
	}
	return nil
}

// PromptStoreFrom extracts the prompt override store from context.
func PromptStoreFrom(ctx context.Context) *prompts.Store {
	if s := ServicesFrom(ctx); s != nil {
		return s.PromptStore
	}
	return nil
}

// CacheFrom extracts the API response cache from context.
func CacheFrom(ctx context.Context) *cache.Cache {
	if s := ServicesFrom(ctx); s != nil {
		return s.Cache
	}
	return nil
}

// HomeFrom extracts the home directory from context.
func HomeFrom(ctx context.Context) *home.Dir {
	if s := ServicesFrom(ctx); s != nil {
		return s.Home
	}
	return nil
}

// LoggerFrom extracts the logger from context, falling back to the default.
func LoggerFrom(ctx context.Context) *slog.Logger {
	if s := ServicesFrom(ctx); s != nil && s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
