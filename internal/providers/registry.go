package providers

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/jackzampolin/bookdeck/internal/cache"
)

// Registry holds the configured LLM clients and image generators.
// It supports config-driven instantiation, hot-reload, and provides thread-safe access.
type Registry struct {
	mu           sync.RWMutex
	llmClients   map[string]LLMClient
	llmConfigs   map[string]LLMProviderConfig
	imageGens    map[string]ImageGenerator
	imageConfigs map[string]ImageProviderConfig
	cache        *cache.Cache
	logger       *slog.Logger
}

// NewRegistry creates a new empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		llmClients:   make(map[string]LLMClient),
		llmConfigs:   make(map[string]LLMProviderConfig),
		imageGens:    make(map[string]ImageGenerator),
		imageConfigs: make(map[string]ImageProviderConfig),
		logger:       slog.Default(),
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger *slog.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
}

// RegisterLLM registers an LLM client by name.
func (r *Registry) RegisterLLM(name string, client LLMClient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.llmClients[name] = client
	delete(r.llmConfigs, name)
}

// RegisterImage registers an image generator by name.
func (r *Registry) RegisterImage(name string, gen ImageGenerator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.imageGens[name] = gen
	delete(r.imageConfigs, name)
}

// GetLLM returns an LLM client by name.
func (r *Registry) GetLLM(name string) (LLMClient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	client, ok := r.llmClients[name]
	if !ok {
		return nil, fmt.Errorf("LLM client not found: %s", name)
	}
	return client, nil
}

// GetImage returns an image generator by name.
func (r *Registry) GetImage(name string) (ImageGenerator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	gen, ok := r.imageGens[name]
	if !ok {
		return nil, fmt.Errorf("image provider not found: %s", name)
	}
	return gen, nil
}

// ListLLM returns all registered LLM client names, sorted.
func (r *Registry) ListLLM() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.llmClients)
}

// ListImage returns all registered image generator names, sorted.
func (r *Registry) ListImage() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.imageGens)
}

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RegistryConfig defines the providers to instantiate from config.
// This mirrors the config.Config structure for provider setup.
type RegistryConfig struct {
	LLMProviders   map[string]LLMProviderConfig
	ImageProviders map[string]ImageProviderConfig

	// Cache, when set, fronts every created client with the response cache.
	Cache *cache.Cache
}

// LLMProviderConfig matches config.LLMProviderCfg with resolved API key.
type LLMProviderConfig struct {
	Type       string // "openrouter", "mock"
	Model      string
	APIKey     string // Resolved API key
	BaseURL    string
	RateLimit  int // Requests per minute
	MaxRetries int
	Timeout    time.Duration
	Enabled    bool
}

// ImageProviderConfig matches config.ImageProviderCfg with resolved API key.
type ImageProviderConfig struct {
	Type     string // "runware", "openai", "horde", "sdwebui", "mock"
	Model    string
	APIKey   string // Resolved API key
	BaseURL  string
	Steps    int
	Attempts uint
	Timeout  time.Duration
	Enabled  bool
}

// needsKey reports whether the provider type is unusable without an API key.
func (c ImageProviderConfig) needsKey() bool {
	switch c.Type {
	case RunwareName, OpenAIImageName:
		return true
	default:
		return false
	}
}

// NewRegistryFromConfig creates a registry with providers based on configuration.
// Only enabled providers with the credentials they need are registered.
func NewRegistryFromConfig(cfg RegistryConfig) *Registry {
	r := NewRegistry()
	r.Reload(cfg)
	return r
}

// Reload updates the registry based on new configuration.
// Providers that are no longer configured are unregistered and
// providers with changed settings are recreated.
func (r *Registry) Reload(cfg RegistryConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cacheChanged := r.cache != cfg.Cache
	r.cache = cfg.Cache

	wantLLM := make(map[string]bool)
	for name, provCfg := range cfg.LLMProviders {
		if !provCfg.Enabled || (provCfg.Type != MockClientName && provCfg.APIKey == "") {
			continue
		}
		wantLLM[name] = true

		prev, hasExisting := r.llmConfigs[name]
		if hasExisting && prev == provCfg && !cacheChanged {
			continue
		}
		client := createLLMClient(provCfg)
		if client == nil {
			r.logger.Warn("unknown LLM provider type", "name", name, "type", provCfg.Type)
			continue
		}
		r.llmClients[name] = r.wrapLLM(client)
		r.llmConfigs[name] = provCfg
		if hasExisting {
			r.logger.Info("updated LLM client", "name", name, "type", provCfg.Type)
		} else {
			r.logger.Info("registered LLM client", "name", name, "type", provCfg.Type)
		}
	}

	wantImage := make(map[string]bool)
	for name, provCfg := range cfg.ImageProviders {
		if !provCfg.Enabled || (provCfg.needsKey() && provCfg.APIKey == "") {
			continue
		}
		wantImage[name] = true

		prev, hasExisting := r.imageConfigs[name]
		if hasExisting && prev == provCfg && !cacheChanged {
			continue
		}
		gen := createImageGenerator(provCfg)
		if gen == nil {
			r.logger.Warn("unknown image provider type", "name", name, "type", provCfg.Type)
			continue
		}
		r.imageGens[name] = r.wrapImage(gen)
		r.imageConfigs[name] = provCfg
		if hasExisting {
			r.logger.Info("updated image provider", "name", name, "type", provCfg.Type)
		} else {
			r.logger.Info("registered image provider", "name", name, "type", provCfg.Type)
		}
	}

	// Only config-created providers are reconciled; RegisterX entries stay.
	for name := range r.llmConfigs {
		if !wantLLM[name] {
			delete(r.llmClients, name)
			delete(r.llmConfigs, name)
			r.logger.Info("unregistered LLM client", "name", name)
		}
	}
	for name := range r.imageConfigs {
		if !wantImage[name] {
			delete(r.imageGens, name)
			delete(r.imageConfigs, name)
			r.logger.Info("unregistered image provider", "name", name)
		}
	}
}

func (r *Registry) wrapLLM(c LLMClient) LLMClient {
	if r.cache == nil || r.cache.Disabled() {
		return c
	}
	return NewCachedClient(c, r.cache)
}

func (r *Registry) wrapImage(g ImageGenerator) ImageGenerator {
	if r.cache == nil || r.cache.Disabled() {
		return g
	}
	return NewCachedImageGenerator(g, r.cache)
}

// createLLMClient creates an LLM client based on provider type.
func createLLMClient(cfg LLMProviderConfig) LLMClient {
	switch cfg.Type {
	case OpenRouterName:
		return NewOpenRouterClient(OpenRouterConfig{
			APIKey:       cfg.APIKey,
			BaseURL:      cfg.BaseURL,
			DefaultModel: cfg.Model,
			Timeout:      cfg.Timeout,
			RPM:          cfg.RateLimit,
			MaxRetries:   cfg.MaxRetries,
		})
	case MockClientName:
		return NewMockClient()
	default:
		return nil
	}
}

// createImageGenerator creates an image generator based on provider type.
func createImageGenerator(cfg ImageProviderConfig) ImageGenerator {
	retry := RetryConfig{Attempts: cfg.Attempts}
	switch cfg.Type {
	case RunwareName:
		return NewRunwareClient(RunwareConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
			Retry:   retry,
		})
	case OpenAIImageName:
		return NewOpenAIImageClient(OpenAIImageConfig{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Timeout:    cfg.Timeout,
			MaxRetries: int(cfg.Attempts),
		})
	case HordeName:
		return NewHordeClient(HordeConfig{
			APIKey: cfg.APIKey,
			Model:  cfg.Model,
			Steps:  cfg.Steps,
			Retry:  retry,
		})
	case SDWebUIName:
		return NewSDWebUIClient(SDWebUIConfig{
			BaseURL: cfg.BaseURL,
			Steps:   cfg.Steps,
			Timeout: cfg.Timeout,
			Retry:   retry,
		})
	case MockClientName:
		return &MockImageGenerator{}
	default:
		return nil
	}
}
