package config

import (
	"fmt"
	"time"

	"github.com/jackzampolin/bookdeck/internal/layout"
)

// Config holds bookdeck configuration.
// Stored at: ~/.bookdeck/config.yaml
type Config struct {
	LLMProviders   map[string]LLMProviderCfg   `mapstructure:"llm_providers" yaml:"llm_providers"`
	ImageProviders map[string]ImageProviderCfg `mapstructure:"image_providers" yaml:"image_providers"`
	Defaults       DefaultsCfg                 `mapstructure:"defaults" yaml:"defaults"`
	Generation     GenerationCfg               `mapstructure:"generation" yaml:"generation"`
	Render         RenderCfg                   `mapstructure:"render" yaml:"render"`
	Compose        ComposeCfg                  `mapstructure:"compose" yaml:"compose"`
	Cache          CacheCfg                    `mapstructure:"cache" yaml:"cache"`
	LogLevel       string                      `mapstructure:"log_level" yaml:"log_level"`
}

// LLMProviderCfg configures an LLM provider.
type LLMProviderCfg struct {
	Type       string `mapstructure:"type" yaml:"type"`               // "openrouter", "mock"
	Model      string `mapstructure:"model" yaml:"model"`             // Model name
	APIKey     string `mapstructure:"api_key" yaml:"api_key"`         // API key (supports ${ENV_VAR} syntax)
	BaseURL    string `mapstructure:"base_url" yaml:"base_url"`       // Optional endpoint override
	RateLimit  int    `mapstructure:"rate_limit" yaml:"rate_limit"`   // Requests per minute
	MaxRetries int    `mapstructure:"max_retries" yaml:"max_retries"` // Retries on transient failures
	TimeoutSec int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
}

// ImageProviderCfg configures an image generator.
type ImageProviderCfg struct {
	Type       string `mapstructure:"type" yaml:"type"` // "runware", "openai", "horde", "sdwebui", "mock"
	Model      string `mapstructure:"model" yaml:"model"`
	APIKey     string `mapstructure:"api_key" yaml:"api_key"` // API key (supports ${ENV_VAR} syntax)
	BaseURL    string `mapstructure:"base_url" yaml:"base_url"`
	Steps      int    `mapstructure:"steps" yaml:"steps"`
	Retries    uint   `mapstructure:"retries" yaml:"retries"`
	TimeoutSec int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
}

// DefaultsCfg specifies default provider selections.
type DefaultsCfg struct {
	LLMProvider   string `mapstructure:"llm_provider" yaml:"llm_provider"`
	ImageProvider string `mapstructure:"image_provider" yaml:"image_provider"`
}

// GenerationCfg controls deck generation.
type GenerationCfg struct {
	TotalCards       int     `mapstructure:"total_cards" yaml:"total_cards"`
	ConceptRatio     float64 `mapstructure:"concept_ratio" yaml:"concept_ratio"`
	GenerateImages   bool    `mapstructure:"generate_images" yaml:"generate_images"`
	TOCOnly          bool    `mapstructure:"toc_only" yaml:"toc_only"`
	NegativePrompt   string  `mapstructure:"negative_prompt" yaml:"negative_prompt"`
	ImageConcurrency int     `mapstructure:"image_concurrency" yaml:"image_concurrency"`
}

// RenderCfg configures the HTML to PDF converter.
type RenderCfg struct {
	Command string `mapstructure:"command" yaml:"command"`
	Workers int    `mapstructure:"workers" yaml:"workers"` // 0 means one per CPU
}

// ComposeCfg configures sheet composition.
type ComposeCfg struct {
	Layout    string `mapstructure:"layout" yaml:"layout"` // "pair" or "quad"
	ScaleDown bool   `mapstructure:"scale_down" yaml:"scale_down"`
	Viewer    string `mapstructure:"viewer" yaml:"viewer"` // Command used by --open; empty picks the platform default
}

// CacheCfg configures the API response cache.
type CacheCfg struct {
	Dir          string `mapstructure:"dir" yaml:"dir"` // Empty means <home>/cache/api_responses
	Disabled     bool   `mapstructure:"disabled" yaml:"disabled"`
	MemoryTTLSec int    `mapstructure:"memory_ttl_seconds" yaml:"memory_ttl_seconds"`
}

// MemoryTTL returns the in-memory cache lifetime.
func (c CacheCfg) MemoryTTL() time.Duration {
	return time.Duration(c.MemoryTTLSec) * time.Second
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		LLMProviders: map[string]LLMProviderCfg{
			"openrouter": {
				Type:       "openrouter",
				Model:      "google/gemini-2.5-flash",
				APIKey:     "${OPENROUTER_API_KEY}",
				RateLimit:  150,
				MaxRetries: 3,
				TimeoutSec: 300,
				Enabled:    true,
			},
		},
		ImageProviders: map[string]ImageProviderCfg{
			"runware": {
				Type:       "runware",
				Model:      "runware:101@1",
				APIKey:     "${RUNWARE_API_KEY}",
				Retries:    3,
				TimeoutSec: 120,
				Enabled:    true,
			},
			"horde": {
				Type:    "horde",
				APIKey:  "${HORDE_API_KEY}",
				Steps:   30,
				Retries: 3,
				Enabled: false,
			},
		},
		Defaults: DefaultsCfg{
			LLMProvider:   "openrouter",
			ImageProvider: "runware",
		},
		Generation: GenerationCfg{
			TotalCards:       50,
			ConceptRatio:     0.7,
			GenerateImages:   true,
			NegativePrompt:   "Text, label, diagram, blurry, low quality, distorted",
			ImageConcurrency: 8,
		},
		Render: RenderCfg{
			Command: "weasyprint",
		},
		Compose: ComposeCfg{
			Layout: string(layout.Pair),
		},
		Cache: CacheCfg{
			MemoryTTLSec: 24 * 60 * 60,
		},
		LogLevel: "info",
	}
}

// Validate checks values that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	if c.Generation.TotalCards < 0 {
		return fmt.Errorf("generation.total_cards must not be negative")
	}
	if r := c.Generation.ConceptRatio; r < 0 || r > 1 {
		return fmt.Errorf("generation.concept_ratio must be between 0 and 1, got %v", r)
	}
	if _, err := layout.ParseLayout(c.Compose.Layout); err != nil {
		return fmt.Errorf("compose.layout: %w", err)
	}
	return nil
}

// GetLLMProvider returns an LLM provider config by name.
func (c *Config) GetLLMProvider(name string) (LLMProviderCfg, bool) {
	cfg, ok := c.LLMProviders[name]
	return cfg, ok
}

// GetImageProvider returns an image provider config by name.
func (c *Config) GetImageProvider(name string) (ImageProviderCfg, bool) {
	cfg, ok := c.ImageProviders[name]
	return cfg, ok
}

// EnabledLLMProviders returns all enabled LLM providers.
func (c *Config) EnabledLLMProviders() map[string]LLMProviderCfg {
	result := make(map[string]LLMProviderCfg)
	for name, cfg := range c.LLMProviders {
		if cfg.Enabled {
			result[name] = cfg
		}
	}
	return result
}

// EnabledImageProviders returns all enabled image providers.
func (c *Config) EnabledImageProviders() map[string]ImageProviderCfg {
	result := make(map[string]ImageProviderCfg)
	for name, cfg := range c.ImageProviders {
		if cfg.Enabled {
			result[name] = cfg
		}
	}
	return result
}
