// Package config loads bookdeck settings from defaults, a YAML file and
// BOOKDECK_ environment variables, and reloads them when the file changes.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"

	"github.com/jackzampolin/bookdeck/internal/cache"
	"github.com/jackzampolin/bookdeck/internal/providers"
)

// EnvPrefix prefixes every environment override, e.g. BOOKDECK_CACHE_DISABLED.
const EnvPrefix = "BOOKDECK"

// Manager handles loading and hot-reloading configuration.
type Manager struct {
	v         *viper.Viper
	mu        sync.RWMutex
	config    *Config
	callbacks []func(*Config)
}

// NewManager creates a new config manager and loads initial config.
// cfgFile may be empty, in which case ./config.yaml and homeDir/config.yaml
// are tried. A missing file is not an error.
func NewManager(cfgFile, homeDir string) (*Manager, error) {
	cm := &Manager{
		v:         viper.New(),
		callbacks: make([]func(*Config), 0),
	}

	if err := cm.initViper(cfgFile, homeDir); err != nil {
		return nil, err
	}

	cfg, err := cm.load()
	if err != nil {
		return nil, err
	}
	cm.config = cfg

	return cm, nil
}

// initViper sets up viper with defaults and config file.
func (cm *Manager) initViper(cfgFile, homeDir string) error {
	v := cm.v
	defaults := DefaultConfig()
	v.SetDefault("llm_providers", defaults.LLMProviders)
	v.SetDefault("image_providers", defaults.ImageProviders)
	v.SetDefault("defaults.llm_provider", defaults.Defaults.LLMProvider)
	v.SetDefault("defaults.image_provider", defaults.Defaults.ImageProvider)
	v.SetDefault("generation.total_cards", defaults.Generation.TotalCards)
	v.SetDefault("generation.concept_ratio", defaults.Generation.ConceptRatio)
	v.SetDefault("generation.generate_images", defaults.Generation.GenerateImages)
	v.SetDefault("generation.toc_only", defaults.Generation.TOCOnly)
	v.SetDefault("generation.negative_prompt", defaults.Generation.NegativePrompt)
	v.SetDefault("generation.image_concurrency", defaults.Generation.ImageConcurrency)
	v.SetDefault("render.command", defaults.Render.Command)
	v.SetDefault("render.workers", defaults.Render.Workers)
	v.SetDefault("compose.layout", defaults.Compose.Layout)
	v.SetDefault("compose.scale_down", defaults.Compose.ScaleDown)
	v.SetDefault("compose.viewer", defaults.Compose.Viewer)
	v.SetDefault("cache.dir", defaults.Cache.Dir)
	v.SetDefault("cache.disabled", defaults.Cache.Disabled)
	v.SetDefault("cache.memory_ttl_seconds", defaults.Cache.MemoryTTLSec)
	v.SetDefault("log_level", defaults.LogLevel)

	// Environment variables with BOOKDECK_ prefix; nested keys use
	// underscores (BOOKDECK_GENERATION_TOTAL_CARDS).
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Config file
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if homeDir != "" {
			v.AddConfigPath(homeDir)
		}
	}

	// Try to read config file (not required)
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

// load parses the current viper state into a Config struct.
func (cm *Manager) load() (*Config, error) {
	var cfg Config
	if err := cm.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Get returns the current configuration (thread-safe).
func (cm *Manager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// ConfigFile returns the file the configuration was read from, or "" when
// only defaults and environment are in effect.
func (cm *Manager) ConfigFile() string {
	return cm.v.ConfigFileUsed()
}

// OnChange registers a callback for config changes.
func (cm *Manager) OnChange(fn func(*Config)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.callbacks = append(cm.callbacks, fn)
}

// WatchConfig enables hot-reloading of configuration. An edit that fails
// to parse or validate keeps the previous configuration.
func (cm *Manager) WatchConfig() {
	cm.v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := cm.load()
		if err != nil {
			return
		}

		cm.mu.Lock()
		cm.config = cfg
		callbacks := make([]func(*Config), len(cm.callbacks))
		copy(callbacks, cm.callbacks)
		cm.mu.Unlock()

		for _, fn := range callbacks {
			fn(cfg)
		}
	})
	cm.v.WatchConfig()
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// ResolveEnvVars expands ${ENV_VAR} references in a string.
func ResolveEnvVars(value string) string {
	if value == "" {
		return value
	}
	return envVarPattern.ReplaceAllStringFunc(value, func(match string) string {
		varName := match[2 : len(match)-1]
		return os.Getenv(varName)
	})
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// ToProviderRegistryConfig converts the config to a format suitable for providers.Registry.
// It resolves all ${ENV_VAR} references in API keys.
func (c *Config) ToProviderRegistryConfig(responses *cache.Cache) providers.RegistryConfig {
	cfg := providers.RegistryConfig{
		LLMProviders:   make(map[string]providers.LLMProviderConfig),
		ImageProviders: make(map[string]providers.ImageProviderConfig),
		Cache:          responses,
	}

	for name, llm := range c.LLMProviders {
		cfg.LLMProviders[name] = providers.LLMProviderConfig{
			Type:       llm.Type,
			Model:      llm.Model,
			APIKey:     ResolveEnvVars(llm.APIKey),
			BaseURL:    llm.BaseURL,
			RateLimit:  llm.RateLimit,
			MaxRetries: llm.MaxRetries,
			Timeout:    seconds(llm.TimeoutSec),
			Enabled:    llm.Enabled,
		}
	}

	for name, img := range c.ImageProviders {
		cfg.ImageProviders[name] = providers.ImageProviderConfig{
			Type:     img.Type,
			Model:    img.Model,
			APIKey:   ResolveEnvVars(img.APIKey),
			BaseURL:  img.BaseURL,
			Steps:    img.Steps,
			Attempts: img.Retries,
			Timeout:  seconds(img.TimeoutSec),
			Enabled:  img.Enabled,
		}
	}

	return cfg
}

// WriteDefault writes the default configuration to the specified path.
func WriteDefault(path string) error {
	cfg := DefaultConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# bookdeck configuration
# API keys use ${ENV_VAR} syntax to reference environment variables
# Set these in your shell: export OPENROUTER_API_KEY=xxx RUNWARE_API_KEY=xxx
# Any key can be overridden with BOOKDECK_<SECTION>_<KEY>, e.g. BOOKDECK_CACHE_DISABLED=true

`)
	return os.WriteFile(path, append(header, data...), 0o644)
}
