package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/jackzampolin/bookdeck/internal/cache"
	"github.com/jackzampolin/bookdeck/internal/config"
	"github.com/jackzampolin/bookdeck/internal/generate"
	"github.com/jackzampolin/bookdeck/internal/home"
	"github.com/jackzampolin/bookdeck/internal/layout"
	"github.com/jackzampolin/bookdeck/internal/llmcall"
	"github.com/jackzampolin/bookdeck/internal/pipeline"
	"github.com/jackzampolin/bookdeck/internal/pipeline/stages"
	"github.com/jackzampolin/bookdeck/internal/prompts"
	"github.com/jackzampolin/bookdeck/internal/providers"
	"github.com/jackzampolin/bookdeck/internal/render"
	"github.com/jackzampolin/bookdeck/internal/wizard"
)

// callLogName is the per-book LLM call log inside its work directory.
const callLogName = "llm_calls.jsonl"

// env is everything a command needs, built from the persistent flags.
type env struct {
	logger   *slog.Logger
	home     *home.Dir
	config   *config.Manager
	cache    *cache.Cache
	registry *providers.Registry
	store    *prompts.Store
	prompts  *prompts.Resolver
}

func newLogger(level string) *slog.Logger {
	lvl := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	if verbose {
		lvl = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// loadEnv resolves the home directory and config and builds the shared
// services.
func loadEnv() (*env, error) {
	h, err := home.New(homeDir)
	if err != nil {
		return nil, err
	}
	if err := h.EnsureExists(); err != nil {
		return nil, err
	}

	cm, err := config.NewManager(cfgFile, h.Path())
	if err != nil {
		return nil, err
	}
	cfg := cm.Get()

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)
	if f := cm.ConfigFile(); f != "" {
		logger.Debug("loaded config", "file", f)
	}

	dir := cfg.Cache.Dir
	if dir == "" {
		dir = h.CachePath()
	}
	responses := cache.New(cache.Config{
		Dir:       dir,
		Disabled:  cfg.Cache.Disabled,
		MemoryTTL: cfg.Cache.MemoryTTL(),
		Logger:    logger,
	})

	rc := cfg.ToProviderRegistryConfig(responses)
	registry := providers.NewRegistry()
	registry.SetLogger(logger)
	registry.Reload(rc)

	store := prompts.NewStore(h.PromptsPath(), logger)
	return &env{
		logger:   logger,
		home:     h,
		config:   cm,
		cache:    responses,
		registry: registry,
		store:    store,
		prompts:  generate.DefaultResolver(store, logger),
	}, nil
}

// defaults are the wizard settings the config implies.
func (e *env) defaults() wizard.Settings {
	cfg := e.config.Get()
	return wizard.Settings{
		TotalCards:     cfg.Generation.TotalCards,
		GenerateImages: cfg.Generation.GenerateImages,
		TOCOnly:        cfg.Generation.TOCOnly,
		Layout:         cfg.Compose.Layout,
		ScaleDown:      cfg.Compose.ScaleDown,
	}
}

// newGenerator builds the generator for one book from the default
// providers.
func (e *env) newGenerator(w pipeline.Work, images bool) (*generate.Generator, error) {
	cfg := e.config.Get()

	llmName := cfg.Defaults.LLMProvider
	llm, err := e.registry.GetLLM(llmName)
	if err != nil {
		return nil, fmt.Errorf("LLM provider %q unavailable (is its API key set?): %w", llmName, err)
	}
	gc := generate.Config{
		LLM:              llm,
		Prompts:          e.prompts,
		Recorder:         llmcall.NewRecorder(filepath.Join(w.Dir, callLogName), e.logger),
		Book:             w.Name,
		NegativePrompt:   cfg.Generation.NegativePrompt,
		ConceptRatio:     cfg.Generation.ConceptRatio,
		ImageConcurrency: cfg.Generation.ImageConcurrency,
		Logger:           e.logger,
	}
	if p, ok := cfg.GetLLMProvider(llmName); ok {
		gc.Model = p.Model
	}

	if images {
		imgName := cfg.Defaults.ImageProvider
		gen, err := e.registry.GetImage(imgName)
		if err != nil {
			return nil, fmt.Errorf("image provider %q unavailable (is its API key set?): %w", imgName, err)
		}
		gc.Images = gen
		if p, ok := cfg.GetImageProvider(imgName); ok {
			gc.ImageModel = p.Model
		}
	}
	return generate.New(gc)
}

// stageRegistry builds the stage registry for one run's settings.
func (e *env) stageRegistry(s wizard.Settings) (*pipeline.Registry, error) {
	cfg := e.config.Get()

	lay := layout.Pair
	if s.Layout != "" {
		l, err := layout.ParseLayout(s.Layout)
		if err != nil {
			return nil, err
		}
		lay = l
	}
	renderer, err := render.New(render.Config{
		Converter: render.NewCommandConverter(cfg.Render.Command, e.logger),
		Workers:   cfg.Render.Workers,
		Logger:    e.logger,
	})
	if err != nil {
		return nil, err
	}

	r := pipeline.NewRegistry(e.logger)
	err = stages.Register(r, stages.Options{
		Cache: e.cache,
		NewGenerator: func(w pipeline.Work) (*generate.Generator, error) {
			return e.newGenerator(w, s.GenerateImages)
		},
		Renderer:       renderer,
		TotalCards:     s.TotalCards,
		GenerateImages: s.GenerateImages,
		Layout:         lay,
		ScaleDown:      s.ScaleDown,
		Logger:         e.logger,
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// executor runs wizard settings through the stage registry.
func (e *env) executor() *wizard.Pipeline {
	return &wizard.Pipeline{
		Stages:  e.stageRegistry,
		WorkDir: e.home.EnsureWorkDir,
		Logger:  e.logger,
	}
}
