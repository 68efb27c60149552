// Package generate runs the model-driven stages of deck building: book
// structure, per-section cards, illustration styles and images.
package generate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jackzampolin/bookdeck/internal/allocate"
	"github.com/jackzampolin/bookdeck/internal/llmcall"
	"github.com/jackzampolin/bookdeck/internal/prompts"
	"github.com/jackzampolin/bookdeck/internal/prompts/cards"
	"github.com/jackzampolin/bookdeck/internal/prompts/structure"
	"github.com/jackzampolin/bookdeck/internal/prompts/style"
	"github.com/jackzampolin/bookdeck/internal/providers"
)

// DefaultModel is the chat model used when none is configured.
const DefaultModel = "google/gemini-2.5-flash"

var (
	// ErrEmptyStructure is returned when the model produced no usable sections.
	ErrEmptyStructure = errors.New("structure has no sections")

	// ErrNoImageGenerator is returned by GenerateImages without a generator.
	ErrNoImageGenerator = errors.New("no image generator configured")
)

// Config configures a Generator.
type Config struct {
	LLM      providers.LLMClient
	Images   providers.ImageGenerator // optional; required by GenerateImages
	Prompts  *prompts.Resolver        // defaults to DefaultResolver(nil)
	Recorder *llmcall.Recorder        // optional

	Book           string // work name, used for prompt overrides and call records
	Model          string
	ImageModel     string
	NegativePrompt string
	ConceptRatio   float64
	Sections       int

	// ImageConcurrency bounds in-flight image requests; 0 is unbounded.
	ImageConcurrency int

	Logger *slog.Logger
}

// Generator runs the generation stages for one book.
type Generator struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a Generator, filling defaults.
func New(cfg Config) (*Generator, error) {
	if cfg.LLM == nil {
		return nil, fmt.Errorf("LLM client is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Prompts == nil {
		cfg.Prompts = DefaultResolver(nil, cfg.Logger)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.NegativePrompt == "" {
		cfg.NegativePrompt = providers.DefaultNegativePrompt
	}
	if cfg.ConceptRatio <= 0 || cfg.ConceptRatio > 1 {
		cfg.ConceptRatio = allocate.ConceptRatio
	}
	if cfg.Sections <= 0 {
		cfg.Sections = structure.DefaultSections
	}
	return &Generator{cfg: cfg, logger: cfg.Logger.With("book", cfg.Book)}, nil
}

// DefaultResolver returns a resolver with every stage prompt registered.
// store may be nil.
func DefaultResolver(store *prompts.Store, logger *slog.Logger) *prompts.Resolver {
	r := prompts.NewResolver(store, logger)
	structure.RegisterPrompts(r)
	cards.RegisterPrompts(r)
	style.RegisterPrompts(r)
	return r
}

// render resolves and renders a prompt, returning its text and the hash of
// the template used.
func (g *Generator) render(key string, data any) (text, hash string, err error) {
	p, err := g.cfg.Prompts.Resolve(key, g.cfg.Book)
	if err != nil {
		return "", "", err
	}
	text, err = prompts.Render(key, p.Text, data)
	if err != nil {
		return "", "", err
	}
	return text, p.Hash, nil
}

// call is one structured chat request.
type call struct {
	key     string
	hash    string
	section *int
	system  string
	user    string
	format  *providers.ResponseFormat
}

// chat sends c, records it, and decodes the structured reply into out.
func (g *Generator) chat(ctx context.Context, c call, out any) error {
	var messages []providers.Message
	if c.system != "" {
		messages = append(messages, providers.Message{Role: "system", Content: c.system})
	}
	messages = append(messages, providers.Message{Role: "user", Content: c.user})

	opts := llmcall.RecordOptions{
		Book:       g.cfg.Book,
		Section:    c.section,
		PromptKey:  c.key,
		PromptHash: c.hash,
	}

	start := time.Now()
	result, err := g.cfg.LLM.Chat(ctx, &providers.ChatRequest{
		Messages:       messages,
		Model:          g.cfg.Model,
		ResponseFormat: c.format,
		RequestID:      uuid.New().String(),
	})
	if result != nil {
		g.cfg.Recorder.Record(result, opts)
	} else if err != nil {
		g.cfg.Recorder.RecordCall(&llmcall.Call{
			ID:         uuid.New().String(),
			Timestamp:  start,
			LatencyMs:  int(time.Since(start).Milliseconds()),
			Book:       opts.Book,
			Section:    opts.Section,
			PromptKey:  opts.PromptKey,
			PromptHash: opts.PromptHash,
			Provider:   g.cfg.LLM.Name(),
			Model:      g.cfg.Model,
			Error:      err.Error(),
		})
	}
	if err != nil {
		return fmt.Errorf("%s: %w", c.key, err)
	}
	if err := result.Decode(out); err != nil {
		return fmt.Errorf("%s: %w", c.key, err)
	}
	return nil
}

func intPtr(i int) *int { return &i }
