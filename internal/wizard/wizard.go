// Package wizard models a deck-building session as an explicit state value
// moving through configure, processing and results. Phase handlers are pure:
// they take a State and return the next one without touching the input.
package wizard

import (
	"errors"
	"fmt"
	"time"

	"github.com/jackzampolin/bookdeck/internal/layout"
)

// ErrInvalidTransition is returned when an event is not allowed in the
// current phase.
var ErrInvalidTransition = errors.New("invalid transition")

// Phase is the wizard step a session is in.
type Phase string

const (
	PhaseConfigure  Phase = "configure"
	PhaseProcessing Phase = "processing"
	PhaseResults    Phase = "results"
)

// Settings are the choices made on the configure step.
type Settings struct {
	Name           string `json:"name" yaml:"name"`
	Input          string `json:"input" yaml:"input"`
	TotalCards     int    `json:"total_cards" yaml:"total_cards"`
	GenerateImages bool   `json:"generate_images" yaml:"generate_images"`
	TOCOnly        bool   `json:"toc_only" yaml:"toc_only"`
	Layout         string `json:"layout" yaml:"layout"`
	ScaleDown      bool   `json:"scale_down" yaml:"scale_down"`
	Force          bool   `json:"force" yaml:"force"`
}

// Validate reports the first unusable setting.
func (s Settings) Validate() error {
	if s.Input == "" {
		return errors.New("input is required")
	}
	if s.TotalCards < 0 {
		return fmt.Errorf("total_cards must not be negative, got %d", s.TotalCards)
	}
	if !s.TOCOnly && s.TotalCards == 0 {
		return errors.New("total_cards is required unless toc_only is set")
	}
	if s.Layout != "" {
		if _, err := layout.ParseLayout(s.Layout); err != nil {
			return err
		}
	}
	return nil
}

// Step records one pipeline stage as seen during processing.
type Step struct {
	Stage   string `json:"stage" yaml:"stage"`
	Index   int    `json:"index" yaml:"index"`
	Total   int    `json:"total" yaml:"total"`
	Skipped bool   `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	Done    bool   `json:"done" yaml:"done"`
	Error   string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Outcome is what processing produced.
type Outcome struct {
	Files map[string]string `json:"files,omitempty" yaml:"files,omitempty"` // asset name -> path
	Cards int               `json:"cards" yaml:"cards"`
	Error string            `json:"error,omitempty" yaml:"error,omitempty"`
}

// Succeeded reports whether processing finished without error.
func (o Outcome) Succeeded() bool { return o.Error == "" }

// State is one session's full wizard state.
type State struct {
	ID        string    `json:"id" yaml:"id"`
	Phase     Phase     `json:"phase" yaml:"phase"`
	Settings  Settings  `json:"settings" yaml:"settings"`
	Steps     []Step    `json:"steps,omitempty" yaml:"steps,omitempty"`
	Outcome   *Outcome  `json:"outcome,omitempty" yaml:"outcome,omitempty"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// New returns a session in the configure phase.
func New(id string, now time.Time) State {
	return State{ID: id, Phase: PhaseConfigure, UpdatedAt: now}
}

func (s State) clone() State {
	s.Steps = append([]Step(nil), s.Steps...)
	if s.Outcome != nil {
		o := *s.Outcome
		if o.Files != nil {
			files := make(map[string]string, len(o.Files))
			for k, v := range o.Files {
				files[k] = v
			}
			o.Files = files
		}
		s.Outcome = &o
	}
	return s
}

func invalid(s State, event string) error {
	return fmt.Errorf("%w: %s in phase %s", ErrInvalidTransition, event, s.Phase)
}

// Submit accepts settings and starts processing.
func Submit(s State, settings Settings, now time.Time) (State, error) {
	if s.Phase != PhaseConfigure {
		return s, invalid(s, "submit")
	}
	if err := settings.Validate(); err != nil {
		return s, err
	}
	next := s.clone()
	next.Phase = PhaseProcessing
	next.Settings = settings
	next.Steps = nil
	next.Outcome = nil
	next.UpdatedAt = now
	return next, nil
}

// Advance records stage progress. A step for a stage already seen replaces
// the earlier entry.
func Advance(s State, step Step, now time.Time) (State, error) {
	if s.Phase != PhaseProcessing {
		return s, invalid(s, "advance")
	}
	next := s.clone()
	replaced := false
	for i := range next.Steps {
		if next.Steps[i].Stage == step.Stage {
			next.Steps[i] = step
			replaced = true
			break
		}
	}
	if !replaced {
		next.Steps = append(next.Steps, step)
	}
	next.UpdatedAt = now
	return next, nil
}

// Finish moves processing to results.
func Finish(s State, outcome Outcome, now time.Time) (State, error) {
	if s.Phase != PhaseProcessing {
		return s, invalid(s, "finish")
	}
	next := s.clone()
	next.Phase = PhaseResults
	next.Outcome = &outcome
	next.UpdatedAt = now
	return next.clone(), nil
}

// Restart returns to configure, keeping the previous settings as a
// starting point.
func Restart(s State, now time.Time) (State, error) {
	if s.Phase != PhaseResults {
		return s, invalid(s, "restart")
	}
	next := s.clone()
	next.Phase = PhaseConfigure
	next.Steps = nil
	next.Outcome = nil
	next.UpdatedAt = now
	return next, nil
}
