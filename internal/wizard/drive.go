package wizard

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackzampolin/bookdeck/internal/book"
	"github.com/jackzampolin/bookdeck/internal/ingest"
	"github.com/jackzampolin/bookdeck/internal/pipeline"
	"github.com/jackzampolin/bookdeck/internal/pipeline/stages"
)

// Executor carries out the processing phase for one set of settings,
// reporting each stage transition to progress.
type Executor interface {
	Execute(ctx context.Context, settings Settings, progress func(Step)) (Outcome, error)
}

// Drive runs the processing phase of s to completion and returns the
// results state. publish, when set, receives every intermediate state.
// A failed run still reaches results, with the error in its outcome.
func Drive(ctx context.Context, s State, exec Executor, publish func(State)) (State, error) {
	if s.Phase != PhaseProcessing {
		return s, invalid(s, "drive")
	}
	if publish == nil {
		publish = func(State) {}
	}

	var mu sync.Mutex
	cur := s
	progress := func(step Step) {
		mu.Lock()
		defer mu.Unlock()
		next, err := Advance(cur, step, time.Now())
		if err != nil {
			return
		}
		cur = next
		publish(cur)
	}

	outcome, err := exec.Execute(ctx, s.Settings, progress)
	if err != nil {
		outcome.Error = err.Error()
	}

	mu.Lock()
	defer mu.Unlock()
	final, ferr := Finish(cur, outcome, time.Now())
	if ferr != nil {
		return cur, ferr
	}
	publish(final)
	return final, nil
}

// Pipeline executes settings on the stage registry.
type Pipeline struct {
	// Stages builds a registry configured for one run.
	Stages func(Settings) (*pipeline.Registry, error)

	// WorkDir returns (and creates) the directory a book's assets live in.
	WorkDir func(name string) (string, error)

	Logger *slog.Logger
}

// Target is the last stage settings ask for.
func Target(settings Settings) string {
	if settings.TOCOnly {
		return stages.TOC
	}
	return stages.Combine
}

// WorkFor resolves the Work settings describe.
func (p *Pipeline) WorkFor(settings Settings) (pipeline.Work, error) {
	name := settings.Name
	if name == "" {
		name = ingest.DeriveName(settings.Input)
	}
	dir, err := p.WorkDir(name)
	if err != nil {
		return pipeline.Work{}, err
	}
	return pipeline.Work{Name: name, Dir: dir, Input: settings.Input}, nil
}

// Execute runs every stage up to Target(settings).
func (p *Pipeline) Execute(ctx context.Context, settings Settings, progress func(Step)) (Outcome, error) {
	log := p.Logger
	if log == nil {
		log = slog.Default()
	}
	r, err := p.Stages(settings)
	if err != nil {
		return Outcome{}, err
	}
	w, err := p.WorkFor(settings)
	if err != nil {
		return Outcome{}, err
	}

	start := time.Now()
	err = r.Run(ctx, w, Target(settings), pipeline.RunOptions{
		Force: settings.Force,
		OnStage: func(ev pipeline.StageEvent) {
			progress(StepFrom(ev))
		},
	})
	outcome := Collect(w)
	if err != nil {
		return outcome, err
	}
	log.Info("run complete", "book", w.Name, "cards", outcome.Cards, "elapsed", time.Since(start).Round(time.Millisecond))
	return outcome, nil
}

// StepFrom converts a registry stage event to a wizard step.
func StepFrom(ev pipeline.StageEvent) Step {
	step := Step{
		Stage:   ev.Stage,
		Index:   ev.Index,
		Total:   ev.Total,
		Skipped: ev.Skipped,
		Done:    ev.Done,
	}
	if ev.Err != nil {
		step.Error = ev.Err.Error()
	}
	return step
}

// Collect lists the assets of w present on disk.
func Collect(w pipeline.Work) Outcome {
	out := Outcome{Files: make(map[string]string)}
	for _, a := range pipeline.Assets {
		if w.Exists(a) {
			out.Files[a.String()] = w.Path(a)
		}
	}
	if deck, err := book.LoadDeck(w.Path(pipeline.AssetCardsJSONL)); err == nil {
		out.Cards = len(deck)
	}
	return out
}

// Describe is a one-line summary of a step for terminal progress output.
func (s Step) Describe() string {
	switch {
	case s.Error != "":
		return fmt.Sprintf("[%d/%d] %s failed: %s", s.Index+1, s.Total, s.Stage, s.Error)
	case s.Skipped:
		return fmt.Sprintf("[%d/%d] %s (up to date)", s.Index+1, s.Total, s.Stage)
	case s.Done:
		return fmt.Sprintf("[%d/%d] %s done", s.Index+1, s.Total, s.Stage)
	default:
		return fmt.Sprintf("[%d/%d] %s ...", s.Index+1, s.Total, s.Stage)
	}
}
