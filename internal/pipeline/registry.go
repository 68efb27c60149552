// Package pipeline orders and runs the stages that turn a book into a deck.
// Stages exchange files, named by a closed set of assets, in a per-book
// work directory.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Sentinel errors for the pipeline package.
var (
	// ErrStageAlreadyRegistered is returned when registering a duplicate stage.
	ErrStageAlreadyRegistered = errors.New("stage already registered")

	// ErrStageNotFound is returned when a stage or stage dependency is not found.
	ErrStageNotFound = errors.New("stage not found")

	// ErrDependencyCycle is returned when stage dependencies form a cycle.
	ErrDependencyCycle = errors.New("dependency cycle detected")
)

// Registry manages available stages and their dependencies.
type Registry struct {
	mu     sync.RWMutex
	stages map[string]Stage
	order  []string // Maintains registration order
	logger *slog.Logger
}

// NewRegistry creates an empty stage registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		stages: make(map[string]Stage),
		logger: logger,
	}
}

// Register adds a stage to the registry.
// Returns an error if a stage with the same name is already registered.
func (r *Registry) Register(s Stage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := s.Name()
	if _, exists := r.stages[name]; exists {
		return fmt.Errorf("%w: %s", ErrStageAlreadyRegistered, name)
	}

	r.stages[name] = s
	r.order = append(r.order, name)
	return nil
}

// Get returns a stage by name.
func (r *Registry) Get(name string) (Stage, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.stages[name]
	return s, ok
}

// List returns all stages in registration order.
func (r *Registry) List() []Stage {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stages := make([]Stage, 0, len(r.order))
	for _, name := range r.order {
		stages = append(stages, r.stages[name])
	}
	return stages
}

// Names returns all stage names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// GetOrdered returns stages sorted by dependencies.
// Stages with no dependencies come first, then stages whose
// dependencies are satisfied, etc. When multiple stages have
// the same dependency level, registration order is preserved.
func (r *Registry) GetOrdered() ([]Stage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ordered(r.order)
}

// ordered topologically sorts names, which must be closed under
// dependencies. Callers hold r.mu.
func (r *Registry) ordered(names []string) ([]Stage, error) {
	inDegree := make(map[string]int, len(names))
	for _, name := range names {
		inDegree[name] = 0
	}
	for _, name := range names {
		for _, dep := range r.stages[name].Dependencies() {
			if _, ok := r.stages[dep]; !ok {
				return nil, fmt.Errorf("%w: stage %q depends on %q", ErrStageNotFound, name, dep)
			}
			inDegree[name]++
		}
	}

	// Kahn's algorithm; iterating names keeps ties in registration order.
	var queue []string
	for _, name := range names {
		if inDegree[name] == 0 {
			queue = append(queue, name)
		}
	}

	var ordered []Stage
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		ordered = append(ordered, r.stages[name])

		for _, dependent := range names {
			for _, dep := range r.stages[dependent].Dependencies() {
				if dep == name {
					inDegree[dependent]--
					if inDegree[dependent] == 0 {
						queue = append(queue, dependent)
					}
				}
			}
		}
	}

	if len(ordered) != len(names) {
		return nil, ErrDependencyCycle
	}
	return ordered, nil
}

// Validate checks that all stage dependencies exist and form no cycle.
func (r *Registry) Validate() error {
	_, err := r.GetOrdered()
	return err
}

// DependentsOf returns all stages that depend on the given stage, in
// registration order.
func (r *Registry) DependentsOf(name string) []Stage {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var dependents []Stage
	for _, n := range r.order {
		stage := r.stages[n]
		for _, dep := range stage.Dependencies() {
			if dep == name {
				dependents = append(dependents, stage)
				break
			}
		}
	}
	return dependents
}

// DependenciesOf returns all stages that the given stage depends on.
func (r *Registry) DependenciesOf(name string) []Stage {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stage, ok := r.stages[name]
	if !ok {
		return nil
	}

	var deps []Stage
	for _, depName := range stage.Dependencies() {
		if dep, ok := r.stages[depName]; ok {
			deps = append(deps, dep)
		}
	}
	return deps
}

// Plan returns target and everything it transitively depends on, in the
// order they must run.
func (r *Registry) Plan(target string) ([]Stage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.stages[target]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrStageNotFound, target)
	}

	needed := make(map[string]bool)
	visiting := make(map[string]bool)
	var visit func(name string) error
	visit = func(name string) error {
		if needed[name] {
			return nil
		}
		if visiting[name] {
			return fmt.Errorf("%w: through %q", ErrDependencyCycle, name)
		}
		s, ok := r.stages[name]
		if !ok {
			return fmt.Errorf("%w: %s", ErrStageNotFound, name)
		}
		visiting[name] = true
		for _, dep := range s.Dependencies() {
			if err := visit(dep); err != nil {
				return err
			}
		}
		visiting[name] = false
		needed[name] = true
		return nil
	}
	if err := visit(target); err != nil {
		return nil, err
	}

	var names []string
	for _, name := range r.order {
		if needed[name] {
			names = append(names, name)
		}
	}
	return r.ordered(names)
}

// Status returns the status of every stage for w, in dependency order.
func (r *Registry) Status(ctx context.Context, w Work) ([]StageStatus, error) {
	stages, err := r.GetOrdered()
	if err != nil {
		return nil, err
	}
	out := make([]StageStatus, 0, len(stages))
	for _, s := range stages {
		st, err := s.Status(ctx, w)
		if err != nil {
			return nil, fmt.Errorf("status of %s: %w", s.Name(), err)
		}
		out = append(out, st)
	}
	return out, nil
}

// Run runs target and its dependencies for w. Stages that are already
// complete are skipped unless opts.Force is set. The first failure stops
// the run.
func (r *Registry) Run(ctx context.Context, w Work, target string, opts RunOptions) error {
	plan, err := r.Plan(target)
	if err != nil {
		return err
	}
	notify := opts.OnStage
	if notify == nil {
		notify = func(StageEvent) {}
	}

	log := r.logger.With("book", w.Name, "target", target)
	for i, s := range plan {
		if err := ctx.Err(); err != nil {
			return err
		}
		ev := StageEvent{Stage: s.Name(), Index: i, Total: len(plan)}

		if !opts.Force {
			st, err := s.Status(ctx, w)
			if err != nil {
				return fmt.Errorf("status of %s: %w", s.Name(), err)
			}
			if st.Complete {
				log.Info("stage already complete", "stage", s.Name())
				ev.Skipped, ev.Done = true, true
				notify(ev)
				continue
			}
		}

		log.Info("running stage", "stage", s.Name(), "step", i+1, "of", len(plan))
		notify(ev)
		err := s.Run(ctx, w)
		ev.Done, ev.Err = true, err
		notify(ev)
		if err != nil {
			return fmt.Errorf("stage %s: %w", s.Name(), err)
		}
	}
	return nil
}
