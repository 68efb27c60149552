package pipeline

import "context"

// Stage is the interface that all pipeline stages must implement.
// Each stage turns input assets into output assets for one Work.
type Stage interface {
	// Identity
	Name() string           // e.g., "clean", "cards"
	Dependencies() []string // Stages that must complete first

	// Metadata
	Description() string
	Inputs() []Asset
	Outputs() []Asset

	// Status reports whether the stage's outputs are already in place.
	Status(ctx context.Context, w Work) (StageStatus, error)

	// Run produces the stage's outputs.
	Run(ctx context.Context, w Work) error
}

// StageStatus is the state of one stage for one Work.
type StageStatus struct {
	Stage    string   `json:"stage" yaml:"stage"`
	Complete bool     `json:"complete" yaml:"complete"`
	Missing  []string `json:"missing,omitempty" yaml:"missing,omitempty"`
}

// OutputStatus is the default Status: complete when every output exists.
func OutputStatus(s Stage, w Work) StageStatus {
	st := StageStatus{Stage: s.Name()}
	for _, a := range w.Missing(s.Outputs()) {
		st.Missing = append(st.Missing, a.String())
	}
	st.Complete = len(st.Missing) == 0
	return st
}

// RunOptions controls Registry.Run.
type RunOptions struct {
	// Force reruns stages whose outputs already exist.
	Force bool

	// OnStage, when set, is called before and after each stage.
	OnStage func(ev StageEvent)
}

// StageEvent reports stage progress.
type StageEvent struct {
	Stage   string
	Index   int
	Total   int
	Skipped bool
	Done    bool
	Err     error
}
