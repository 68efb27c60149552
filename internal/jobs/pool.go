// Package jobs runs CPU-bound work units on a fixed pool of workers.
package jobs

import (
	"context"
	"errors"
	"time"
)

// PoolType indicates what kind of work a pool handles.
type PoolType string

const PoolTypeCPU PoolType = "cpu"

// ErrNoHandler is returned for a work unit whose task has no handler.
var ErrNoHandler = errors.New("no handler registered for task")

// PoolStatus reports a pool's current state.
type PoolStatus struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	Workers   int    `json:"workers"`
	InFlight  int    `json:"in_flight"`
	Completed int    `json:"completed"`
	Failed    int    `json:"failed"`
}

// WorkUnit is one task submitted to a pool.
type WorkUnit struct {
	ID    string // unique per unit, generated when empty
	Task  string // handler name
	Index int    // position in the submitted batch
	Data  any
}

// WorkResult is the outcome of one work unit.
type WorkResult struct {
	Unit     *WorkUnit
	Output   any
	Error    error
	Duration time.Duration
}

// Success reports whether the unit completed without error.
func (r WorkResult) Success() bool {
	return r.Error == nil
}

// CPUTaskHandler processes a work unit and returns its output.
// Implementations should be safe for concurrent use.
type CPUTaskHandler func(ctx context.Context, unit *WorkUnit) (any, error)
