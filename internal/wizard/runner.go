package wizard

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Runner submits sessions and drives their processing in the background.
type Runner struct {
	base     context.Context
	cancel   context.CancelFunc
	sessions *Sessions
	exec     Executor
	logger   *slog.Logger
	wg       sync.WaitGroup
}

// NewRunner creates a runner whose runs live until Close.
func NewRunner(sessions *Sessions, exec Executor, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		base:     ctx,
		cancel:   cancel,
		sessions: sessions,
		exec:     exec,
		logger:   logger,
	}
}

// Start moves session id to processing with settings and returns that
// state. Processing continues after Start returns.
func (r *Runner) Start(id string, settings Settings) (State, error) {
	st, err := r.sessions.Update(id, func(s State) (State, error) {
		return Submit(s, settings, time.Now())
	})
	if err != nil {
		return st, err
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		log := r.logger.With("session", id, "input", settings.Input)
		log.Info("run started")
		final, err := Drive(r.base, st, r.exec, r.sessions.Put)
		if err != nil {
			log.Error("run aborted", "error", err)
			return
		}
		if !final.Outcome.Succeeded() {
			log.Warn("run failed", "error", final.Outcome.Error)
			return
		}
		log.Info("run finished", "cards", final.Outcome.Cards)
	}()
	return st, nil
}

// Close cancels in-flight runs and waits for them to reach results.
func (r *Runner) Close() {
	r.cancel()
	r.wg.Wait()
}

// Wait blocks until every started run has finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}
