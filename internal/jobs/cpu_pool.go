package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// CPUWorkerPool manages a pool of workers for CPU-bound tasks.
// All workers share a single queue - natural load balancing via Go channel semantics.
type CPUWorkerPool struct {
	name        string
	logger      *slog.Logger
	workerCount int

	// Task handlers by task name
	handlers map[string]CPUTaskHandler
	mu       sync.RWMutex

	inFlight  atomic.Int32
	completed atomic.Int32
	failed    atomic.Int32
}

// CPUWorkerPoolConfig configures a new CPU worker pool.
type CPUWorkerPoolConfig struct {
	Name        string
	Logger      *slog.Logger
	WorkerCount int // Number of worker goroutines (default: runtime.NumCPU())
}

// NewCPUWorkerPool creates a new CPU worker pool.
func NewCPUWorkerPool(cfg CPUWorkerPoolConfig) *CPUWorkerPool {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	name := cfg.Name
	if name == "" {
		name = "cpu"
	}

	workerCount := cfg.WorkerCount
	if workerCount <= 0 {
		workerCount = runtime.NumCPU()
	}

	return &CPUWorkerPool{
		name:        name,
		logger:      logger.With("pool", name, "type", PoolTypeCPU, "workers", workerCount),
		workerCount: workerCount,
		handlers:    make(map[string]CPUTaskHandler),
	}
}

// RegisterHandler registers a handler for a task type.
// Must be called before Run.
func (p *CPUWorkerPool) RegisterHandler(taskName string, handler CPUTaskHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[taskName] = handler
	p.logger.Debug("registered CPU task handler", "task", taskName)
}

// Name returns the pool name.
func (p *CPUWorkerPool) Name() string {
	return p.name
}

// Type returns PoolTypeCPU.
func (p *CPUWorkerPool) Type() PoolType {
	return PoolTypeCPU
}

// Run processes units on the pool's workers and blocks until all are done.
// Results are returned in submission order, whatever order they finished
// in. Units still queued when ctx is cancelled fail with ctx.Err().
func (p *CPUWorkerPool) Run(ctx context.Context, units []*WorkUnit) []WorkResult {
	results := make([]WorkResult, len(units))
	if len(units) == 0 {
		return results
	}

	queue := make(chan int, len(units))
	for i, unit := range units {
		unit.Index = i
		if unit.ID == "" {
			unit.ID = uuid.New().String()
		}
		queue <- i
	}
	close(queue)

	workers := min(p.workerCount, len(units))
	p.logger.Debug("cpu pool starting", "units", len(units), "active_workers", workers)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for i := range queue {
				results[i] = p.process(ctx, id, units[i])
			}
		}(w)
	}
	wg.Wait()
	return results
}

// Status returns current pool status.
func (p *CPUWorkerPool) Status() PoolStatus {
	return PoolStatus{
		Name:      p.name,
		Type:      string(PoolTypeCPU),
		Workers:   p.workerCount,
		InFlight:  int(p.inFlight.Load()),
		Completed: int(p.completed.Load()),
		Failed:    int(p.failed.Load()),
	}
}

// process executes a CPU work unit.
func (p *CPUWorkerPool) process(ctx context.Context, worker int, unit *WorkUnit) (result WorkResult) {
	result.Unit = unit
	start := time.Now()
	defer func() {
		result.Duration = time.Since(start)
	}()

	if err := ctx.Err(); err != nil {
		p.failed.Add(1)
		result.Error = err
		return result
	}

	// Find handler for this task
	p.mu.RLock()
	handler, ok := p.handlers[unit.Task]
	p.mu.RUnlock()

	if !ok {
		p.failed.Add(1)
		result.Error = fmt.Errorf("%w: %s", ErrNoHandler, unit.Task)
		return result
	}

	p.inFlight.Add(1)
	output, err := handler(ctx, unit)
	p.inFlight.Add(-1)

	if err != nil {
		p.failed.Add(1)
		result.Error = err
		p.logger.Debug("CPU work unit failed", "worker_id", worker, "unit_id", unit.ID, "task", unit.Task, "error", err)
		return result
	}

	p.completed.Add(1)
	result.Output = output
	p.logger.Debug("CPU work unit completed", "worker_id", worker, "unit_id", unit.ID, "task", unit.Task)
	return result
}
