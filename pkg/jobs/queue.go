package jobs

import (
	"context"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Job represents one unit of work submitted to the pool.
type Job struct {
	ID       string
	Index    int
	Payload  interface{}
	Enqueued time.Time
}

// Result carries the outcome of a job back to the submitter.
type Result struct {
	Job      Job
	Value    interface{}
	Err      error
	Duration time.Duration
}

// Handler processes a job.
type Handler func(context.Context, Job) (interface{}, error)

// PoolConfig configures worker pool behaviour.
type PoolConfig struct {
	Workers int
	Logger  *zap.Logger
}

// Pool runs a fixed set of jobs on a bounded number of goroutines. Each job
// runs to completion; there are no retries.
type Pool struct {
	name    string
	handler Handler
	workers int
	logger  *zap.Logger
}

// NewPool builds a pool with the provided handler. Workers defaults to the
// number of CPUs.
func NewPool(name string, handler Handler, cfg PoolConfig) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Pool{
		name:    name,
		handler: handler,
		workers: cfg.Workers,
		logger:  cfg.Logger,
	}
}

// Workers reports the effective concurrency.
func (p *Pool) Workers() int {
	return p.workers
}

// Run dispatches every job and blocks until all have finished. Results are
// returned in submission order regardless of completion order.
func (p *Pool) Run(ctx context.Context, jobs []Job) []Result {
	results := make([]Result, len(jobs))
	if len(jobs) == 0 {
		return results
	}

	workers := p.workers
	if workers > len(jobs) {
		workers = len(jobs)
	}

	queue := make(chan int, len(jobs))
	now := time.Now().UTC()
	for i := range jobs {
		jobs[i].Index = i
		if jobs[i].Enqueued.IsZero() {
			jobs[i].Enqueued = now
		}
		queue <- i
	}
	close(queue)

	p.logger.Sugar().Debugw("pool started", "pool", p.name, "workers", workers, "jobs", len(jobs))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for i := range queue {
				results[i] = p.execute(ctx, workerID, jobs[i])
			}
		}(w + 1)
	}
	wg.Wait()

	p.logger.Sugar().Debugw("pool finished", "pool", p.name, "jobs", len(jobs))
	return results
}

func (p *Pool) execute(ctx context.Context, workerID int, job Job) (res Result) {
	start := time.Now()
	res.Job = job
	defer func() {
		if r := recover(); r != nil {
			res.Err = &PanicError{Value: r}
		}
		res.Duration = time.Since(start)
		if res.Err != nil {
			p.logger.Sugar().Warnw("job failed", "pool", p.name, "worker", workerID, "job_id", job.ID, "error", res.Err)
		}
	}()
	res.Value, res.Err = p.handler(ctx, job)
	return res
}

// PanicError reports a handler panic as a job failure.
type PanicError struct {
	Value interface{}
}

func (e *PanicError) Error() string {
	return "job panicked: " + toString(e.Value)
}

func toString(v interface{}) string {
	switch t := v.(type) {
	case error:
		return t.Error()
	case string:
		return t
	default:
		return "unknown panic"
	}
}
