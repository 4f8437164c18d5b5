package workpool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// Outcome describes how a job finished.
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeFailed    Outcome = "failed"
	OutcomeCancelled Outcome = "cancelled"
)

// Result is delivered to a job's completion callback exactly once.
type Result struct {
	Outcome Outcome
	Err     error
}

// Job is a unit of work executed by the pool. Run is retried on transient
// errors; OnComplete is invoked exactly once after the final attempt.
type Job struct {
	ID         string
	Run        func(ctx context.Context) error
	OnComplete func(ctx context.Context, res Result)
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps an error so the pool stops retrying and fails the job.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was wrapped with Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

// Options configures a Pool.
type Options struct {
	Name           string
	Parallelism    int
	MaxAttempts    int
	InitialBackoff time.Duration
}

// Pool runs jobs with bounded parallelism and per-job retry.
type Pool struct {
	opts   Options
	logger *zap.Logger

	sem      chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
	shutdown bool

	rootCtx context.Context
	cancel  context.CancelFunc
}

// New creates a pool. Parallelism defaults to 1, MaxAttempts to 3 and
// InitialBackoff to 5s when left zero.
func New(opts Options, logger *zap.Logger) *Pool {
	if opts.Parallelism <= 0 {
		opts.Parallelism = 1
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		opts:    opts,
		logger:  logger,
		sem:     make(chan struct{}, opts.Parallelism),
		rootCtx: ctx,
		cancel:  cancel,
	}
}

// Submit schedules a job. It returns an error if the pool is shut down.
// The job's completion callback fires on success, after retries are
// exhausted, on a permanent error, or with OutcomeCancelled on shutdown.
func (p *Pool) Submit(job Job) error {
	if job.Run == nil {
		return fmt.Errorf("workpool: job %q has no run function", job.ID)
	}

	p.mu.Lock()
	if p.shutdown {
		p.mu.Unlock()
		return fmt.Errorf("workpool: pool %q is shut down", p.opts.Name)
	}
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()

		select {
		case p.sem <- struct{}{}:
			defer func() { <-p.sem }()
		case <-p.rootCtx.Done():
			p.complete(job, Result{Outcome: OutcomeCancelled, Err: p.rootCtx.Err()})
			return
		}

		err := p.runWithRetry(job)
		switch {
		case err == nil:
			p.complete(job, Result{Outcome: OutcomeSuccess})
		case errors.Is(err, context.Canceled) || errors.Is(p.rootCtx.Err(), context.Canceled):
			p.complete(job, Result{Outcome: OutcomeCancelled, Err: err})
		default:
			p.complete(job, Result{Outcome: OutcomeFailed, Err: err})
		}
	}()

	return nil
}

func (p *Pool) runWithRetry(job Job) error {
	attempt := 0

	operation := func() error {
		attempt++
		err := job.Run(p.rootCtx)
		if err == nil {
			return nil
		}

		var pe *permanentError
		if errors.As(err, &pe) {
			return backoff.Permanent(pe.err)
		}
		if attempt >= p.opts.MaxAttempts {
			return backoff.Permanent(err)
		}

		p.logger.Warn("🔁 Job attempt failed, will retry",
			zap.String("pool", p.opts.Name),
			zap.String("job_id", job.ID),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		return err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.opts.InitialBackoff
	bo.MaxElapsedTime = 0

	return backoff.Retry(operation, backoff.WithContext(bo, p.rootCtx))
}

func (p *Pool) complete(job Job, res Result) {
	if res.Outcome != OutcomeSuccess {
		p.logger.Warn("Job finished without success",
			zap.String("pool", p.opts.Name),
			zap.String("job_id", job.ID),
			zap.String("outcome", string(res.Outcome)),
			zap.Error(res.Err),
		)
	}
	if job.OnComplete == nil {
		return
	}
	// Callbacks run on a background context so completion bookkeeping
	// still happens during shutdown.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	job.OnComplete(ctx, res)
}

// Shutdown cancels running jobs and waits for their completion callbacks.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	if p.shutdown {
		p.mu.Unlock()
		return
	}
	p.shutdown = true
	p.mu.Unlock()

	p.logger.Info("🛑 Stopping worker pool...", zap.String("pool", p.opts.Name))
	p.cancel()
	p.wg.Wait()
	p.logger.Info("✅ Worker pool stopped", zap.String("pool", p.opts.Name))
}
