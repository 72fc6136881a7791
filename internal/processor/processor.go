// Package processor schedules a pipeline over a pool of workers, one job at a time.
//
// All dispatcher state lives on a single sequence goroutine: enqueueing, dispatching
// and reply handling run there one after another. Callbacks also run there, so a
// slow callback delays the next dispatch.
package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"go-pixel-worker/internal/models"
	"go-pixel-worker/internal/pipeline"
	"go-pixel-worker/internal/queue"
	"go-pixel-worker/internal/worker"
)

var (
	ErrDestroyed     = errors.New("processor destroyed")
	ErrInvalidInput  = errors.New("invalid input")
	ErrInvalidOption = errors.New("invalid option")
	ErrDropped       = errors.New("job dropped from full queue")
)

type Option func(*Processor) error

// WithThreads sets the worker count. 0 runs the pipeline on the processor's own
// goroutine. Image pipelines always use one worker.
func WithThreads(n int) Option {
	return func(p *Processor) error {
		if n < 0 {
			return fmt.Errorf("%w: threads must be >= 0, got %d", ErrInvalidOption, n)
		}
		p.threads = n
		return nil
	}
}

// WithQueueLimit bounds the pending queue; older jobs are dropped past it.
func WithQueueLimit(n int) Option {
	return func(p *Processor) error {
		if n < 1 {
			return fmt.Errorf("%w: queue limit must be >= 1, got %d", ErrInvalidOption, n)
		}
		p.queueLimit = n
		return nil
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Processor) error {
		if l != nil {
			p.log = l
		}
		return nil
	}
}

type Stats struct {
	Processed int64
	Dropped   int64
	Failed    int64
}

type Processor struct {
	log        *slog.Logger
	pipeline   *pipeline.Pipeline
	seq        *worker.Sequence
	pool       worker.WorkerPoolService
	queue      queue.QueueService
	threads    int
	queueLimit int

	// admitMu is held while a callback runs.
	admitMu     sync.Mutex
	inCallback  atomic.Bool
	destroyed   atomic.Bool
	destroyOnce sync.Once
	processed   atomic.Int64
	dropped     atomic.Int64
	failed      atomic.Int64

	// owned by seq
	job      *models.Job
	running  int
	replies  map[int]models.Reply
	segments []Segment
}

func New(p *pipeline.Pipeline, opts ...Option) (*Processor, error) {
	if p == nil || p.Len() == 0 {
		return nil, pipeline.ErrNoOperations
	}
	proc := &Processor{
		log:      slog.Default(),
		pipeline: p,
		threads:  1,
	}
	for _, opt := range opts {
		if err := opt(proc); err != nil {
			return nil, err
		}
	}

	q, err := queue.NewQueue(proc.queueLimit)
	if err != nil {
		return nil, err
	}
	proc.queue = q
	proc.seq = worker.NewSequence()

	pool := worker.NewWorkerPool(context.Background(), p, proc.threads, proc.seq, proc.postReply)
	if err := pool.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize worker pool: %w", err)
	}
	proc.pool = pool

	go func() {
		proc.seq.Run()
		proc.release()
	}()
	proc.log.Debug("Processor started",
		"granularity", p.Granularity().String(),
		"workers", pool.Size(),
		"inProcess", pool.InProcess(),
		"queueLimit", proc.queueLimit)
	return proc, nil
}

// Process queues a job and returns immediately. cb fires once: with the output,
// with a nil output and nil error when the job was dropped from a full queue, or
// never if Destroy comes first. An error return means the job was not queued.
func (p *Processor) Process(inputs []*models.Image, meta any, cb models.Callback) error {
	if p.destroyed.Load() {
		return ErrDestroyed
	}
	if err := validateInputs(inputs); err != nil {
		return err
	}
	if cb == nil {
		cb = func(error, *models.Image, any) {}
	}

	job := models.NewJob(inputs, meta, cb)
	posted := p.seq.PostTask(func() {
		p.enqueue(job)
		p.dispatch()
	})
	if !posted {
		return ErrDestroyed
	}
	return nil
}

// ProcessWait runs Process and blocks for its result. ctx only bounds the wait.
func (p *Processor) ProcessWait(ctx context.Context, inputs []*models.Image, meta any) (*models.Image, any, error) {
	type result struct {
		output *models.Image
		meta   any
		err    error
	}
	ch := make(chan result, 1)
	err := p.Process(inputs, meta, func(err error, output *models.Image, meta any) {
		if err == nil && output == nil {
			err = ErrDropped
		}
		ch <- result{output: output, meta: meta, err: err}
	})
	if err != nil {
		return nil, nil, err
	}

	select {
	case r := <-ch:
		return r.output, r.meta, r.err
	case <-p.seq.Done():
		return nil, nil, ErrDestroyed
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}
}

// Destroy is terminal and idempotent. Replies arriving later are discarded, queued
// jobs are never resolved and no callback starts after it returns. A callback that
// started before may still be running. Destroy may be called from a callback.
func (p *Processor) Destroy() {
	p.destroyOnce.Do(func() {
		if p.inCallback.Load() {
			// Either called from the running callback, or racing one that has
			// already started. Waiting would deadlock the former.
			p.destroyed.Store(true)
		} else {
			p.admitMu.Lock()
			p.destroyed.Store(true)
			p.admitMu.Unlock()
		}
		p.seq.Stop()
		p.log.Debug("Processor destroyed")
		// a stage still computing cannot be interrupted; let it finish off the caller's path
		go p.pool.Stop()
	})
}

// release runs on the sequence goroutine once Run has returned, so it still owns
// the dispatcher state.
func (p *Processor) release() {
	abandoned := p.queue.Drain()
	if p.job != nil {
		abandoned = append(abandoned, p.job)
	}
	p.job, p.replies, p.segments = nil, nil, nil
	if len(abandoned) > 0 {
		p.log.Debug("Abandoned unresolved jobs", "count", len(abandoned))
	}
}

func (p *Processor) Destroyed() bool {
	return p.destroyed.Load()
}

// Workers reports the pool size.
func (p *Processor) Workers() int {
	return p.pool.Size()
}

func (p *Processor) Stats() Stats {
	return Stats{
		Processed: p.processed.Load(),
		Dropped:   p.dropped.Load(),
		Failed:    p.failed.Load(),
	}
}

func validateInputs(inputs []*models.Image) error {
	if len(inputs) == 0 {
		return fmt.Errorf("%w: no input images", ErrInvalidInput)
	}
	first := inputs[0]
	for i, in := range inputs {
		if err := in.Validate(); err != nil {
			return fmt.Errorf("%w: input %d: %w", ErrInvalidInput, i, err)
		}
		if in.Width != first.Width || in.Height != first.Height {
			return fmt.Errorf("%w: input %d is %dx%d, want %dx%d",
				ErrInvalidInput, i, in.Width, in.Height, first.Width, first.Height)
		}
	}
	return nil
}
