package worker

import (
	"context"
	"log/slog"
	"sync"

	"go-pixel-worker/internal/minion"
	"go-pixel-worker/internal/pipeline"
)

type WorkerPoolService interface {
	Init() error
	Size() int
	Worker(i int) WorkerService
	Stop()
}

type WorkerPool struct {
	workers       []WorkerService
	runners       []*Worker
	ctx           context.Context
	wg            sync.WaitGroup // tracks running worker goroutines so Stop can wait for them
	cancelWorkers context.CancelFunc
	inProcess     bool
}

// NewWorkerPool sizes the pool from threads: 0 gives one in-process worker posting
// to seq, image pipelines always get a single worker, anything else gets
// max(threads, 1) goroutine workers.
func NewWorkerPool(ctx context.Context, p *pipeline.Pipeline, threads int, seq TaskPoster, onReply ReplyFunc) *WorkerPool {
	workerCtx, cancel := context.WithCancel(ctx)
	pool := &WorkerPool{
		ctx:           ctx,
		wg:            sync.WaitGroup{},
		cancelWorkers: cancel,
	}

	if threads == 0 {
		pool.inProcess = true
		pool.workers = []WorkerService{NewFauxWorker(minion.New(p), seq, onReply)}
		return pool
	}

	workerCount := max(threads, 1)
	if p.ImageOps() {
		workerCount = 1
	}
	pool.workers = make([]WorkerService, workerCount)
	pool.runners = make([]*Worker, workerCount)
	for i := 0; i < workerCount; i++ {
		w := NewWorker(workerCtx, i, minion.New(p), onReply)
		pool.workers[i] = w
		pool.runners[i] = w
	}
	return pool
}

func (wp *WorkerPool) Init() error {
	exitWorker := func() {
		wp.wg.Done()
	}
	for _, worker := range wp.runners {
		wp.wg.Add(1)
		go worker.Run(exitWorker)
	}
	slog.Debug("Worker pool started", "size", len(wp.workers), "inProcess", wp.inProcess)
	return nil
}

func (wp *WorkerPool) Size() int {
	return len(wp.workers)
}

func (wp *WorkerPool) Worker(i int) WorkerService {
	return wp.workers[i]
}

func (wp *WorkerPool) InProcess() bool {
	return wp.inProcess
}

// Stop cancels every worker and waits for a computation in progress to finish.
func (wp *WorkerPool) Stop() {
	slog.Debug("Stopping worker pool...")
	wp.cancelWorkers()
	slog.Debug("Waiting for workers to finish current job...")
	wp.wg.Wait()
	slog.Debug("Worker pool stop completed")
}
