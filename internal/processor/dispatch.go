package processor

import (
	"errors"
	"fmt"

	"go-pixel-worker/internal/models"
)

// postReply is called from worker goroutines; the reply is handled on the sequence.
func (p *Processor) postReply(r models.Reply) {
	p.seq.PostTask(func() {
		p.onReply(r)
	})
}

func (p *Processor) enqueue(job *models.Job) {
	for _, dropped := range p.queue.Push(job) {
		p.dropped.Add(1)
		p.log.Debug("Dropping job from full queue", "jobID", dropped.ID, "queueLimit", p.queueLimit)
		p.resolve(dropped, nil, nil, dropped.Meta)
	}
}

func (p *Processor) dispatch() {
	if p.destroyed.Load() || p.job != nil || p.queue.Len() == 0 {
		return
	}
	job := p.queue.Pop()
	threads := p.pool.Size()
	p.job = job
	p.running = threads
	p.replies = make(map[int]models.Reply, threads)

	buffers := make([][]byte, len(job.Inputs))
	for i, in := range job.Inputs {
		buffers[i] = in.Data
	}
	msg := models.Message{
		JobID:    job.ID,
		Meta:     job.Meta,
		ImageOps: p.pipeline.ImageOps(),
		Width:    job.Width(),
		Height:   job.Height(),
	}
	p.log.Debug("Dispatching job", "jobID", job.ID, "workers", threads, "bytes", job.Length(), "pending", p.queue.Len())

	if threads == 1 {
		msg.Buffers = buffers
		p.pool.Worker(0).Send(msg)
		return
	}

	p.segments = Segments(job.Length(), threads)
	for i, seg := range p.segments {
		slices := make([][]byte, len(buffers))
		for j, buf := range buffers {
			slices[j] = buf[seg.Offset:seg.End()]
		}
		segMsg := msg
		segMsg.Buffers = slices
		p.pool.Worker(i).Send(segMsg)
	}
}

func (p *Processor) onReply(r models.Reply) {
	if p.destroyed.Load() {
		return
	}
	if p.job == nil || r.JobID != p.job.ID {
		p.log.Warn("Ignoring stale reply", "jobID", r.JobID, "workerID", r.Worker)
		return
	}
	if _, seen := p.replies[r.Worker]; seen {
		p.log.Warn("Ignoring duplicate reply", "jobID", r.JobID, "workerID", r.Worker)
		return
	}
	p.replies[r.Worker] = r
	p.running--
	if p.running == 0 {
		p.resolveJob()
	}
}

func (p *Processor) resolveJob() {
	job := p.job
	threads := p.pool.Size()

	var (
		output *models.Image
		meta   any
		errs   []error
	)
	if threads == 1 {
		r := p.replies[0]
		meta = r.Meta
		if r.Err != nil {
			errs = append(errs, r.Err)
		} else {
			output = &models.Image{Width: job.Width(), Height: job.Height(), Data: r.Buffer}
		}
	} else {
		data := make([]byte, job.Length())
		metas := make([]any, threads)
		for i, seg := range p.segments {
			r := p.replies[i]
			metas[i] = r.Meta
			if r.Err != nil {
				errs = append(errs, r.Err)
				continue
			}
			copy(data[seg.Offset:seg.End()], r.Buffer)
		}
		meta = metas
		output = &models.Image{Width: job.Width(), Height: job.Height(), Data: data}
	}

	p.job = nil
	p.replies = nil
	p.segments = nil

	var err error
	if len(errs) > 0 {
		err = fmt.Errorf("job %s: %w", job.ID, errors.Join(errs...))
		output = nil
		p.failed.Add(1)
		p.log.Error("Job failed", "jobID", job.ID, "error", err)
	} else {
		p.processed.Add(1)
		p.log.Debug("Job resolved", "jobID", job.ID)
	}
	p.resolve(job, err, output, meta)
	p.dispatch()
}

// resolve runs the callback under admitMu, so once Destroy has returned no
// callback can start. inCallback lets a callback Destroy without deadlocking.
func (p *Processor) resolve(job *models.Job, err error, output *models.Image, meta any) {
	p.admitMu.Lock()
	defer p.admitMu.Unlock()
	if p.destroyed.Load() {
		return
	}
	p.inCallback.Store(true)
	defer p.inCallback.Store(false)
	job.Callback(err, output, meta)
}
