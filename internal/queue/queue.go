package queue

import (
	"fmt"

	"go-pixel-worker/internal/models"
)

type QueueService interface {
	Push(job *models.Job) []*models.Job
	Pop() *models.Job
	Len() int
	Drain() []*models.Job
}

// JobQueue is a FIFO of pending jobs. When limit is positive, pushing past it
// evicts from the head.
type JobQueue struct {
	jobs  []*models.Job
	limit int // 0 means unbounded
}

func NewQueue(limit int) (*JobQueue, error) {
	if limit < 0 {
		return nil, fmt.Errorf("queue limit cannot be negative: %d", limit)
	}
	return &JobQueue{limit: limit}, nil
}

// Push appends job and returns the jobs evicted to get back under the limit, oldest
// first.
func (q *JobQueue) Push(job *models.Job) []*models.Job {
	q.jobs = append(q.jobs, job)
	if q.limit == 0 || len(q.jobs) <= q.limit {
		return nil
	}
	n := len(q.jobs) - q.limit
	evicted := make([]*models.Job, n)
	copy(evicted, q.jobs[:n])
	clear(q.jobs[:n])
	q.jobs = q.jobs[n:]
	return evicted
}

func (q *JobQueue) Pop() *models.Job {
	if len(q.jobs) == 0 {
		return nil
	}
	job := q.jobs[0]
	q.jobs[0] = nil
	q.jobs = q.jobs[1:]
	return job
}

func (q *JobQueue) Len() int {
	return len(q.jobs)
}

// Drain empties the queue and returns what it held.
func (q *JobQueue) Drain() []*models.Job {
	jobs := q.jobs
	q.jobs = nil
	return jobs
}
