package worker

import (
	"sync"
)

// TaskPoster accepts closures to run later on its own goroutine.
type TaskPoster interface {
	PostTask(task func()) bool
}

// Sequence runs posted tasks one at a time, in posting order, on the goroutine
// that calls Run. State touched only from tasks needs no locking.
type Sequence struct {
	mu       sync.Mutex
	tasks    []func()
	wake     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func NewSequence() *Sequence {
	return &Sequence{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// PostTask never blocks. It returns false once the sequence is stopped.
func (s *Sequence) PostTask(task func()) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	s.mu.Lock()
	s.tasks = append(s.tasks, task)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return true
}

func (s *Sequence) Run() {
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
		}
		for {
			select {
			case <-s.done:
				return
			default:
			}
			task := s.next()
			if task == nil {
				break
			}
			task()
		}
	}
}

// Stop drops pending tasks. A task already running finishes.
func (s *Sequence) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		s.mu.Lock()
		s.tasks = nil
		s.mu.Unlock()
	})
}

func (s *Sequence) Done() <-chan struct{} {
	return s.done
}

func (s *Sequence) next() func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.tasks) == 0 {
		return nil
	}
	task := s.tasks[0]
	s.tasks[0] = nil
	s.tasks = s.tasks[1:]
	return task
}
