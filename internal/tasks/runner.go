// Package tasks provides the fire-and-forget background runner used for
// post-response file work: moving committed pages into place, deleting
// orphaned blob files, and tearing down scratch directories. Tasks have
// no retry policy; failures are logged for operator follow-up and never
// surfaced to the request that scheduled them.
package tasks

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// Task is a named unit of background work
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Runner drains a queue of tasks with a fixed pool of workers
type Runner struct {
	queue chan Task
	wg    sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewRunner starts a runner with the given worker count and queue depth
func NewRunner(workers, depth int) *Runner {
	if workers < 1 {
		workers = 1
	}
	if depth < 1 {
		depth = 64
	}

	r := &Runner{queue: make(chan Task, depth)}
	r.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go r.work()
	}

	log.Info().Int("workers", workers).Msg("background task runner started")
	return r
}

func (r *Runner) work() {
	defer r.wg.Done()
	for task := range r.queue {
		if err := task.Run(context.Background()); err != nil {
			log.Error().Err(err).Str("task", task.Name).Msg("background task failed")
			continue
		}
		log.Debug().Str("task", task.Name).Msg("background task completed")
	}
}

// Enqueue schedules a task. It blocks if the queue is full so requests
// apply backpressure rather than dropping cleanup work. Enqueueing on a
// closed runner runs the task inline.
func (r *Runner) Enqueue(name string, fn func(ctx context.Context) error) {
	r.mu.Lock()
	closed := r.closed
	if !closed {
		r.queue <- Task{Name: name, Run: fn}
	}
	r.mu.Unlock()

	if closed {
		if err := fn(context.Background()); err != nil {
			log.Error().Err(err).Str("task", name).Msg("background task failed")
		}
	}
}

// Close stops accepting tasks and waits for queued work to drain
func (r *Runner) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	r.wg.Wait()
	log.Info().Msg("background task runner drained")
}
