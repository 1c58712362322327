// Package scheduler runs delayed units of work on a fixed worker pool.
//
// A job carries only an immutable session id. Waiting is never a sleeping
// goroutine per timer: jobs sit in a queue ordered by due time and a
// single dispatcher hands them to workers as they come due, so the number
// of concurrent sessions is not bounded by the worker count. A job may
// re-schedule itself from inside a worker, which is how the completion
// poller chain advances.
package scheduler

import (
	"container/heap"
	"context"
	"sync"
	"time"
)

// JobFunc executes one unit of scheduled work for a session id.
type JobFunc func(ctx context.Context, sessionID string)

// Config controls scheduler behavior.
type Config struct {
	// Workers sets the worker pool size.
	Workers int
}

const defaultWorkers = 4

func (c Config) normalized() Config {
	if c.Workers <= 0 {
		c.Workers = defaultWorkers
	}
	return c
}

type job struct {
	sessionID string
	due       time.Time
}

type jobQueue []job

func (q jobQueue) Len() int           { return len(q) }
func (q jobQueue) Less(i, j int) bool { return q[i].due.Before(q[j].due) }
func (q jobQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }
func (q *jobQueue) Push(x any)        { *q = append(*q, x.(job)) }
func (q *jobQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// Scheduler dispatches delayed jobs to a worker pool.
type Scheduler struct {
	run JobFunc
	cfg Config
	now func() time.Time

	mu    sync.Mutex
	queue jobQueue
	wake  chan struct{}
}

// New creates a scheduler that executes run for each due job.
func New(run JobFunc, cfg Config) *Scheduler {
	return &Scheduler{
		run:  run,
		cfg:  cfg.normalized(),
		now:  time.Now,
		wake: make(chan struct{}, 1),
	}
}

// Schedule enqueues a check for the session id after delay. It is safe to
// call concurrently and from inside a running job.
func (s *Scheduler) Schedule(sessionID string, delay time.Duration) {
	if sessionID == "" {
		return
	}
	if delay < 0 {
		delay = 0
	}
	s.mu.Lock()
	heap.Push(&s.queue, job{sessionID: sessionID, due: s.now().Add(delay)})
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Pending reports how many jobs are queued but not yet dispatched.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Len()
}

// Run dispatches jobs until ctx is canceled. It blocks and always returns
// ctx's error after the worker pool drains.
func (s *Scheduler) Run(ctx context.Context) error {
	ready := make(chan string)

	var workers sync.WaitGroup
	for i := 0; i < s.cfg.Workers; i++ {
		workers.Add(1)
		go func() {
			defer workers.Done()
			for sessionID := range ready {
				s.run(ctx, sessionID)
			}
		}()
	}

	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

dispatch:
	for {
		s.mu.Lock()
		var next job
		hasNext := s.queue.Len() > 0
		if hasNext {
			next = s.queue[0]
		}
		s.mu.Unlock()

		if !hasNext {
			select {
			case <-ctx.Done():
				break dispatch
			case <-s.wake:
			}
			continue
		}

		wait := next.due.Sub(s.now())
		if wait > 0 {
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(wait)
			select {
			case <-ctx.Done():
				break dispatch
			case <-s.wake:
				// An earlier job may have been scheduled; re-evaluate.
				continue
			case <-timer.C:
			}
		}

		s.mu.Lock()
		var due []string
		now := s.now()
		for s.queue.Len() > 0 && !s.queue[0].due.After(now) {
			due = append(due, heap.Pop(&s.queue).(job).sessionID)
		}
		s.mu.Unlock()

		for _, sessionID := range due {
			select {
			case <-ctx.Done():
				break dispatch
			case ready <- sessionID:
			}
		}
	}

	close(ready)
	workers.Wait()
	return ctx.Err()
}
