// Package serial provides a single-goroutine FIFO execution context.
package serial

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned when work is submitted to a closed queue.
var ErrClosed = errors.New("serial queue closed")

// Queue runs submitted jobs one at a time, in submission order, on its own goroutine.
// Submit never blocks: the backlog is unbounded.
type Queue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	jobs   []func()
	closed bool
	done   chan struct{}
}

// New creates a queue and starts its worker goroutine.
func New() *Queue {
	q := &Queue{done: make(chan struct{})}
	q.cond = sync.NewCond(&q.mu)
	go q.loop()
	return q
}

// Submit enqueues job. It returns ErrClosed after Close.
func (q *Queue) Submit(job func()) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	q.jobs = append(q.jobs, job)
	q.cond.Signal()
	return nil
}

// Sync waits until every job submitted before the call has run.
func (q *Queue) Sync(ctx context.Context) error {
	reached := make(chan struct{})
	if err := q.Submit(func() { close(reached) }); err != nil {
		return err
	}
	select {
	case <-reached:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) backlog() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// Close stops accepting work, drains the backlog and waits for the worker to exit.
func (q *Queue) Close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		q.cond.Broadcast()
	}
	q.mu.Unlock()
	<-q.done
}

func (q *Queue) loop() {
	defer close(q.done)
	for {
		q.mu.Lock()
		for len(q.jobs) == 0 && !q.closed {
			q.cond.Wait()
		}
		if len(q.jobs) == 0 {
			q.mu.Unlock()
			return
		}
		job := q.jobs[0]
		q.jobs[0] = nil
		q.jobs = q.jobs[1:]
		q.mu.Unlock()
		job()
	}
}
