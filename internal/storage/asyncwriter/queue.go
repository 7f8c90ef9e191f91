// Package asyncwriter runs persistence jobs off the trading loop.
package asyncwriter

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

const defaultBuffer = 256

// Job is a single persistence write.
type Job func() error

type task struct {
	name string
	fn   Job
}

// Queue executes submitted jobs in order on one background goroutine.
type Queue struct {
	l *zap.Logger

	mu     sync.RWMutex
	closed bool
	tasks  chan task

	pending sync.WaitGroup
	done    chan struct{}
}

// New starts a queue with the given buffer size.
func New(l *zap.Logger, buffer int) *Queue {
	if buffer <= 0 {
		buffer = defaultBuffer
	}

	q := &Queue{
		l:     l,
		tasks: make(chan task, buffer),
		done:  make(chan struct{}),
	}
	go q.loop()

	return q
}

// Submit enqueues a job. After Close the job runs synchronously.
func (q *Queue) Submit(name string, fn Job) {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		q.run(task{name: name, fn: fn})
		return
	}

	q.pending.Add(1)
	q.tasks <- task{name: name, fn: fn}
	q.mu.RUnlock()
}

// Flush waits until every job submitted so far has run.
func (q *Queue) Flush(ctx context.Context) error {
	waited := make(chan struct{})
	go func() {
		q.pending.Wait()
		close(waited)
	}()

	select {
	case <-waited:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting background jobs and drains the queue.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.tasks)
	}
	q.mu.Unlock()

	select {
	case <-q.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) loop() {
	defer close(q.done)

	for t := range q.tasks {
		q.run(t)
		q.pending.Done()
	}
}

func (q *Queue) run(t task) {
	if err := t.fn(); err != nil {
		q.l.Error("async write failed", zap.String("job", t.name), zap.Error(err))
	}
}
