package queue

import (
	"context"
	"errors"
	"sync"

	"github.com/Sh4yy/FeedStream/service/logger"
	"github.com/segmentio/ksuid"
	"github.com/sirupsen/logrus"
)

// ErrQueueClosed is returned when a job is submitted after shutdown began
var ErrQueueClosed = errors.New("queue is closed")

// Job holds a unit of work to perform during queue execution
type Job struct {
	ID     string
	Name   string
	Action func(ctx context.Context) error
}

// Queue is a FIFO job queue drained by a fixed set of workers. It is the
// only writer to the stores and caches; reads never pass through it.
type Queue struct {
	jobs    chan Job
	workers int

	mu     sync.RWMutex
	closed bool

	running sync.WaitGroup
	pending sync.WaitGroup
}

// New instantiates a new queue. Workers are not started until Start is
// called, so jobs submitted before then only accumulate.
func New(workers, buffer int) *Queue {
	if workers < 1 {
		workers = 1
	}
	return &Queue{
		jobs:    make(chan Job, buffer),
		workers: workers,
	}
}

// Start spawns the configured number of workers and returns the count
func (q *Queue) Start() int {
	for i := 0; i < q.workers; i++ {
		q.running.Add(1)
		go q.work(i)
	}
	return q.workers
}

// Submit enqueues a job and returns once it is queued, not once it ran.
// It blocks while the queue is at capacity.
func (q *Queue) Submit(ctx context.Context, name string, action func(ctx context.Context) error) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}

	q.pending.Add(1)
	q.jobs <- Job{ID: ksuid.New().String(), Name: name, Action: action}
	return nil
}

// Wait blocks until every job submitted so far has finished executing
func (q *Queue) Wait() {
	q.pending.Wait()
}

// StopWait closes the queue, lets in-flight jobs complete, drains what is
// left and waits for the workers to exit.
func (q *Queue) StopWait() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.jobs)
	q.mu.Unlock()

	q.running.Wait()
}

func (q *Queue) work(worker int) {
	defer q.running.Done()
	for job := range q.jobs {
		q.run(worker, job)
	}
}

// run executes a single job. A failed job is logged and dropped; it is not
// retried and must not take the worker down with it.
func (q *Queue) run(worker int, job Job) {
	defer q.pending.Done()

	ctx := logger.NewContextWithFields(context.Background(), logrus.Fields{
		"jobID":   job.ID,
		"jobName": job.Name,
		"worker":  worker,
	})

	defer func() {
		if r := recover(); r != nil {
			logger.For(ctx).Errorf("job panicked: %v", r)
		}
	}()

	if err := job.Action(ctx); err != nil {
		logger.For(ctx).WithError(err).Error("job failed")
	}
}
