package ingest

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

// ErrQueueFull is returned when the ingestion queue cannot accept more
// work. Uploads should surface this to the user rather than block.
var ErrQueueFull = errors.New("ingestion queue is full")

// ErrQueueClosed is returned when enqueueing after shutdown has begun.
var ErrQueueClosed = errors.New("ingestion queue is closed")

// Queue runs ingestion on a bounded worker pool, detached from the request
// that triggered the upload. Callers observe progress by polling the
// document's status, not by waiting on the queue.
type Queue struct {
	jobs     chan Job
	pipeline *Pipeline
	log      zerolog.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewQueue starts the worker pool. workers bounds concurrent ingestions;
// buffer bounds accepted-but-unstarted jobs.
func NewQueue(pipeline *Pipeline, workers, buffer int, log zerolog.Logger) *Queue {
	if workers < 1 {
		workers = 1
	}
	if buffer < 0 {
		buffer = 0
	}

	q := &Queue{
		jobs:     make(chan Job, buffer),
		pipeline: pipeline,
		log:      log,
	}

	q.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go q.worker()
	}
	return q
}

// Enqueue hands a job to the pool without blocking. The document's status
// field records the outcome; Enqueue's error only reports admission.
func (q *Queue) Enqueue(job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting work and waits for in-flight ingestions to finish.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.jobs)
	q.mu.Unlock()

	q.wg.Wait()
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for job := range q.jobs {
		// Detached from the upload request: a client disconnect must not
		// cancel ingestion.
		if err := q.pipeline.Process(context.Background(), job); err != nil {
			q.log.Debug().
				Stringer("document_id", job.DocumentID).
				Err(err).
				Msg("ingestion job finished with error")
		}
	}
}
