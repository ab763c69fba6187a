package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dvloznov/ceap-risk/internal/jobs"
	"github.com/dvloznov/ceap-risk/internal/logger"
	"github.com/dvloznov/ceap-risk/internal/metrics"
	"github.com/google/uuid"
)

const defaultMaxRetries = 2

// Queue is an in-memory implementation of job publisher and consumer.
// It uses Go channels for job distribution and is safe for concurrent use.
// Jobs are lost on restart.
type Queue struct {
	jobChan   chan *jobs.ScoringJob
	closeChan chan struct{}
	wg        sync.WaitGroup
	mu        sync.RWMutex
	store     jobs.JobStore
	workers   int
	closed    bool

	// Backoff returns the delay before retry n (1-based).
	Backoff func(retry int) time.Duration
	// Now is the clock used for job timestamps.
	Now func() time.Time
}

// NewQueue creates a new in-memory job queue.
// bufferSize determines how many jobs can be queued before PublishScoring
// blocks; workers is the number of jobs processed concurrently.
func NewQueue(bufferSize, workers int, store jobs.JobStore) *Queue {
	if workers < 1 {
		workers = 1
	}
	return &Queue{
		jobChan:   make(chan *jobs.ScoringJob, bufferSize),
		closeChan: make(chan struct{}),
		store:     store,
		workers:   workers,
		Backoff:   func(retry int) time.Duration { return time.Duration(retry) * 5 * time.Second },
		Now:       func() time.Time { return time.Now().UTC() },
	}
}

// PublishScoring implements the Publisher interface.
func (q *Queue) PublishScoring(ctx context.Context, job *jobs.ScoringJob) error {
	if job.JobID == "" {
		job.JobID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = jobs.JobStatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = q.Now()
	}
	if job.MaxRetries == 0 {
		job.MaxRetries = defaultMaxRetries
	}
	return q.enqueue(ctx, job)
}

func (q *Queue) enqueue(ctx context.Context, job *jobs.ScoringJob) error {
	q.mu.RLock()
	closed := q.closed
	q.mu.RUnlock()
	if closed {
		return jobs.ErrQueueClosed
	}

	if q.store != nil {
		if err := q.store.SaveJob(ctx, job); err != nil {
			return fmt.Errorf("PublishScoring: save job: %w", err)
		}
	}

	select {
	case q.jobChan <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closeChan:
		return jobs.ErrQueueClosed
	}
}

// Start implements the Consumer interface. It returns immediately; workers
// run until ctx is cancelled or the queue is stopped.
func (q *Queue) Start(ctx context.Context, handler jobs.JobHandler) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return jobs.ErrQueueClosed
	}

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, handler)
	}
	return nil
}

func (q *Queue) worker(ctx context.Context, handler jobs.JobHandler) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closeChan:
			return
		case job := <-q.jobChan:
			if job == nil {
				return
			}
			q.processJob(ctx, job, handler)
		}
	}
}

// processJob executes a single attempt and schedules a retry on failure.
func (q *Queue) processJob(ctx context.Context, job *jobs.ScoringJob, handler jobs.JobHandler) {
	log := logger.FromContext(ctx).With().Str(logger.FieldJobID, job.JobID).Logger()

	job.Status = jobs.JobStatusRunning
	startedAt := q.Now()
	job.StartedAt = &startedAt
	job.CompletedAt = nil
	q.save(ctx, job)

	metrics.JobsInFlight.Inc()
	err := handler(ctx, job)
	metrics.JobsInFlight.Dec()

	completedAt := q.Now()
	job.CompletedAt = &completedAt

	switch {
	case err == nil:
		job.Status = jobs.JobStatusCompleted
		job.Error = ""
		log.Info().Str(logger.FieldRunID, job.RunID).Msg("Scoring job completed")
	case jobs.IsPermanent(err) || job.RetryCount >= job.MaxRetries || ctx.Err() != nil:
		job.Status = jobs.JobStatusFailed
		job.Error = err.Error()
		log.Error().Err(err).Int("retries", job.RetryCount).Msg("Scoring job failed")
	default:
		job.Status = jobs.JobStatusRetrying
		job.Error = err.Error()
		job.RetryCount++
		backoff := q.Backoff(job.RetryCount)
		log.Warn().Err(err).Int("retry", job.RetryCount).Dur("backoff", backoff).Msg("Scoring job will be retried")

		retry := *job
		retry.Status = jobs.JobStatusPending
		q.save(ctx, job)
		time.AfterFunc(backoff, func() {
			if err := q.enqueue(context.WithoutCancel(ctx), &retry); err != nil {
				log.Error().Err(err).Msg("Failed to re-enqueue scoring job")
				retry.Status = jobs.JobStatusFailed
				q.save(ctx, &retry)
			}
		})
		return
	}
	q.save(ctx, job)
}

func (q *Queue) save(ctx context.Context, job *jobs.ScoringJob) {
	if q.store == nil {
		return
	}
	if err := q.store.SaveJob(context.WithoutCancel(ctx), job); err != nil {
		log := logger.FromContext(ctx)
		log.Error().Err(err).Str(logger.FieldJobID, job.JobID).Msg("Failed to save job state")
	}
}

// Stop implements the Consumer interface.
// It stops the queue and waits for all in-flight jobs to complete.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.closeChan)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close implements the Publisher interface.
func (q *Queue) Close() error {
	return q.Stop(context.Background())
}

var _ jobs.Publisher = (*Queue)(nil)
var _ jobs.Consumer = (*Queue)(nil)
