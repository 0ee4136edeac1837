package queue

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/common"
	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/interfaces"
	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/models"
)

// WorkerPool claims pending jobs and runs their stage handlers. Each worker
// is a poll loop; a handler failure or panic fails the job, never the loop.
type WorkerPool struct {
	jobs     interfaces.JobStorage
	videos   interfaces.VideoStorage
	events   interfaces.EventService
	registry *CancelRegistry
	handlers map[models.JobType]interfaces.StageHandler
	config   *common.WorkersConfig
	logger   arbor.ILogger
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewWorkerPool creates the worker pool
func NewWorkerPool(
	jobs interfaces.JobStorage,
	videos interfaces.VideoStorage,
	events interfaces.EventService,
	registry *CancelRegistry,
	config *common.WorkersConfig,
	logger arbor.ILogger,
) *WorkerPool {
	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerPool{
		jobs:     jobs,
		videos:   videos,
		events:   events,
		registry: registry,
		handlers: make(map[models.JobType]interfaces.StageHandler),
		config:   config,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// RegisterHandler registers a stage handler for its job type
func (wp *WorkerPool) RegisterHandler(handler interfaces.StageHandler) {
	wp.handlers[handler.Type()] = handler
	wp.logger.Debug().Str("job_type", string(handler.Type())).Msg("Stage handler registered")
}

// Start launches the worker goroutines
func (wp *WorkerPool) Start() {
	concurrency := wp.config.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	wp.logger.Info().Int("concurrency", concurrency).Msg("Starting worker pool")

	for i := 0; i < concurrency; i++ {
		wp.wg.Add(1)
		go wp.worker(i, concurrency)
	}
}

// Stop stops the poll loops and blocks until every worker goroutine has
// returned. In-flight handlers observe the pool context through their job
// context and wind down at the next checkpoint, so callers may close shared
// resources once Stop returns.
func (wp *WorkerPool) Stop() {
	wp.logger.Info().Msg("Stopping worker pool")
	wp.cancel()
	wp.wg.Wait()
}

func (wp *WorkerPool) worker(workerID, concurrency int) {
	defer wp.wg.Done()

	// Stagger worker starts to reduce database lock contention
	pollInterval := wp.config.PollIntervalDuration()
	staggerDelay := (pollInterval / time.Duration(concurrency)) * time.Duration(workerID)
	if staggerDelay > 0 {
		time.Sleep(staggerDelay)
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-wp.ctx.Done():
			wp.logger.Debug().Int("worker_id", workerID).Msg("Worker stopped")
			return
		case <-ticker.C:
			if err := wp.pollOnce(workerID); err != nil {
				// SQLITE_BUSY is expected under write contention; the claim
				// simply retries on the next tick.
				if !strings.Contains(err.Error(), "database is locked") &&
					!strings.Contains(err.Error(), "SQLITE_BUSY") {
					wp.logger.Warn().Err(err).Int("worker_id", workerID).Msg("Worker poll failed")
				}
			}
		}
	}
}

func (wp *WorkerPool) pollOnce(workerID int) error {
	job, err := wp.jobs.ClaimNext(wp.ctx, wp.claimableTypes())
	if err != nil {
		return err
	}
	if job == nil {
		return nil
	}

	wp.logger.Info().
		Str("job_id", job.ID).
		Str("job_type", string(job.Type)).
		Str("video_id", job.VideoID).
		Int("worker_id", workerID).
		Msg("Job claimed")
	wp.events.Publish(wp.ctx, interfaces.Event{Type: interfaces.EventJobClaimed, Payload: job})

	wp.execute(job)
	return nil
}

func (wp *WorkerPool) claimableTypes() []models.JobType {
	types := make([]models.JobType, 0, len(wp.handlers))
	for t := range wp.handlers {
		types = append(types, t)
	}
	return types
}

// execute runs one claimed job to a terminal state
func (wp *WorkerPool) execute(job *models.Job) {
	handler, ok := wp.handlers[job.Type]
	if !ok {
		wp.failJob(job, models.ErrCodeInternal, fmt.Sprintf("no handler for job type %s", job.Type))
		return
	}

	// A job crossing the cancel read in Manager.Cancel may already carry
	// the durable flag from a previous run.
	if job.CancelRequested {
		wp.registry.Request(job.ID)
	}

	wp.setVideoStatus(job.VideoID, models.VideoStatusProcessing)

	reporter := &storeReporter{pool: wp, job: job}
	result, err := wp.runProtected(handler, job, reporter)

	switch {
	case err == nil:
		raw, marshalErr := models.MarshalResult(result)
		if marshalErr != nil {
			wp.failJob(job, models.ErrCodeInternal, marshalErr.Error())
			return
		}
		if completeErr := wp.jobs.CompleteJob(wp.ctx, job.ID, raw); completeErr != nil {
			wp.logger.Error().Err(completeErr).Str("job_id", job.ID).Msg("Failed to record job completion")
			return
		}
		wp.registry.Clear(job.ID)
		wp.setVideoStatus(job.VideoID, models.VideoStatusComplete)
		wp.publishTerminal(interfaces.EventJobCompleted, job.ID)
		wp.logger.Info().Str("job_id", job.ID).Str("job_type", string(job.Type)).Msg("Job completed")

	case models.IsCode(err, models.ErrCodeCancelled):
		if cancelErr := wp.jobs.MarkCancelled(wp.ctx, job.ID); cancelErr != nil {
			wp.logger.Error().Err(cancelErr).Str("job_id", job.ID).Msg("Failed to record job cancellation")
		}
		wp.registry.Clear(job.ID)
		wp.publishTerminal(interfaces.EventJobCancelled, job.ID)
		wp.logger.Info().Str("job_id", job.ID).Msg("Job cancelled at checkpoint")

	default:
		code := models.CodeOf(err)
		wp.failJob(job, code, err.Error())
		wp.setVideoStatus(job.VideoID, models.VideoStatusError)
	}
}

// runProtected executes the handler, converting a panic into an error so one
// bad job cannot take down the worker.
func (wp *WorkerPool) runProtected(handler interfaces.StageHandler, job *models.Job, reporter interfaces.ProgressReporter) (result interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			wp.logger.Error().
				Str("job_id", job.ID).
				Str("panic", fmt.Sprint(r)).
				Str("stack", string(debug.Stack())).
				Msg("Stage handler panicked")
			err = models.NewAppError(models.ErrCodeInternal, "stage handler panicked: %v", r)
		}
	}()
	return handler.Execute(wp.ctx, job, reporter)
}

func (wp *WorkerPool) failJob(job *models.Job, code models.ErrorCode, message string) {
	if err := wp.jobs.FailJob(wp.ctx, job.ID, code, message); err != nil {
		wp.logger.Error().Err(err).Str("job_id", job.ID).Msg("Failed to record job failure")
		return
	}
	wp.registry.Clear(job.ID)
	wp.publishTerminal(interfaces.EventJobFailed, job.ID)
	wp.logger.Warn().
		Str("job_id", job.ID).
		Str("error_code", string(code)).
		Str("error", message).
		Msg("Job failed")
}

func (wp *WorkerPool) publishTerminal(eventType interfaces.EventType, jobID string) {
	job, err := wp.jobs.GetJob(wp.ctx, jobID)
	if err != nil {
		return
	}
	wp.events.Publish(wp.ctx, interfaces.Event{Type: eventType, Payload: job})
}

func (wp *WorkerPool) setVideoStatus(videoID string, status models.VideoStatus) {
	if err := wp.videos.SetVideoStatus(wp.ctx, videoID, status); err != nil {
		wp.logger.Warn().Err(err).Str("video_id", videoID).Msg("Failed to update video status")
	}
}

// storeReporter writes progress through the job store and surfaces the
// cancel markers. Handlers call it only at checkpoint boundaries.
type storeReporter struct {
	pool *WorkerPool
	job  *models.Job
}

func (r *storeReporter) Report(ctx context.Context, progress float64, message string) error {
	if err := r.pool.jobs.UpdateProgress(ctx, r.job.ID, progress, message); err != nil {
		return err
	}
	if job, err := r.pool.jobs.GetJob(ctx, r.job.ID); err == nil {
		r.pool.events.Publish(ctx, interfaces.Event{Type: interfaces.EventJobProgress, Payload: job})
	}
	return nil
}

func (r *storeReporter) Cancelled(ctx context.Context) bool {
	if r.pool.registry.Requested(r.job.ID) {
		return true
	}
	// The registry misses requests recorded by a previous process; the
	// durable column does not.
	job, err := r.pool.jobs.GetJob(ctx, r.job.ID)
	if err != nil {
		return false
	}
	return job.CancelRequested
}
