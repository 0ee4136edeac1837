package queue

import (
	"context"
	"encoding/json"

	"github.com/ternarybob/arbor"

	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/interfaces"
	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/models"
)

// Manager is the job lifecycle front door: enqueue, dedup, cancel, retry.
// All durable state lives in the job store; the manager adds the lifecycle
// guards and the event/cancel plumbing around it.
type Manager struct {
	jobs     interfaces.JobStorage
	videos   interfaces.VideoStorage
	events   interfaces.EventService
	registry *CancelRegistry
	logger   arbor.ILogger
}

// NewManager creates the job manager
func NewManager(
	jobs interfaces.JobStorage,
	videos interfaces.VideoStorage,
	events interfaces.EventService,
	registry *CancelRegistry,
	logger arbor.ILogger,
) *Manager {
	return &Manager{
		jobs:     jobs,
		videos:   videos,
		events:   events,
		registry: registry,
		logger:   logger,
	}
}

// Registry exposes the cancel registry to the worker pool
func (m *Manager) Registry() *CancelRegistry {
	return m.registry
}

// CreateJob validates params and enqueues a pending job for the video.
// Index jobs are deduplicated: while a pending/running index job exists for
// the video, further requests return its id instead of queueing another
// identical pass.
func (m *Manager) CreateJob(ctx context.Context, videoID string, jobType models.JobType, params models.JobParams) (*models.Job, bool, error) {
	if !models.IsValidJobType(jobType) {
		return nil, false, models.NewAppError(models.ErrCodeValidation, "unknown job type: %s", jobType)
	}
	if _, err := m.videos.GetVideo(ctx, videoID); err != nil {
		return nil, false, err
	}

	if params == nil {
		defaults, err := models.DecodeParams(jobType, nil)
		if err != nil {
			return nil, false, err
		}
		params = defaults
	}
	if err := models.ValidateParams(jobType, params); err != nil {
		return nil, false, err
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, false, models.WrapError(models.ErrCodeInternal, err, "marshal job params")
	}

	if jobType == models.JobTypeIndex {
		jobID, created, err := m.jobs.EnsureActiveJob(ctx, videoID, jobType, raw)
		if err != nil {
			return nil, false, err
		}
		job, err := m.jobs.GetJob(ctx, jobID)
		if err != nil {
			return nil, false, err
		}
		if created {
			m.events.Publish(ctx, interfaces.Event{Type: interfaces.EventJobCreated, Payload: job})
		} else {
			m.logger.Debug().Str("job_id", jobID).Str("video_id", videoID).Msg("Index request coalesced onto active job")
		}
		return job, created, nil
	}

	job, err := models.NewJob(videoID, jobType, params)
	if err != nil {
		return nil, false, err
	}
	if err := m.jobs.CreateJob(ctx, job); err != nil {
		return nil, false, err
	}

	m.events.Publish(ctx, interfaces.Event{Type: interfaces.EventJobCreated, Payload: job})
	m.logger.Info().
		Str("job_id", job.ID).
		Str("video_id", videoID).
		Str("job_type", string(jobType)).
		Msg("Job created")
	return job, true, nil
}

// GetJob returns one job
func (m *Manager) GetJob(ctx context.Context, jobID string) (*models.Job, error) {
	return m.jobs.GetJob(ctx, jobID)
}

// ListJobs returns a filtered page of jobs plus the total count
func (m *Manager) ListJobs(ctx context.Context, opts *interfaces.JobListOptions) ([]*models.Job, int, error) {
	return m.jobs.ListJobs(ctx, opts)
}

// Cancel requests cancellation. A pending job flips to cancelled
// immediately; a running job gets a cancel marker its worker observes at the
// next checkpoint. Terminal jobs are not cancellable.
func (m *Manager) Cancel(ctx context.Context, jobID string) (*models.Job, error) {
	job, err := m.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	switch job.Status {
	case models.JobStatusPending:
		if err := m.jobs.MarkCancelled(ctx, jobID); err != nil {
			return nil, err
		}
	case models.JobStatusRunning:
		m.registry.Request(jobID)
		if err := m.jobs.RequestCancel(ctx, jobID); err != nil {
			// The worker may have finished between the read and the flag
			// write; report the real state.
			if models.IsCode(err, models.ErrCodeInvalidState) {
				return nil, models.NewAppError(models.ErrCodeJobNotCancellable,
					"job %s already finished", jobID)
			}
			return nil, err
		}
	default:
		return nil, models.NewAppError(models.ErrCodeJobNotCancellable,
			"job %s is %s and cannot be cancelled", jobID, job.Status)
	}

	updated, err := m.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	m.events.Publish(ctx, interfaces.Event{Type: interfaces.EventJobCancelled, Payload: updated})
	m.logger.Info().Str("job_id", jobID).Str("status", string(updated.Status)).Msg("Job cancellation requested")
	return updated, nil
}

// Retry resets a failed or cancelled job to pending. With fromScratch false
// the job resumes from its last persisted checkpoint; with true the stage
// discards prior partial work and starts over.
func (m *Manager) Retry(ctx context.Context, jobID string, fromScratch bool) (*models.Job, error) {
	job, err := m.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != models.JobStatusFailed && job.Status != models.JobStatusCancelled {
		return nil, models.NewAppError(models.ErrCodeJobNotRetriable,
			"job %s is %s; only failed or cancelled jobs can be retried", jobID, job.Status)
	}

	params, err := job.DecodeParams()
	if err != nil {
		return nil, err
	}
	setFromScratch(params, fromScratch)
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, models.WrapError(models.ErrCodeInternal, err, "marshal job params")
	}

	if err := m.jobs.RetryJob(ctx, jobID, raw); err != nil {
		return nil, err
	}
	m.registry.Clear(jobID)

	updated, err := m.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	m.events.Publish(ctx, interfaces.Event{Type: interfaces.EventJobCreated, Payload: updated})
	m.logger.Info().Str("job_id", jobID).Bool("from_scratch", fromScratch).Msg("Job queued for retry")
	return updated, nil
}

// setFromScratch flips the per-type resume flag. Keyframe jobs have no
// incremental checkpoint, so the flag is a no-op there.
func setFromScratch(params models.JobParams, fromScratch bool) {
	switch p := params.(type) {
	case *models.TranscribeParams:
		p.FromScratch = fromScratch
	case *models.IndexParams:
		p.FromScratch = fromScratch
	case *models.SummarizeParams:
		p.FromScratch = fromScratch
	}
}

// RecoverOrphans resets running jobs left behind by a previous process.
// Must run before the worker pool starts.
func (m *Manager) RecoverOrphans(ctx context.Context) (int, error) {
	return m.jobs.ResetRunningJobs(ctx)
}
