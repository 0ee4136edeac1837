package queue

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/common"
	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/interfaces"
	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/models"
)

// Hub derives progress notifications purely from the job store's updated_at
// watermark. Both styles of consumption re-poll the store; no delivery state
// survives a restart because none exists outside the store.
type Hub struct {
	jobs     interfaces.JobStorage
	interval time.Duration
	logger   arbor.ILogger
}

// NewHub creates the progress hub
func NewHub(jobs interfaces.JobStorage, config *common.WorkersConfig, logger arbor.ILogger) *Hub {
	return &Hub{
		jobs:     jobs,
		interval: config.HubIntervalDuration(),
		logger:   logger,
	}
}

// WaitForChange blocks until the job's updated_at advances past since, the
// context expires, or the job is already terminal. It always returns the
// freshest row it saw; a context expiry returns that row with the context
// error so callers can long-poll without losing state.
func (h *Hub) WaitForChange(ctx context.Context, jobID string, since time.Time) (*models.Job, error) {
	job, err := h.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.UpdatedAt.After(since) || job.IsTerminal() {
		return job, nil
	}

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return job, ctx.Err()
		case <-ticker.C:
			job, err = h.jobs.GetJob(ctx, jobID)
			if err != nil {
				return nil, err
			}
			if job.UpdatedAt.After(since) || job.IsTerminal() {
				return job, nil
			}
		}
	}
}

// Watch emits the job's current state and every subsequent change until the
// job reaches a terminal state or the context ends. The channel is closed
// when watching stops; a slow receiver observes coalesced snapshots, never a
// stale backlog.
func (h *Hub) Watch(ctx context.Context, jobID string) (<-chan *models.Job, error) {
	first, err := h.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	ch := make(chan *models.Job, 1)
	ch <- first

	go func() {
		defer close(ch)
		last := first.UpdatedAt
		if first.IsTerminal() {
			return
		}

		ticker := time.NewTicker(h.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				job, err := h.jobs.GetJob(ctx, jobID)
				if err != nil {
					h.logger.Debug().Err(err).Str("job_id", jobID).Msg("Watch poll failed")
					return
				}
				if !job.UpdatedAt.After(last) {
					continue
				}
				last = job.UpdatedAt

				// Coalesce: drop the undelivered snapshot if the receiver
				// is behind.
				select {
				case ch <- job:
				default:
					select {
					case <-ch:
					default:
					}
					ch <- job
				}

				if job.IsTerminal() {
					return
				}
			}
		}
	}()

	return ch, nil
}
