package interfaces

import (
	"context"

	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/models"
)

// JobListOptions filters and paginates job listings. Results are always
// ordered created_at descending.
type JobListOptions struct {
	VideoID string
	Type    models.JobType
	Status  models.JobStatus
	Limit   int
	Offset  int
}

// JobStorage is the durable job table plus the claim/transition primitives.
// It exclusively owns job mutation.
type JobStorage interface {
	// CreateJob inserts a pending job.
	CreateJob(ctx context.Context, job *models.Job) error

	// GetJob returns the job or a JOB_NOT_FOUND error.
	GetJob(ctx context.Context, jobID string) (*models.Job, error)

	// ListJobs returns a page of jobs plus the total matching count.
	ListJobs(ctx context.Context, opts *JobListOptions) ([]*models.Job, int, error)

	// ClaimNext atomically transitions the oldest claimable pending job of
	// one of the given types to running. Returns nil when nothing is
	// claimable. At most one caller ever observes a successful claim for a
	// given job.
	ClaimNext(ctx context.Context, jobTypes []models.JobType) (*models.Job, error)

	// UpdateProgress writes progress and message on a running job.
	UpdateProgress(ctx context.Context, jobID string, progress float64, message string) error

	// CompleteJob transitions running -> completed with a result payload.
	CompleteJob(ctx context.Context, jobID string, result []byte) error

	// FailJob transitions running -> failed with an error code and message.
	FailJob(ctx context.Context, jobID string, code models.ErrorCode, message string) error

	// MarkCancelled transitions a job to cancelled. Used for pending jobs
	// (immediately) and by workers acknowledging a cancel request.
	MarkCancelled(ctx context.Context, jobID string) error

	// RequestCancel sets the cancel-requested flag on a running job.
	RequestCancel(ctx context.Context, jobID string) error

	// RetryJob resets a terminal job to pending, clearing error state and
	// rewriting params with the requested from_scratch flag.
	RetryJob(ctx context.Context, jobID string, params []byte) error

	// FindActiveJob returns the most recent pending/running job for
	// (videoID, jobType), or nil.
	FindActiveJob(ctx context.Context, videoID string, jobType models.JobType) (*models.Job, error)

	// EnsureActiveJob returns the id of an existing pending/running job for
	// (videoID, jobType) or creates one with the given params, in a single
	// transaction so concurrent callers converge on one job id. The bool
	// reports whether a new job was created.
	EnsureActiveJob(ctx context.Context, videoID string, jobType models.JobType, params []byte) (string, bool, error)

	// ResetRunningJobs forces every running job back to pending. Called
	// once at startup: a running row with no live worker is
	// indistinguishable from a crashed one.
	ResetRunningJobs(ctx context.Context) (int, error)

	// DeleteJobsForVideo removes all job rows for a video.
	DeleteJobsForVideo(ctx context.Context, videoID string) error

	// DeleteTerminalJobsBefore removes terminal jobs completed before the
	// cutoff (unix seconds). Returns the number removed.
	DeleteTerminalJobsBefore(ctx context.Context, cutoffUnix int64) (int, error)
}

// VideoStorage is the durable video metadata table.
type VideoStorage interface {
	// UpsertVideo inserts or refreshes a video record keyed by file hash.
	UpsertVideo(ctx context.Context, video *models.Video) error

	GetVideo(ctx context.Context, videoID string) (*models.Video, error)

	// GetVideoByHash returns the video with the given file hash, or nil.
	GetVideoByHash(ctx context.Context, fileHash string) (*models.Video, error)

	ListVideos(ctx context.Context, limit, offset int) ([]*models.Video, int, error)

	// SetVideoStatus transitions the video lifecycle status.
	SetVideoStatus(ctx context.Context, videoID string, status models.VideoStatus) error

	// SetVideoDuration records the probed media duration.
	SetVideoDuration(ctx context.Context, videoID string, seconds float64) error

	// DeleteVideo removes the video row. Derived artifacts cascade via the
	// owning storages; the original file on disk is never touched.
	DeleteVideo(ctx context.Context, videoID string) error
}

// TranscriptStorage is the append-friendly transcript log.
type TranscriptStorage interface {
	// GetTranscript loads the full segment log and resume state. Returns a
	// TRANSCRIPT_NOT_FOUND error when no segments and no state exist.
	GetTranscript(ctx context.Context, videoID string) (*models.Transcript, error)

	// AppendWindow durably appends one window's segments and advances the
	// resume cursor in a single transaction. This is the transcription
	// checkpoint.
	AppendWindow(ctx context.Context, videoID string, windowIndex int, segments []models.TranscriptSegment) error

	// InitState records the planned window count and audio duration before
	// the first window runs.
	InitState(ctx context.Context, videoID string, windowCount int, audioDuration float64) error

	// Truncate removes all segments and resume state (from_scratch).
	Truncate(ctx context.Context, videoID string) error
}

// SummaryStorage persists the latest summary per video.
type SummaryStorage interface {
	// SaveSummary replaces the video's summary (latest wins).
	SaveSummary(ctx context.Context, summary *models.Summary) error

	// GetSummary returns the summary or a SUMMARY_NOT_FOUND error.
	GetSummary(ctx context.Context, videoID string) (*models.Summary, error)

	// SaveSection persists one map-phase section summary (checkpoint).
	SaveSection(ctx context.Context, videoID string, section models.SectionSummary) error

	// GetSections returns persisted section summaries in index order.
	GetSections(ctx context.Context, videoID string) ([]models.SectionSummary, error)

	// ClearSections removes persisted section checkpoints (from_scratch).
	ClearSections(ctx context.Context, videoID string) error

	DeleteSummary(ctx context.Context, videoID string) error
}

// KeyframeStorage persists extracted keyframes.
type KeyframeStorage interface {
	// ReplaceKeyframes atomically swaps the video's keyframe set for the
	// given extraction method.
	ReplaceKeyframes(ctx context.Context, videoID string, method models.KeyframeMethod, frames []models.Keyframe) error

	ListKeyframes(ctx context.Context, videoID string) ([]models.Keyframe, error)

	DeleteKeyframes(ctx context.Context, videoID string) error
}

// IndexStateStorage records the staleness bookkeeping for the vector index.
type IndexStateStorage interface {
	SaveIndexState(ctx context.Context, state *models.IndexState) error

	// GetIndexState returns the last successful index state, or nil.
	GetIndexState(ctx context.Context, videoID string) (*models.IndexState, error)

	DeleteIndexState(ctx context.Context, videoID string) error
}
