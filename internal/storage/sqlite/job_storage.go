package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/interfaces"
	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/models"
)

// jobColumns is the select list shared by every job query, in scanJob order.
const jobColumns = `id, video_id, job_type, status, progress, message, params, result,
	error_code, error_message, cancel_requested, created_at, updated_at, started_at, completed_at`

// JobStorage is the SQLite-backed job table. All timestamps are stored as
// unix milliseconds; updated_at strictly increases on every mutation, even
// when two writes land in the same millisecond.
type JobStorage struct {
	db     *DB
	logger arbor.ILogger
}

// NewJobStorage creates a SQLite-backed job storage
func NewJobStorage(db *DB, logger arbor.ILogger) *JobStorage {
	return &JobStorage{db: db, logger: logger}
}

// touchExpr bumps updated_at monotonically. Using MAX keeps the column a
// reliable change signal for pollers even under clock skew or same-ms writes.
const touchExpr = "updated_at = MAX(?, updated_at + 1)"

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

// CreateJob inserts a pending job
func (s *JobStorage) CreateJob(ctx context.Context, job *models.Job) error {
	if job.ID == "" {
		return models.NewAppError(models.ErrCodeValidation, "job ID is required")
	}
	now := nowMillis()
	_, err := s.db.SQL().ExecContext(ctx, `
		INSERT INTO jobs (id, video_id, job_type, status, progress, message, params,
			error_code, error_message, cancel_requested, created_at, updated_at)
		VALUES (?, ?, ?, ?, 0, '', ?, '', '', 0, ?, ?)`,
		job.ID, job.VideoID, string(job.Type), string(models.JobStatusPending),
		paramsOrEmpty(job.Params), now, now)
	if err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}
	job.Status = models.JobStatusPending
	job.CreatedAt = time.UnixMilli(now).UTC()
	job.UpdatedAt = job.CreatedAt
	return nil
}

// GetJob returns the job or a JOB_NOT_FOUND error
func (s *JobStorage) GetJob(ctx context.Context, jobID string) (*models.Job, error) {
	row := s.db.SQL().QueryRowContext(ctx,
		"SELECT "+jobColumns+" FROM jobs WHERE id = ?", jobID)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NewAppError(models.ErrCodeJobNotFound, "job not found: %s", jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

// ListJobs returns a page of jobs plus the total matching count
func (s *JobStorage) ListJobs(ctx context.Context, opts *interfaces.JobListOptions) ([]*models.Job, int, error) {
	if opts == nil {
		opts = &interfaces.JobListOptions{}
	}

	var conds []string
	var args []interface{}
	if opts.VideoID != "" {
		conds = append(conds, "video_id = ?")
		args = append(args, opts.VideoID)
	}
	if opts.Type != "" {
		conds = append(conds, "job_type = ?")
		args = append(args, string(opts.Type))
	}
	if opts.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(opts.Status))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := s.db.SQL().QueryRowContext(ctx,
		"SELECT COUNT(1) FROM jobs"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count jobs: %w", err)
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	query := "SELECT " + jobColumns + " FROM jobs" + where +
		" ORDER BY created_at DESC, id LIMIT ? OFFSET ?"
	rows, err := s.db.SQL().QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	jobs := make([]*models.Job, 0, limit)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, total, rows.Err()
}

// ClaimNext atomically claims the oldest pending job of one of the given
// types. The conditional UPDATE guarded by RowsAffected guarantees at most
// one claimer per job: a loser of the race sees zero rows affected and moves
// to the next candidate.
func (s *JobStorage) ClaimNext(ctx context.Context, jobTypes []models.JobType) (*models.Job, error) {
	if len(jobTypes) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(jobTypes)), ",")
	typeArgs := make([]interface{}, len(jobTypes))
	for i, t := range jobTypes {
		typeArgs[i] = string(t)
	}

	for {
		var candidateID string
		err := s.db.SQL().QueryRowContext(ctx, `
			SELECT id FROM jobs
			WHERE status = 'pending' AND job_type IN (`+placeholders+`)
			ORDER BY created_at, id
			LIMIT 1`, typeArgs...).Scan(&candidateID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to select claimable job: %w", err)
		}

		now := nowMillis()
		res, err := s.db.SQL().ExecContext(ctx, `
			UPDATE jobs SET status = 'running', started_at = ?, `+touchExpr+`
			WHERE id = ? AND status = 'pending'`,
			now, now, candidateID)
		if err != nil {
			return nil, fmt.Errorf("failed to claim job: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("failed to read claim result: %w", err)
		}
		if affected == 0 {
			// Another claimer took it between select and update; try the
			// next candidate.
			continue
		}
		return s.GetJob(ctx, candidateID)
	}
}

// UpdateProgress writes progress and message on a running job
func (s *JobStorage) UpdateProgress(ctx context.Context, jobID string, progress float64, message string) error {
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}
	res, err := s.db.SQL().ExecContext(ctx, `
		UPDATE jobs SET progress = ?, message = ?, `+touchExpr+`
		WHERE id = ? AND status = 'running'`,
		progress, message, nowMillis(), jobID)
	if err != nil {
		return fmt.Errorf("failed to update progress: %w", err)
	}
	return s.requireAffected(res, jobID, "update progress on")
}

// CompleteJob transitions running -> completed with a result payload
func (s *JobStorage) CompleteJob(ctx context.Context, jobID string, result []byte) error {
	now := nowMillis()
	res, err := s.db.SQL().ExecContext(ctx, `
		UPDATE jobs SET status = 'completed', progress = 1, result = ?,
			completed_at = ?, `+touchExpr+`
		WHERE id = ? AND status = 'running'`,
		nullableBytes(result), now, now, jobID)
	if err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}
	return s.requireAffected(res, jobID, "complete")
}

// FailJob transitions running -> failed with an error code and message
func (s *JobStorage) FailJob(ctx context.Context, jobID string, code models.ErrorCode, message string) error {
	now := nowMillis()
	res, err := s.db.SQL().ExecContext(ctx, `
		UPDATE jobs SET status = 'failed', error_code = ?, error_message = ?,
			completed_at = ?, `+touchExpr+`
		WHERE id = ? AND status = 'running'`,
		string(code), message, now, now, jobID)
	if err != nil {
		return fmt.Errorf("failed to fail job: %w", err)
	}
	return s.requireAffected(res, jobID, "fail")
}

// MarkCancelled transitions a pending or running job to cancelled
func (s *JobStorage) MarkCancelled(ctx context.Context, jobID string) error {
	now := nowMillis()
	res, err := s.db.SQL().ExecContext(ctx, `
		UPDATE jobs SET status = 'cancelled', completed_at = ?, `+touchExpr+`
		WHERE id = ? AND status IN ('pending', 'running')`,
		now, now, jobID)
	if err != nil {
		return fmt.Errorf("failed to cancel job: %w", err)
	}
	return s.requireAffected(res, jobID, "cancel")
}

// RequestCancel sets the cancel-requested flag on a running job. The worker
// observes the flag at the next chunk boundary.
func (s *JobStorage) RequestCancel(ctx context.Context, jobID string) error {
	res, err := s.db.SQL().ExecContext(ctx, `
		UPDATE jobs SET cancel_requested = 1, `+touchExpr+`
		WHERE id = ? AND status = 'running'`,
		nowMillis(), jobID)
	if err != nil {
		return fmt.Errorf("failed to request cancel: %w", err)
	}
	return s.requireAffected(res, jobID, "request cancel on")
}

// RetryJob resets a terminal job to pending, clearing error and progress
// state and rewriting params. The status guard keeps a retry of an active
// job from resetting it mid-run.
func (s *JobStorage) RetryJob(ctx context.Context, jobID string, params []byte) error {
	res, err := s.db.SQL().ExecContext(ctx, `
		UPDATE jobs SET status = 'pending', progress = 0, message = '',
			params = ?, result = NULL, error_code = '', error_message = '',
			cancel_requested = 0, started_at = NULL, completed_at = NULL,
			`+touchExpr+`
		WHERE id = ? AND status IN ('failed', 'cancelled')`,
		paramsOrEmpty(params), nowMillis(), jobID)
	if err != nil {
		return fmt.Errorf("failed to retry job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read retry result: %w", err)
	}
	if affected == 0 {
		if _, getErr := s.GetJob(ctx, jobID); getErr != nil {
			return getErr
		}
		return models.NewAppError(models.ErrCodeJobNotRetriable, "job %s is not in a retriable state", jobID)
	}
	return nil
}

// FindActiveJob returns the most recent pending/running job for the slot, or
// nil when none exists
func (s *JobStorage) FindActiveJob(ctx context.Context, videoID string, jobType models.JobType) (*models.Job, error) {
	row := s.db.SQL().QueryRowContext(ctx, `
		SELECT `+jobColumns+` FROM jobs
		WHERE video_id = ? AND job_type = ? AND status IN ('pending', 'running')
		ORDER BY created_at DESC, id LIMIT 1`,
		videoID, string(jobType))
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find active job: %w", err)
	}
	return job, nil
}

// EnsureActiveJob returns the id of an existing pending/running job for the
// (video, type) slot, or inserts a new pending job. The lookup and insert
// share one transaction so concurrent callers converge on a single job id.
func (s *JobStorage) EnsureActiveJob(ctx context.Context, videoID string, jobType models.JobType, params []byte) (string, bool, error) {
	tx, err := s.db.SQL().BeginTx(ctx, nil)
	if err != nil {
		return "", false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var existingID string
	err = tx.QueryRowContext(ctx, `
		SELECT id FROM jobs
		WHERE video_id = ? AND job_type = ? AND status IN ('pending', 'running')
		ORDER BY created_at DESC, id LIMIT 1`,
		videoID, string(jobType)).Scan(&existingID)
	if err == nil {
		if commitErr := tx.Commit(); commitErr != nil {
			return "", false, fmt.Errorf("failed to commit: %w", commitErr)
		}
		return existingID, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", false, fmt.Errorf("failed to find active job: %w", err)
	}

	job, err := models.NewJob(videoID, jobType, nil)
	if err != nil {
		return "", false, err
	}
	now := nowMillis()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO jobs (id, video_id, job_type, status, progress, message, params,
			error_code, error_message, cancel_requested, created_at, updated_at)
		VALUES (?, ?, ?, 'pending', 0, '', ?, '', '', 0, ?, ?)`,
		job.ID, videoID, string(jobType), paramsOrEmpty(params), now, now); err != nil {
		return "", false, fmt.Errorf("failed to insert job: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", false, fmt.Errorf("failed to commit: %w", err)
	}
	return job.ID, true, nil
}

// ResetRunningJobs forces every running job back to pending. Called once at
// startup: after a crash, a running row has no live worker behind it.
func (s *JobStorage) ResetRunningJobs(ctx context.Context) (int, error) {
	res, err := s.db.SQL().ExecContext(ctx, `
		UPDATE jobs SET status = 'pending', started_at = NULL, `+touchExpr+`
		WHERE status = 'running'`,
		nowMillis())
	if err != nil {
		return 0, fmt.Errorf("failed to reset running jobs: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read reset result: %w", err)
	}
	if affected > 0 {
		s.logger.Warn().Int64("count", affected).Msg("Reset orphaned running jobs to pending")
	}
	return int(affected), nil
}

// DeleteJobsForVideo removes all job rows for a video
func (s *JobStorage) DeleteJobsForVideo(ctx context.Context, videoID string) error {
	if _, err := s.db.SQL().ExecContext(ctx,
		"DELETE FROM jobs WHERE video_id = ?", videoID); err != nil {
		return fmt.Errorf("failed to delete jobs for video: %w", err)
	}
	return nil
}

// DeleteTerminalJobsBefore removes terminal jobs completed before the cutoff
func (s *JobStorage) DeleteTerminalJobsBefore(ctx context.Context, cutoffUnix int64) (int, error) {
	res, err := s.db.SQL().ExecContext(ctx, `
		DELETE FROM jobs
		WHERE status IN ('completed', 'failed', 'cancelled')
		AND completed_at IS NOT NULL AND completed_at < ?`,
		cutoffUnix*1000)
	if err != nil {
		return 0, fmt.Errorf("failed to delete terminal jobs: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read delete result: %w", err)
	}
	return int(affected), nil
}

// requireAffected maps a zero-row UPDATE to a typed state error: either the
// job does not exist, or it was not in the state the transition requires.
func (s *JobStorage) requireAffected(res sql.Result, jobID, action string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		ctx := context.Background()
		if _, getErr := s.GetJob(ctx, jobID); getErr != nil {
			return getErr
		}
		return models.NewAppError(models.ErrCodeInvalidState, "cannot %s job %s in its current state", action, jobID)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*models.Job, error) {
	var (
		job                    models.Job
		jobType, status, code  string
		params                 string
		result                 sql.NullString
		cancelRequested        int
		createdAt, updatedAt   int64
		startedAt, completedAt sql.NullInt64
	)
	err := row.Scan(&job.ID, &job.VideoID, &jobType, &status, &job.Progress,
		&job.Message, &params, &result, &code, &job.ErrorMessage,
		&cancelRequested, &createdAt, &updatedAt, &startedAt, &completedAt)
	if err != nil {
		return nil, err
	}
	job.Type = models.JobType(jobType)
	job.Status = models.JobStatus(status)
	job.ErrorCode = models.ErrorCode(code)
	job.Params = []byte(params)
	if result.Valid {
		job.Result = []byte(result.String)
	}
	job.CancelRequested = cancelRequested != 0
	job.CreatedAt = time.UnixMilli(createdAt).UTC()
	job.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	if startedAt.Valid {
		t := time.UnixMilli(startedAt.Int64).UTC()
		job.StartedAt = &t
	}
	if completedAt.Valid {
		t := time.UnixMilli(completedAt.Int64).UTC()
		job.CompletedAt = &t
	}
	return &job, nil
}

func paramsOrEmpty(params []byte) string {
	if len(params) == 0 {
		return "{}"
	}
	return string(params)
}

func nullableBytes(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
