package queue

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ternarybob/arbor"

	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/common"
	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/models"
	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/services/events"
	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/storage/sqlite"
)

func newManagerFixture(t *testing.T) (*Manager, *sqlite.JobStorage) {
	t.Helper()
	logger := arbor.NewLogger()
	db, err := sqlite.NewDB(logger, &common.SQLiteConfig{
		Path:          filepath.Join(t.TempDir(), "test.db"),
		WALMode:       true,
		BusyTimeoutMS: 5000,
		CacheSizeMB:   16,
	})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	jobs := sqlite.NewJobStorage(db, logger)
	videos := sqlite.NewVideoStorage(db, logger)
	if err := videos.UpsertVideo(context.Background(), &models.Video{
		ID:       "video-1",
		FilePath: "/videos/v1.mp4",
		FileHash: "hash-1",
		Title:    "v1",
		Status:   models.VideoStatusPending,
	}); err != nil {
		t.Fatalf("failed to seed video: %v", err)
	}

	manager := NewManager(jobs, videos, events.NewService(logger), NewCancelRegistry(), logger)
	return manager, jobs
}

func TestCreateJobAppliesDefaults(t *testing.T) {
	manager, _ := newManagerFixture(t)

	job, created, err := manager.CreateJob(context.Background(), "video-1", models.JobTypeTranscribe, nil)
	if err != nil {
		t.Fatalf("CreateJob failed: %v", err)
	}
	if !created {
		t.Error("expected created")
	}
	params, err := job.DecodeParams()
	if err != nil {
		t.Fatalf("DecodeParams failed: %v", err)
	}
	tp, ok := params.(*models.TranscribeParams)
	if !ok {
		t.Fatalf("unexpected params type %T", params)
	}
	if tp.SegmentSeconds != 120 || tp.OverlapSeconds != 3 {
		t.Errorf("defaults not applied: %+v", tp)
	}
}

func TestCreateJobGuards(t *testing.T) {
	manager, _ := newManagerFixture(t)
	ctx := context.Background()

	if _, _, err := manager.CreateJob(ctx, "video-1", models.JobType("bogus"), nil); !models.IsCode(err, models.ErrCodeValidation) {
		t.Errorf("expected VALIDATION for unknown type, got %v", err)
	}
	if _, _, err := manager.CreateJob(ctx, "missing", models.JobTypeTranscribe, nil); !models.IsCode(err, models.ErrCodeVideoNotFound) {
		t.Errorf("expected VIDEO_NOT_FOUND, got %v", err)
	}

	bad := &models.TranscribeParams{SegmentSeconds: 5, OverlapSeconds: 3}
	if _, _, err := manager.CreateJob(ctx, "video-1", models.JobTypeTranscribe, bad); !models.IsCode(err, models.ErrCodeValidation) {
		t.Errorf("expected VALIDATION for out-of-range params, got %v", err)
	}
}

func TestCreateIndexJobDedup(t *testing.T) {
	manager, jobs := newManagerFixture(t)
	ctx := context.Background()

	first, created, err := manager.CreateJob(ctx, "video-1", models.JobTypeIndex, nil)
	if err != nil || !created {
		t.Fatalf("first index job: created=%v err=%v", created, err)
	}

	// While the first is active, a second request coalesces onto it.
	second, created, err := manager.CreateJob(ctx, "video-1", models.JobTypeIndex, nil)
	if err != nil {
		t.Fatalf("second index job failed: %v", err)
	}
	if created {
		t.Error("second request must not create")
	}
	if second.ID != first.ID {
		t.Errorf("expected coalesced id %s, got %s", first.ID, second.ID)
	}

	// Dedup holds while the job is running too.
	if _, err := jobs.ClaimNext(ctx, []models.JobType{models.JobTypeIndex}); err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	third, created, err := manager.CreateJob(ctx, "video-1", models.JobTypeIndex, nil)
	if err != nil || created || third.ID != first.ID {
		t.Errorf("running dedup broken: created=%v id=%s err=%v", created, third.ID, err)
	}

	// Once terminal, a new request queues a fresh job.
	if err := jobs.CompleteJob(ctx, first.ID, nil); err != nil {
		t.Fatalf("CompleteJob failed: %v", err)
	}
	fourth, created, err := manager.CreateJob(ctx, "video-1", models.JobTypeIndex, nil)
	if err != nil || !created {
		t.Fatalf("post-terminal index job: created=%v err=%v", created, err)
	}
	if fourth.ID == first.ID {
		t.Error("post-terminal request must create a new job")
	}
}

func TestCreateJobsTranscribeNotDeduped(t *testing.T) {
	manager, _ := newManagerFixture(t)
	ctx := context.Background()

	a, _, err := manager.CreateJob(ctx, "video-1", models.JobTypeTranscribe, nil)
	if err != nil {
		t.Fatalf("CreateJob failed: %v", err)
	}
	b, created, err := manager.CreateJob(ctx, "video-1", models.JobTypeTranscribe, nil)
	if err != nil {
		t.Fatalf("CreateJob failed: %v", err)
	}
	if !created || a.ID == b.ID {
		t.Error("only index jobs are deduplicated")
	}
}

func TestCancelPendingJob(t *testing.T) {
	manager, _ := newManagerFixture(t)
	ctx := context.Background()

	job, _, err := manager.CreateJob(ctx, "video-1", models.JobTypeSummarize, nil)
	if err != nil {
		t.Fatalf("CreateJob failed: %v", err)
	}

	updated, err := manager.Cancel(ctx, job.ID)
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if updated.Status != models.JobStatusCancelled {
		t.Errorf("pending job must cancel immediately, got %s", updated.Status)
	}
}

func TestCancelRunningJobSetsMarker(t *testing.T) {
	manager, jobs := newManagerFixture(t)
	ctx := context.Background()

	job, _, err := manager.CreateJob(ctx, "video-1", models.JobTypeTranscribe, nil)
	if err != nil {
		t.Fatalf("CreateJob failed: %v", err)
	}
	if _, err := jobs.ClaimNext(ctx, []models.JobType{models.JobTypeTranscribe}); err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}

	updated, err := manager.Cancel(ctx, job.ID)
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if updated.Status != models.JobStatusRunning {
		t.Errorf("running job keeps running until the checkpoint, got %s", updated.Status)
	}
	if !updated.CancelRequested {
		t.Error("cancel marker must be set on the row")
	}
	if !manager.Registry().Requested(job.ID) {
		t.Error("in-process registry must observe the request")
	}
}

func TestCancelTerminalJob(t *testing.T) {
	manager, jobs := newManagerFixture(t)
	ctx := context.Background()

	job, _, err := manager.CreateJob(ctx, "video-1", models.JobTypeTranscribe, nil)
	if err != nil {
		t.Fatalf("CreateJob failed: %v", err)
	}
	if _, err := jobs.ClaimNext(ctx, []models.JobType{models.JobTypeTranscribe}); err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	if err := jobs.CompleteJob(ctx, job.ID, nil); err != nil {
		t.Fatalf("CompleteJob failed: %v", err)
	}

	if _, err := manager.Cancel(ctx, job.ID); !models.IsCode(err, models.ErrCodeJobNotCancellable) {
		t.Errorf("expected JOB_NOT_CANCELLABLE, got %v", err)
	}
}

func TestRetrySetsFromScratch(t *testing.T) {
	manager, jobs := newManagerFixture(t)
	ctx := context.Background()

	job, _, err := manager.CreateJob(ctx, "video-1", models.JobTypeTranscribe, nil)
	if err != nil {
		t.Fatalf("CreateJob failed: %v", err)
	}
	if _, err := jobs.ClaimNext(ctx, []models.JobType{models.JobTypeTranscribe}); err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	if err := jobs.FailJob(ctx, job.ID, models.ErrCodeTimeout, "asr timeout"); err != nil {
		t.Fatalf("FailJob failed: %v", err)
	}

	updated, err := manager.Retry(ctx, job.ID, true)
	if err != nil {
		t.Fatalf("Retry failed: %v", err)
	}
	if updated.Status != models.JobStatusPending {
		t.Errorf("retried job must be pending, got %s", updated.Status)
	}
	params, err := updated.DecodeParams()
	if err != nil {
		t.Fatalf("DecodeParams failed: %v", err)
	}
	if !params.(*models.TranscribeParams).FromScratch {
		t.Error("from_scratch must be recorded in the retried params")
	}

	// Resume retry keeps the flag off.
	if _, err := jobs.ClaimNext(ctx, []models.JobType{models.JobTypeTranscribe}); err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	if err := jobs.FailJob(ctx, job.ID, models.ErrCodeTimeout, "again"); err != nil {
		t.Fatalf("FailJob failed: %v", err)
	}
	updated, err = manager.Retry(ctx, job.ID, false)
	if err != nil {
		t.Fatalf("second Retry failed: %v", err)
	}
	params, err = updated.DecodeParams()
	if err != nil {
		t.Fatalf("DecodeParams failed: %v", err)
	}
	if params.(*models.TranscribeParams).FromScratch {
		t.Error("resume retry must not set from_scratch")
	}
}

func TestRetryGuards(t *testing.T) {
	manager, _ := newManagerFixture(t)
	ctx := context.Background()

	job, _, err := manager.CreateJob(ctx, "video-1", models.JobTypeTranscribe, nil)
	if err != nil {
		t.Fatalf("CreateJob failed: %v", err)
	}

	if _, err := manager.Retry(ctx, job.ID, false); !models.IsCode(err, models.ErrCodeJobNotRetriable) {
		t.Errorf("expected JOB_NOT_RETRIABLE for pending job, got %v", err)
	}
	if _, err := manager.Retry(ctx, "missing", false); !models.IsCode(err, models.ErrCodeJobNotFound) {
		t.Errorf("expected JOB_NOT_FOUND, got %v", err)
	}
}
