package workers

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/common"
	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/interfaces"
	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/models"
	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/storage/sqlite"
)

type workerFixture struct {
	jobs        *sqlite.JobStorage
	videos      *sqlite.VideoStorage
	transcripts *sqlite.TranscriptStorage
	summaries   *sqlite.SummaryStorage
	keyframes   *sqlite.KeyframeStorage
	logger      arbor.ILogger
}

func newWorkerFixture(t *testing.T) *workerFixture {
	t.Helper()
	logger := arbor.NewLogger()
	db, err := sqlite.NewDB(logger, &common.SQLiteConfig{
		Path:          filepath.Join(t.TempDir(), "test.db"),
		WALMode:       true,
		BusyTimeoutMS: 5000,
		CacheSizeMB:   16,
	})
	require.NoError(t, err, "failed to open test db")
	t.Cleanup(func() { db.Close() })

	f := &workerFixture{
		jobs:        sqlite.NewJobStorage(db, logger),
		videos:      sqlite.NewVideoStorage(db, logger),
		transcripts: sqlite.NewTranscriptStorage(db, logger),
		summaries:   sqlite.NewSummaryStorage(db, logger),
		keyframes:   sqlite.NewKeyframeStorage(db, logger),
		logger:      logger,
	}
	require.NoError(t, f.videos.UpsertVideo(context.Background(), &models.Video{
		ID:              "video-1",
		FilePath:        "/videos/v1.mp4",
		FileHash:        "hash-1",
		Title:           "v1",
		DurationSeconds: 300,
		Status:          models.VideoStatusPending,
	}), "failed to seed video")
	return f
}

func makeJob(t *testing.T, videoID string, jobType models.JobType, params models.JobParams) *models.Job {
	t.Helper()
	job, err := models.NewJob(videoID, jobType, params)
	require.NoError(t, err)
	return job
}

// fakeMedia satisfies MediaTool without touching ffmpeg; the audio windows
// and frames it "produces" are never read by the fakes downstream.
type fakeMedia struct {
	duration float64
	scenes   []interfaces.SceneCandidate
}

func (m *fakeMedia) ProbeDuration(ctx context.Context, inputPath string) (float64, error) {
	return m.duration, nil
}

func (m *fakeMedia) ExtractAudioWindow(ctx context.Context, inputPath, outputWav string, startSeconds, durationSeconds float64) error {
	return nil
}

func (m *fakeMedia) ExtractFrame(ctx context.Context, inputPath, outputImage string, timestampSeconds float64, width int) (int, int, error) {
	return 640, 360, nil
}

func (m *fakeMedia) DetectScenes(ctx context.Context, inputPath string) ([]interfaces.SceneCandidate, error) {
	return m.scenes, nil
}

// fakeASR emits one segment per window whose text names the wav it came
// from, so a re-run over the same window reproduces the same text.
type fakeASR struct {
	calls []string
}

func (a *fakeASR) Transcribe(ctx context.Context, audioPath, language string) ([]interfaces.ASRSegment, error) {
	a.calls = append(a.calls, audioPath)
	return []interfaces.ASRSegment{
		{StartSeconds: 0, EndSeconds: 90, Text: "spoken in " + filepath.Base(audioPath)},
	}, nil
}

// stubReporter cancels after a set number of checkpoint observations and
// records every progress write.
type stubReporter struct {
	cancelAfter int
	checks      int
	progress    []float64
}

func (r *stubReporter) Report(ctx context.Context, progress float64, message string) error {
	r.progress = append(r.progress, progress)
	return nil
}

func (r *stubReporter) Cancelled(ctx context.Context) bool {
	r.checks++
	return r.cancelAfter > 0 && r.checks > r.cancelAfter
}

func TestTranscribeCancelThenRetryResumesSuperset(t *testing.T) {
	f := newWorkerFixture(t)
	ctx := context.Background()
	asr := &fakeASR{}
	worker := NewTranscribeWorker(f.videos, f.transcripts, &fakeMedia{duration: 300}, asr,
		t.TempDir(), f.logger)

	// 300s video at 100s windows: 3 windows, cancel observed at the second.
	job := makeJob(t, "video-1", models.JobTypeTranscribe,
		&models.TranscribeParams{SegmentSeconds: 100, OverlapSeconds: 3})
	_, err := worker.Execute(ctx, job, &stubReporter{cancelAfter: 1})
	require.Error(t, err)
	assert.True(t, models.IsCode(err, models.ErrCodeCancelled), "expected CANCELLED, got %v", err)

	partial, err := f.transcripts.GetTranscript(ctx, "video-1")
	require.NoError(t, err)
	require.Len(t, partial.Segments, 1, "exactly the completed window must be persisted")
	assert.Equal(t, 1, partial.NextWindow)
	callsBefore := len(asr.calls)

	result, err := worker.Execute(ctx, job, &stubReporter{})
	require.NoError(t, err)
	res := result.(*models.TranscribeResult)
	assert.False(t, res.ResumedFromZero, "retry must resume from the checkpoint")
	assert.Equal(t, 3, res.WindowCount)

	final, err := f.transcripts.GetTranscript(ctx, "video-1")
	require.NoError(t, err)
	require.Len(t, final.Segments, 3)
	// Superset: the pre-cancel segment survives byte for byte.
	assert.Equal(t, partial.Segments[0].Text, final.Segments[0].Text)
	assert.Equal(t, partial.Segments[0].Seq, final.Segments[0].Seq)
	// Only the remaining windows went back through the engine.
	assert.Equal(t, callsBefore+2, len(asr.calls))
}

func TestTranscribeRestartRecoveryResumesWithNewStart(t *testing.T) {
	f := newWorkerFixture(t)
	ctx := context.Background()
	asr := &fakeASR{}
	worker := NewTranscribeWorker(f.videos, f.transcripts, &fakeMedia{duration: 300}, asr,
		t.TempDir(), f.logger)

	job := makeJob(t, "video-1", models.JobTypeTranscribe,
		&models.TranscribeParams{SegmentSeconds: 100, OverlapSeconds: 3})
	require.NoError(t, f.jobs.CreateJob(ctx, job))

	first, err := f.jobs.ClaimNext(ctx, []models.JobType{models.JobTypeTranscribe})
	require.NoError(t, err)
	require.NotNil(t, first)
	require.NotNil(t, first.StartedAt)

	// One window lands, then the process dies without recording a terminal
	// state. The stale running row is all that survives.
	_, err = worker.Execute(ctx, first, &stubReporter{cancelAfter: 1})
	require.Error(t, err)

	time.Sleep(5 * time.Millisecond)
	reset, err := f.jobs.ResetRunningJobs(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, reset)

	second, err := f.jobs.ClaimNext(ctx, []models.JobType{models.JobTypeTranscribe})
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, first.ID, second.ID)
	require.NotNil(t, second.StartedAt)
	assert.True(t, second.StartedAt.After(*first.StartedAt), "reclaim must stamp a fresh started_at")

	result, err := worker.Execute(ctx, second, &stubReporter{})
	require.NoError(t, err)
	res := result.(*models.TranscribeResult)
	assert.False(t, res.ResumedFromZero, "recovery must resume from the durable checkpoint")

	final, err := f.transcripts.GetTranscript(ctx, "video-1")
	require.NoError(t, err)
	assert.Len(t, final.Segments, 3)
}
