package sqlite

import (
	"context"
	"testing"

	"github.com/ternarybob/arbor"

	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/models"
)

func testVideo(id, hash string) *models.Video {
	return &models.Video{
		ID:       id,
		FilePath: "/videos/" + id + ".mp4",
		FileHash: hash,
		Title:    id,
		FileSize: 1024,
		Status:   models.VideoStatusPending,
	}
}

func TestVideoUpsertDedupByHash(t *testing.T) {
	storage := NewVideoStorage(newTestDB(t), arbor.NewLogger())
	ctx := context.Background()

	if err := storage.UpsertVideo(ctx, testVideo("video-1", "hash-a")); err != nil {
		t.Fatalf("UpsertVideo failed: %v", err)
	}

	// Re-importing the same bytes from a new path keeps one row, updates path.
	dup := testVideo("video-other", "hash-a")
	dup.FilePath = "/moved/video.mp4"
	if err := storage.UpsertVideo(ctx, dup); err != nil {
		t.Fatalf("duplicate upsert failed: %v", err)
	}

	_, total, err := storage.ListVideos(ctx, 10, 0)
	if err != nil {
		t.Fatalf("ListVideos failed: %v", err)
	}
	if total != 1 {
		t.Errorf("expected 1 video after dedup, got %d", total)
	}

	got, err := storage.GetVideoByHash(ctx, "hash-a")
	if err != nil {
		t.Fatalf("GetVideoByHash failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected video by hash, got nil")
	}
	if got.ID != "video-1" {
		t.Errorf("dedup must keep the original id, got %s", got.ID)
	}
	if got.FilePath != "/moved/video.mp4" {
		t.Errorf("dedup must refresh the path, got %s", got.FilePath)
	}
}

func TestVideoGetByHashMissing(t *testing.T) {
	storage := NewVideoStorage(newTestDB(t), arbor.NewLogger())

	got, err := storage.GetVideoByHash(context.Background(), "no-such-hash")
	if err != nil {
		t.Fatalf("GetVideoByHash failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for unknown hash, got %+v", got)
	}
}

func TestVideoStatusAndDuration(t *testing.T) {
	storage := NewVideoStorage(newTestDB(t), arbor.NewLogger())
	ctx := context.Background()

	if err := storage.UpsertVideo(ctx, testVideo("video-1", "hash-a")); err != nil {
		t.Fatalf("UpsertVideo failed: %v", err)
	}
	if err := storage.SetVideoStatus(ctx, "video-1", models.VideoStatusProcessing); err != nil {
		t.Fatalf("SetVideoStatus failed: %v", err)
	}
	if err := storage.SetVideoDuration(ctx, "video-1", 612.4); err != nil {
		t.Fatalf("SetVideoDuration failed: %v", err)
	}

	got, err := storage.GetVideo(ctx, "video-1")
	if err != nil {
		t.Fatalf("GetVideo failed: %v", err)
	}
	if got.Status != models.VideoStatusProcessing {
		t.Errorf("expected processing status, got %s", got.Status)
	}
	if got.DurationSeconds != 612.4 {
		t.Errorf("expected duration 612.4, got %v", got.DurationSeconds)
	}

	if err := storage.SetVideoStatus(ctx, "missing", models.VideoStatusError); !models.IsCode(err, models.ErrCodeVideoNotFound) {
		t.Errorf("expected VIDEO_NOT_FOUND, got %v", err)
	}
}

func TestVideoDelete(t *testing.T) {
	storage := NewVideoStorage(newTestDB(t), arbor.NewLogger())
	ctx := context.Background()

	if err := storage.UpsertVideo(ctx, testVideo("video-1", "hash-a")); err != nil {
		t.Fatalf("UpsertVideo failed: %v", err)
	}
	if err := storage.DeleteVideo(ctx, "video-1"); err != nil {
		t.Fatalf("DeleteVideo failed: %v", err)
	}
	if _, err := storage.GetVideo(ctx, "video-1"); !models.IsCode(err, models.ErrCodeVideoNotFound) {
		t.Errorf("expected VIDEO_NOT_FOUND after delete, got %v", err)
	}
	if err := storage.DeleteVideo(ctx, "video-1"); !models.IsCode(err, models.ErrCodeVideoNotFound) {
		t.Errorf("expected VIDEO_NOT_FOUND on double delete, got %v", err)
	}
}

func TestVideoUpsertValidation(t *testing.T) {
	storage := NewVideoStorage(newTestDB(t), arbor.NewLogger())

	err := storage.UpsertVideo(context.Background(), &models.Video{ID: "video-1"})
	if !models.IsCode(err, models.ErrCodeValidation) {
		t.Errorf("expected VALIDATION for missing fields, got %v", err)
	}
}
