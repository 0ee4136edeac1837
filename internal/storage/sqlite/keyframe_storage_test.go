package sqlite

import (
	"context"
	"testing"

	"github.com/ternarybob/arbor"

	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/models"
)

func TestKeyframeReplaceIsMethodScoped(t *testing.T) {
	storage := NewKeyframeStorage(newTestDB(t), arbor.NewLogger())
	ctx := context.Background()

	interval := []models.Keyframe{
		{TimestampMS: 0, ImagePath: "/kf/v1_0.jpg", Width: 640, Height: 360},
		{TimestampMS: 30000, ImagePath: "/kf/v1_30.jpg", Width: 640, Height: 360},
	}
	if err := storage.ReplaceKeyframes(ctx, "video-1", models.KeyframeMethodInterval, interval); err != nil {
		t.Fatalf("ReplaceKeyframes(interval) failed: %v", err)
	}

	scene := []models.Keyframe{
		{TimestampMS: 12500, ImagePath: "/kf/v1_s0.jpg", Width: 640, Height: 360, Score: 0.72},
	}
	if err := storage.ReplaceKeyframes(ctx, "video-1", models.KeyframeMethodScene, scene); err != nil {
		t.Fatalf("ReplaceKeyframes(scene) failed: %v", err)
	}

	frames, err := storage.ListKeyframes(ctx, "video-1")
	if err != nil {
		t.Fatalf("ListKeyframes failed: %v", err)
	}
	if len(frames) != 3 {
		t.Fatalf("scene replace must not touch interval frames: got %d frames", len(frames))
	}

	// Re-running interval extraction swaps only the interval set.
	if err := storage.ReplaceKeyframes(ctx, "video-1", models.KeyframeMethodInterval, interval[:1]); err != nil {
		t.Fatalf("second ReplaceKeyframes(interval) failed: %v", err)
	}
	frames, err = storage.ListKeyframes(ctx, "video-1")
	if err != nil {
		t.Fatalf("ListKeyframes failed: %v", err)
	}
	if len(frames) != 2 {
		t.Fatalf("expected 1 interval + 1 scene frame, got %d", len(frames))
	}
	for i := 1; i < len(frames); i++ {
		if frames[i].TimestampMS < frames[i-1].TimestampMS {
			t.Errorf("frames out of timestamp order at %d", i)
		}
	}
}

func TestKeyframeDelete(t *testing.T) {
	storage := NewKeyframeStorage(newTestDB(t), arbor.NewLogger())
	ctx := context.Background()

	frames := []models.Keyframe{{TimestampMS: 0, ImagePath: "/kf/v1_0.jpg"}}
	if err := storage.ReplaceKeyframes(ctx, "video-1", models.KeyframeMethodInterval, frames); err != nil {
		t.Fatalf("ReplaceKeyframes failed: %v", err)
	}
	if err := storage.DeleteKeyframes(ctx, "video-1"); err != nil {
		t.Fatalf("DeleteKeyframes failed: %v", err)
	}
	got, err := storage.ListKeyframes(ctx, "video-1")
	if err != nil {
		t.Fatalf("ListKeyframes failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no frames after delete, got %d", len(got))
	}
}

func TestIndexStateRoundTrip(t *testing.T) {
	storage := NewIndexStateStorage(newTestDB(t), arbor.NewLogger())
	ctx := context.Background()

	got, err := storage.GetIndexState(ctx, "video-1")
	if err != nil {
		t.Fatalf("GetIndexState failed: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil state before first index, got %+v", got)
	}

	state := &models.IndexState{
		VideoID:        "video-1",
		TranscriptHash: "hash-1",
		Collection:     "chunks_minilm_384",
		ChunkCount:     42,
	}
	if err := storage.SaveIndexState(ctx, state); err != nil {
		t.Fatalf("SaveIndexState failed: %v", err)
	}
	if state.IndexedAtUnix == 0 {
		t.Error("SaveIndexState must stamp indexed_at")
	}

	got, err = storage.GetIndexState(ctx, "video-1")
	if err != nil {
		t.Fatalf("GetIndexState failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected state after save")
	}
	if got.TranscriptHash != "hash-1" || got.ChunkCount != 42 {
		t.Errorf("state did not round-trip: %+v", got)
	}

	// Reindex against a newer transcript overwrites in place.
	state.TranscriptHash = "hash-2"
	state.ChunkCount = 45
	if err := storage.SaveIndexState(ctx, state); err != nil {
		t.Fatalf("second SaveIndexState failed: %v", err)
	}
	got, err = storage.GetIndexState(ctx, "video-1")
	if err != nil {
		t.Fatalf("GetIndexState failed: %v", err)
	}
	if got.TranscriptHash != "hash-2" || got.ChunkCount != 45 {
		t.Errorf("upsert did not overwrite: %+v", got)
	}

	if err := storage.DeleteIndexState(ctx, "video-1"); err != nil {
		t.Fatalf("DeleteIndexState failed: %v", err)
	}
	got, err = storage.GetIndexState(ctx, "video-1")
	if err != nil {
		t.Fatalf("GetIndexState after delete failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil state after delete, got %+v", got)
	}
}
