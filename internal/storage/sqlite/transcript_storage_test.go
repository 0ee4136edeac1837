package sqlite

import (
	"context"
	"testing"

	"github.com/ternarybob/arbor"

	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/models"
)

func windowSegments(windowIdx, startSeq int, texts ...string) []models.TranscriptSegment {
	segs := make([]models.TranscriptSegment, 0, len(texts))
	for i, text := range texts {
		segs = append(segs, models.TranscriptSegment{
			Seq:          startSeq + i,
			WindowIndex:  windowIdx,
			StartSeconds: float64(startSeq+i) * 10,
			EndSeconds:   float64(startSeq+i)*10 + 9.5,
			Text:         text,
		})
	}
	return segs
}

func TestTranscriptAppendAndCursor(t *testing.T) {
	storage := NewTranscriptStorage(newTestDB(t), arbor.NewLogger())
	ctx := context.Background()

	if err := storage.InitState(ctx, "video-1", 3, 360.0); err != nil {
		t.Fatalf("InitState failed: %v", err)
	}

	if err := storage.AppendWindow(ctx, "video-1", 0, windowSegments(0, 0, "hello", "world")); err != nil {
		t.Fatalf("AppendWindow(0) failed: %v", err)
	}
	if err := storage.AppendWindow(ctx, "video-1", 1, windowSegments(1, 2, "second")); err != nil {
		t.Fatalf("AppendWindow(1) failed: %v", err)
	}

	got, err := storage.GetTranscript(ctx, "video-1")
	if err != nil {
		t.Fatalf("GetTranscript failed: %v", err)
	}
	if got.NextWindow != 2 {
		t.Errorf("expected cursor at window 2, got %d", got.NextWindow)
	}
	if got.WindowCount != 3 {
		t.Errorf("expected window_count 3, got %d", got.WindowCount)
	}
	if got.AudioDuration != 360.0 {
		t.Errorf("expected audio_duration 360, got %v", got.AudioDuration)
	}
	if len(got.Segments) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(got.Segments))
	}
	for i, seg := range got.Segments {
		if seg.Seq != i {
			t.Errorf("segment %d has seq %d, expected seq order", i, seg.Seq)
		}
	}
	if got.Complete() {
		t.Error("transcript with 2 of 3 windows must not be complete")
	}

	if err := storage.AppendWindow(ctx, "video-1", 2, windowSegments(2, 3, "third")); err != nil {
		t.Fatalf("AppendWindow(2) failed: %v", err)
	}
	got, err = storage.GetTranscript(ctx, "video-1")
	if err != nil {
		t.Fatalf("GetTranscript failed: %v", err)
	}
	if !got.Complete() {
		t.Error("transcript with all windows must report complete")
	}
	if got.FullText() != "hello world second third" {
		t.Errorf("unexpected full text: %q", got.FullText())
	}
}

func TestTranscriptReappendIsNoop(t *testing.T) {
	storage := NewTranscriptStorage(newTestDB(t), arbor.NewLogger())
	ctx := context.Background()

	if err := storage.InitState(ctx, "video-1", 2, 240.0); err != nil {
		t.Fatalf("InitState failed: %v", err)
	}
	if err := storage.AppendWindow(ctx, "video-1", 0, windowSegments(0, 0, "once")); err != nil {
		t.Fatalf("AppendWindow failed: %v", err)
	}

	// A worker that crashed after committing window 0 replays it on resume.
	if err := storage.AppendWindow(ctx, "video-1", 0, windowSegments(0, 0, "once")); err != nil {
		t.Fatalf("re-append of committed window must succeed: %v", err)
	}

	got, err := storage.GetTranscript(ctx, "video-1")
	if err != nil {
		t.Fatalf("GetTranscript failed: %v", err)
	}
	if len(got.Segments) != 1 {
		t.Errorf("re-append duplicated segments: got %d, expected 1", len(got.Segments))
	}
	if got.NextWindow != 1 {
		t.Errorf("re-append moved cursor: got %d, expected 1", got.NextWindow)
	}
}

func TestTranscriptAppendOutOfOrder(t *testing.T) {
	storage := NewTranscriptStorage(newTestDB(t), arbor.NewLogger())
	ctx := context.Background()

	if err := storage.InitState(ctx, "video-1", 3, 360.0); err != nil {
		t.Fatalf("InitState failed: %v", err)
	}

	err := storage.AppendWindow(ctx, "video-1", 2, windowSegments(2, 0, "skipped ahead"))
	if !models.IsCode(err, models.ErrCodeInvalidState) {
		t.Errorf("expected INVALID_STATE for skipped window, got %v", err)
	}
}

func TestTranscriptAppendWithoutInit(t *testing.T) {
	storage := NewTranscriptStorage(newTestDB(t), arbor.NewLogger())

	err := storage.AppendWindow(context.Background(), "video-1", 0, windowSegments(0, 0, "text"))
	if !models.IsCode(err, models.ErrCodeInvalidState) {
		t.Errorf("expected INVALID_STATE before InitState, got %v", err)
	}
}

func TestTranscriptInitKeepsCursor(t *testing.T) {
	storage := NewTranscriptStorage(newTestDB(t), arbor.NewLogger())
	ctx := context.Background()

	if err := storage.InitState(ctx, "video-1", 4, 480.0); err != nil {
		t.Fatalf("InitState failed: %v", err)
	}
	if err := storage.AppendWindow(ctx, "video-1", 0, windowSegments(0, 0, "first")); err != nil {
		t.Fatalf("AppendWindow failed: %v", err)
	}

	// A resumed job re-initializes; the cursor must survive.
	if err := storage.InitState(ctx, "video-1", 4, 480.0); err != nil {
		t.Fatalf("re-InitState failed: %v", err)
	}
	got, err := storage.GetTranscript(ctx, "video-1")
	if err != nil {
		t.Fatalf("GetTranscript failed: %v", err)
	}
	if got.NextWindow != 1 {
		t.Errorf("re-init reset cursor: got %d, expected 1", got.NextWindow)
	}
}

func TestTranscriptNotFound(t *testing.T) {
	storage := NewTranscriptStorage(newTestDB(t), arbor.NewLogger())

	_, err := storage.GetTranscript(context.Background(), "missing")
	if !models.IsCode(err, models.ErrCodeTranscriptNotFound) {
		t.Errorf("expected TRANSCRIPT_NOT_FOUND, got %v", err)
	}
}

func TestTranscriptTruncate(t *testing.T) {
	storage := NewTranscriptStorage(newTestDB(t), arbor.NewLogger())
	ctx := context.Background()

	if err := storage.InitState(ctx, "video-1", 1, 120.0); err != nil {
		t.Fatalf("InitState failed: %v", err)
	}
	if err := storage.AppendWindow(ctx, "video-1", 0, windowSegments(0, 0, "gone soon")); err != nil {
		t.Fatalf("AppendWindow failed: %v", err)
	}

	if err := storage.Truncate(ctx, "video-1"); err != nil {
		t.Fatalf("Truncate failed: %v", err)
	}
	if _, err := storage.GetTranscript(ctx, "video-1"); !models.IsCode(err, models.ErrCodeTranscriptNotFound) {
		t.Errorf("expected TRANSCRIPT_NOT_FOUND after truncate, got %v", err)
	}

	// A fresh run starts the cursor at zero again.
	if err := storage.InitState(ctx, "video-1", 1, 120.0); err != nil {
		t.Fatalf("InitState after truncate failed: %v", err)
	}
	if err := storage.AppendWindow(ctx, "video-1", 0, windowSegments(0, 0, "fresh")); err != nil {
		t.Fatalf("AppendWindow after truncate failed: %v", err)
	}
}
