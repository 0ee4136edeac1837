package sqlite

import (
	"context"
	"testing"

	"github.com/ternarybob/arbor"

	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/models"
)

func TestSummarySaveAndGet(t *testing.T) {
	storage := NewSummaryStorage(newTestDB(t), arbor.NewLogger())
	ctx := context.Background()

	params := models.SummarizeParams{}
	params.ApplyDefaults()
	summary := &models.Summary{
		VideoID: "video-1",
		Overall: "A talk about distributed systems.",
		Outline: []models.OutlineNode{
			{Title: "Intro", StartSeconds: 0, EndSeconds: 120, Bullets: []string{"welcome"}},
			{Title: "Main", StartSeconds: 120, EndSeconds: 600, Children: []models.OutlineNode{
				{Title: "Consensus", StartSeconds: 120, EndSeconds: 400},
			}},
		},
		Params:         &params,
		TranscriptHash: "hash-1",
	}
	if err := storage.SaveSummary(ctx, summary); err != nil {
		t.Fatalf("SaveSummary failed: %v", err)
	}

	got, err := storage.GetSummary(ctx, "video-1")
	if err != nil {
		t.Fatalf("GetSummary failed: %v", err)
	}
	if got.Overall != summary.Overall {
		t.Errorf("overall mismatch: %q", got.Overall)
	}
	if got.TranscriptHash != "hash-1" {
		t.Errorf("transcript hash mismatch: %q", got.TranscriptHash)
	}
	if models.CountOutlineNodes(got.Outline) != 3 {
		t.Errorf("expected 3 outline nodes, got %d", models.CountOutlineNodes(got.Outline))
	}
	if got.Params == nil || got.Params.SectionSeconds != params.SectionSeconds {
		t.Errorf("params did not round-trip: %+v", got.Params)
	}
	if got.CreatedAt.IsZero() {
		t.Error("created_at must be set")
	}
}

func TestSummaryLatestWins(t *testing.T) {
	storage := NewSummaryStorage(newTestDB(t), arbor.NewLogger())
	ctx := context.Background()

	first := &models.Summary{VideoID: "video-1", Overall: "old", TranscriptHash: "hash-1"}
	if err := storage.SaveSummary(ctx, first); err != nil {
		t.Fatalf("SaveSummary failed: %v", err)
	}
	second := &models.Summary{VideoID: "video-1", Overall: "new", TranscriptHash: "hash-2"}
	if err := storage.SaveSummary(ctx, second); err != nil {
		t.Fatalf("second SaveSummary failed: %v", err)
	}

	got, err := storage.GetSummary(ctx, "video-1")
	if err != nil {
		t.Fatalf("GetSummary failed: %v", err)
	}
	if got.Overall != "new" || got.TranscriptHash != "hash-2" {
		t.Errorf("expected latest summary, got %q / %q", got.Overall, got.TranscriptHash)
	}
}

func TestSummaryNotFound(t *testing.T) {
	storage := NewSummaryStorage(newTestDB(t), arbor.NewLogger())

	_, err := storage.GetSummary(context.Background(), "missing")
	if !models.IsCode(err, models.ErrCodeSummaryNotFound) {
		t.Errorf("expected SUMMARY_NOT_FOUND, got %v", err)
	}
}

func TestSummarySectionCheckpoints(t *testing.T) {
	storage := NewSummaryStorage(newTestDB(t), arbor.NewLogger())
	ctx := context.Background()

	// Sections persist independently of the final summary so a resumed job
	// can skip completed map work.
	for i := 0; i < 3; i++ {
		section := models.SectionSummary{
			Index:        i,
			StartSeconds: float64(i) * 300,
			EndSeconds:   float64(i+1) * 300,
			Text:         "section text",
		}
		if err := storage.SaveSection(ctx, "video-1", section); err != nil {
			t.Fatalf("SaveSection(%d) failed: %v", i, err)
		}
	}
	// Re-saving a section overwrites rather than duplicates.
	if err := storage.SaveSection(ctx, "video-1", models.SectionSummary{Index: 1, Text: "revised"}); err != nil {
		t.Fatalf("re-SaveSection failed: %v", err)
	}

	sections, err := storage.GetSections(ctx, "video-1")
	if err != nil {
		t.Fatalf("GetSections failed: %v", err)
	}
	if len(sections) != 3 {
		t.Fatalf("expected 3 sections, got %d", len(sections))
	}
	if sections[1].Text != "revised" {
		t.Errorf("expected re-saved section text, got %q", sections[1].Text)
	}
	for i, sec := range sections {
		if sec.Index != i {
			t.Errorf("sections out of order at %d: index %d", i, sec.Index)
		}
	}

	if err := storage.ClearSections(ctx, "video-1"); err != nil {
		t.Fatalf("ClearSections failed: %v", err)
	}
	sections, err = storage.GetSections(ctx, "video-1")
	if err != nil {
		t.Fatalf("GetSections after clear failed: %v", err)
	}
	if len(sections) != 0 {
		t.Errorf("expected no sections after clear, got %d", len(sections))
	}
}

func TestSummaryDelete(t *testing.T) {
	storage := NewSummaryStorage(newTestDB(t), arbor.NewLogger())
	ctx := context.Background()

	if err := storage.SaveSummary(ctx, &models.Summary{VideoID: "video-1", Overall: "x", TranscriptHash: "h"}); err != nil {
		t.Fatalf("SaveSummary failed: %v", err)
	}
	if err := storage.DeleteSummary(ctx, "video-1"); err != nil {
		t.Fatalf("DeleteSummary failed: %v", err)
	}
	if _, err := storage.GetSummary(ctx, "video-1"); !models.IsCode(err, models.ErrCodeSummaryNotFound) {
		t.Errorf("expected SUMMARY_NOT_FOUND after delete, got %v", err)
	}
}
