package export

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ternarybob/arbor"

	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/common"
	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/models"
	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/storage/sqlite"
)

func newExportFixture(t *testing.T) (*Service, *sqlite.VideoStorage, *sqlite.TranscriptStorage, *sqlite.SummaryStorage) {
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

	videos := sqlite.NewVideoStorage(db, logger)
	transcripts := sqlite.NewTranscriptStorage(db, logger)
	summaries := sqlite.NewSummaryStorage(db, logger)
	svc := NewService(videos, transcripts, summaries, logger)
	return svc, videos, transcripts, summaries
}

func seedVideo(t *testing.T, videos *sqlite.VideoStorage) {
	t.Helper()
	err := videos.UpsertVideo(context.Background(), &models.Video{
		ID:       "video-1",
		FilePath: "/videos/talk.mp4",
		FileHash: "hash-1",
		Title:    "talk",
		Status:   models.VideoStatusComplete,
	})
	if err != nil {
		t.Fatalf("failed to seed video: %v", err)
	}
}

func seedTranscript(t *testing.T, transcripts *sqlite.TranscriptStorage) {
	t.Helper()
	ctx := context.Background()
	if err := transcripts.InitState(ctx, "video-1", 1, 10); err != nil {
		t.Fatalf("InitState failed: %v", err)
	}
	segments := []models.TranscriptSegment{
		{Seq: 0, StartSeconds: 0, EndSeconds: 4.25, Text: "Hello everyone."},
		{Seq: 1, StartSeconds: 4.25, EndSeconds: 3661.5, Text: "Welcome back."},
	}
	if err := transcripts.AppendWindow(ctx, "video-1", 0, segments); err != nil {
		t.Fatalf("AppendWindow failed: %v", err)
	}
}

func TestExportTranscriptSRT(t *testing.T) {
	svc, videos, transcripts, _ := newExportFixture(t)
	seedVideo(t, videos)
	seedTranscript(t, transcripts)

	doc, err := svc.ExportTranscript(context.Background(), "video-1", FormatSRT)
	if err != nil {
		t.Fatalf("ExportTranscript failed: %v", err)
	}
	if doc.ContentType != "application/x-subrip" || doc.Filename != "talk.srt" {
		t.Errorf("document metadata mismatch: %+v", doc)
	}

	body := string(doc.Body)
	want := "1\n00:00:00,000 --> 00:00:04,250\nHello everyone.\n\n" +
		"2\n00:00:04,250 --> 01:01:01,500\nWelcome back.\n\n"
	if body != want {
		t.Errorf("SRT body mismatch:\ngot:\n%s\nwant:\n%s", body, want)
	}
}

func TestExportTranscriptVTT(t *testing.T) {
	svc, videos, transcripts, _ := newExportFixture(t)
	seedVideo(t, videos)
	seedTranscript(t, transcripts)

	doc, err := svc.ExportTranscript(context.Background(), "video-1", FormatVTT)
	if err != nil {
		t.Fatalf("ExportTranscript failed: %v", err)
	}
	if doc.ContentType != "text/vtt" {
		t.Errorf("content type mismatch: %s", doc.ContentType)
	}

	body := string(doc.Body)
	if !strings.HasPrefix(body, "WEBVTT\n\n") {
		t.Errorf("VTT body must start with WEBVTT header:\n%s", body)
	}
	if !strings.Contains(body, "00:00:00.000 --> 00:00:04.250") {
		t.Errorf("VTT uses period millisecond separator:\n%s", body)
	}
	if strings.Contains(body, "1\n00:00") {
		t.Errorf("VTT cues are not numbered:\n%s", body)
	}
}

func TestExportTranscriptGating(t *testing.T) {
	svc, videos, transcripts, _ := newExportFixture(t)
	ctx := context.Background()

	// Unknown video.
	if _, err := svc.ExportTranscript(ctx, "missing", FormatSRT); !models.IsCode(err, models.ErrCodeVideoNotFound) {
		t.Errorf("expected VIDEO_NOT_FOUND, got %v", err)
	}

	// Video without a transcript.
	seedVideo(t, videos)
	if _, err := svc.ExportTranscript(ctx, "video-1", FormatSRT); !models.IsCode(err, models.ErrCodeTranscriptNotFound) {
		t.Errorf("expected TRANSCRIPT_NOT_FOUND, got %v", err)
	}

	// Transcript state exists but holds no segments yet.
	if err := transcripts.InitState(ctx, "video-1", 3, 360); err != nil {
		t.Fatalf("InitState failed: %v", err)
	}
	if _, err := svc.ExportTranscript(ctx, "video-1", FormatSRT); !models.IsCode(err, models.ErrCodeTranscriptNotFound) {
		t.Errorf("expected TRANSCRIPT_NOT_FOUND for empty transcript, got %v", err)
	}
}

func TestExportTranscriptUnsupportedFormat(t *testing.T) {
	svc, videos, transcripts, _ := newExportFixture(t)
	seedVideo(t, videos)
	seedTranscript(t, transcripts)

	if _, err := svc.ExportTranscript(context.Background(), "video-1", FormatPDF); !models.IsCode(err, models.ErrCodeValidation) {
		t.Errorf("expected VALIDATION for pdf transcript, got %v", err)
	}
}

func seedSummary(t *testing.T, summaries *sqlite.SummaryStorage) {
	t.Helper()
	summary := &models.Summary{
		VideoID: "video-1",
		Overall: "A short talk.",
		Outline: []models.OutlineNode{
			{Title: "Intro", StartSeconds: 0, EndSeconds: 65, Bullets: []string{"greeting"}},
		},
		TranscriptHash: "hash-1",
	}
	if err := summaries.SaveSummary(context.Background(), summary); err != nil {
		t.Fatalf("SaveSummary failed: %v", err)
	}
	if err := summaries.SaveSection(context.Background(), "video-1", models.SectionSummary{
		Index: 0, StartSeconds: 0, EndSeconds: 300, Text: "Opening remarks.",
	}); err != nil {
		t.Fatalf("SaveSection failed: %v", err)
	}
}

func TestExportSummaryMarkdown(t *testing.T) {
	svc, videos, _, summaries := newExportFixture(t)
	seedVideo(t, videos)
	seedSummary(t, summaries)

	doc, err := svc.ExportSummary(context.Background(), "video-1", FormatMarkdown)
	if err != nil {
		t.Fatalf("ExportSummary failed: %v", err)
	}
	body := string(doc.Body)
	for _, want := range []string{
		"# talk",
		"## Overview",
		"A short talk.",
		"- **Intro** (0:00 - 1:05)",
		"  - greeting",
		"## Section Summaries",
		"### 0:00 - 5:00",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("markdown missing %q:\n%s", want, body)
		}
	}
}

func TestExportSummaryHTML(t *testing.T) {
	svc, videos, _, summaries := newExportFixture(t)
	seedVideo(t, videos)
	seedSummary(t, summaries)

	doc, err := svc.ExportSummary(context.Background(), "video-1", FormatHTML)
	if err != nil {
		t.Fatalf("ExportSummary failed: %v", err)
	}
	body := string(doc.Body)
	if !strings.Contains(body, "<h1") || !strings.Contains(body, "talk") {
		t.Errorf("HTML missing rendered heading:\n%s", body)
	}
}

func TestExportSummaryPDF(t *testing.T) {
	svc, videos, _, summaries := newExportFixture(t)
	seedVideo(t, videos)
	seedSummary(t, summaries)

	doc, err := svc.ExportSummary(context.Background(), "video-1", FormatPDF)
	if err != nil {
		t.Fatalf("ExportSummary failed: %v", err)
	}
	if !bytes.HasPrefix(doc.Body, []byte("%PDF")) {
		t.Errorf("PDF body missing magic header")
	}
	if doc.Filename != "talk.pdf" {
		t.Errorf("filename mismatch: %s", doc.Filename)
	}
}

func TestExportSummaryGating(t *testing.T) {
	svc, videos, _, _ := newExportFixture(t)
	seedVideo(t, videos)

	if _, err := svc.ExportSummary(context.Background(), "video-1", FormatMarkdown); !models.IsCode(err, models.ErrCodeSummaryNotFound) {
		t.Errorf("expected SUMMARY_NOT_FOUND, got %v", err)
	}
}

func TestFormatClock(t *testing.T) {
	cases := []struct {
		seconds float64
		want    string
	}{
		{0, "0:00"},
		{65, "1:05"},
		{3599, "59:59"},
		{3661, "1:01:01"},
	}
	for _, tc := range cases {
		if got := formatClock(tc.seconds); got != tc.want {
			t.Errorf("formatClock(%v) = %q, want %q", tc.seconds, got, tc.want)
		}
	}
}

func TestFormatTimestampNegativeClamped(t *testing.T) {
	if got := formatTimestamp(-3, ','); got != "00:00:00,000" {
		t.Errorf("negative seconds must clamp to zero, got %q", got)
	}
}
