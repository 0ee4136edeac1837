package export

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/ternarybob/arbor"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/interfaces"
	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/models"
)

// Format identifies an export output format
type Format string

const (
	FormatSRT      Format = "srt"
	FormatVTT      Format = "vtt"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
	FormatPDF      Format = "pdf"
)

// Document is one rendered export
type Document struct {
	Format      Format
	ContentType string
	Filename    string
	Body        []byte
}

// Service renders transcripts and summaries into portable formats. Exports
// are strictly gated on the upstream artifact existing: a missing transcript
// or summary is a typed not-found error, never a partial body.
type Service struct {
	videos     interfaces.VideoStorage
	transcript interfaces.TranscriptStorage
	summaries  interfaces.SummaryStorage
	markdown   goldmark.Markdown
	logger     arbor.ILogger
}

// NewService creates the export service
func NewService(
	videos interfaces.VideoStorage,
	transcript interfaces.TranscriptStorage,
	summaries interfaces.SummaryStorage,
	logger arbor.ILogger,
) *Service {
	return &Service{
		videos:     videos,
		transcript: transcript,
		summaries:  summaries,
		markdown:   goldmark.New(goldmark.WithExtensions(extension.GFM)),
		logger:     logger,
	}
}

// ExportTranscript renders the video's transcript as SRT or VTT
func (s *Service) ExportTranscript(ctx context.Context, videoID string, format Format) (*Document, error) {
	video, err := s.videos.GetVideo(ctx, videoID)
	if err != nil {
		return nil, err
	}
	transcript, err := s.transcript.GetTranscript(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if len(transcript.Segments) == 0 {
		return nil, models.NewAppError(models.ErrCodeTranscriptNotFound, "transcript for video %s is empty", videoID)
	}

	switch format {
	case FormatSRT:
		return &Document{
			Format:      FormatSRT,
			ContentType: "application/x-subrip",
			Filename:    video.Title + ".srt",
			Body:        renderSRT(transcript.Segments),
		}, nil
	case FormatVTT:
		return &Document{
			Format:      FormatVTT,
			ContentType: "text/vtt",
			Filename:    video.Title + ".vtt",
			Body:        renderVTT(transcript.Segments),
		}, nil
	default:
		return nil, models.NewAppError(models.ErrCodeValidation, "unsupported transcript format: %s", format)
	}
}

// ExportSummary renders the video's summary as markdown, HTML or PDF
func (s *Service) ExportSummary(ctx context.Context, videoID string, format Format) (*Document, error) {
	video, err := s.videos.GetVideo(ctx, videoID)
	if err != nil {
		return nil, err
	}
	summary, err := s.summaries.GetSummary(ctx, videoID)
	if err != nil {
		return nil, err
	}

	md := renderSummaryMarkdown(video, summary)

	switch format {
	case FormatMarkdown:
		return &Document{
			Format:      FormatMarkdown,
			ContentType: "text/markdown; charset=utf-8",
			Filename:    video.Title + ".md",
			Body:        []byte(md),
		}, nil
	case FormatHTML:
		var buf bytes.Buffer
		if err := s.markdown.Convert([]byte(md), &buf); err != nil {
			return nil, models.WrapError(models.ErrCodeInternal, err, "failed to render HTML")
		}
		return &Document{
			Format:      FormatHTML,
			ContentType: "text/html; charset=utf-8",
			Filename:    video.Title + ".html",
			Body:        buf.Bytes(),
		}, nil
	case FormatPDF:
		body, err := renderSummaryPDF(video, summary)
		if err != nil {
			return nil, models.WrapError(models.ErrCodeInternal, err, "failed to render PDF")
		}
		return &Document{
			Format:      FormatPDF,
			ContentType: "application/pdf",
			Filename:    video.Title + ".pdf",
			Body:        body,
		}, nil
	default:
		return nil, models.NewAppError(models.ErrCodeValidation, "unsupported summary format: %s", format)
	}
}

func renderSRT(segments []models.TranscriptSegment) []byte {
	var b strings.Builder
	for i, seg := range segments {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n",
			i+1,
			formatTimestamp(seg.StartSeconds, ','),
			formatTimestamp(seg.EndSeconds, ','),
			seg.Text)
	}
	return []byte(b.String())
}

func renderVTT(segments []models.TranscriptSegment) []byte {
	var b strings.Builder
	b.WriteString("WEBVTT\n\n")
	for _, seg := range segments {
		fmt.Fprintf(&b, "%s --> %s\n%s\n\n",
			formatTimestamp(seg.StartSeconds, '.'),
			formatTimestamp(seg.EndSeconds, '.'),
			seg.Text)
	}
	return []byte(b.String())
}

// formatTimestamp renders HH:MM:SS{sep}mmm. SRT separates milliseconds with
// a comma, VTT with a period.
func formatTimestamp(seconds float64, sep byte) string {
	if seconds < 0 {
		seconds = 0
	}
	d := time.Duration(seconds * float64(time.Second))
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	ms := int(d.Milliseconds()) % 1000
	return fmt.Sprintf("%02d:%02d:%02d%c%03d", h, m, s, sep, ms)
}

func renderSummaryMarkdown(video *models.Video, summary *models.Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", video.Title)
	if summary.IsStale {
		b.WriteString("> Note: this summary was built from an older transcript.\n\n")
	}
	b.WriteString("## Overview\n\n")
	b.WriteString(summary.Overall)
	b.WriteString("\n\n## Outline\n\n")
	writeOutlineMarkdown(&b, summary.Outline, 0)
	if len(summary.Sections) > 0 {
		b.WriteString("\n## Section Summaries\n\n")
		for _, sec := range summary.Sections {
			fmt.Fprintf(&b, "### %s - %s\n\n%s\n\n",
				formatClock(sec.StartSeconds), formatClock(sec.EndSeconds), sec.Text)
		}
	}
	return b.String()
}

func writeOutlineMarkdown(b *strings.Builder, nodes []models.OutlineNode, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, node := range nodes {
		fmt.Fprintf(b, "%s- **%s** (%s - %s)\n", indent, node.Title,
			formatClock(node.StartSeconds), formatClock(node.EndSeconds))
		for _, bullet := range node.Bullets {
			fmt.Fprintf(b, "%s  - %s\n", indent, bullet)
		}
		writeOutlineMarkdown(b, node.Children, depth+1)
	}
}

func formatClock(seconds float64) string {
	d := time.Duration(seconds * float64(time.Second))
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

func renderSummaryPDF(video *models.Video, summary *models.Summary) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.MultiCell(0, 9, video.Title, "", "L", false)
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 13)
	pdf.CellFormat(0, 8, "Overview", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.MultiCell(0, 5.5, summary.Overall, "", "L", false)
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 13)
	pdf.CellFormat(0, 8, "Outline", "", 1, "L", false, 0, "")
	writeOutlinePDF(pdf, summary.Outline, 0)

	if len(summary.Sections) > 0 {
		pdf.Ln(4)
		pdf.SetFont("Helvetica", "B", 13)
		pdf.CellFormat(0, 8, "Section Summaries", "", 1, "L", false, 0, "")
		for _, sec := range summary.Sections {
			pdf.SetFont("Helvetica", "B", 11)
			pdf.CellFormat(0, 6, fmt.Sprintf("%s - %s", formatClock(sec.StartSeconds), formatClock(sec.EndSeconds)),
				"", 1, "L", false, 0, "")
			pdf.SetFont("Helvetica", "", 11)
			pdf.MultiCell(0, 5.5, sec.Text, "", "L", false)
			pdf.Ln(2)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeOutlinePDF(pdf *fpdf.Fpdf, nodes []models.OutlineNode, depth int) {
	for _, node := range nodes {
		pdf.SetX(pdf.GetX() + float64(depth)*5)
		pdf.SetFont("Helvetica", "B", 11)
		pdf.MultiCell(0, 5.5, fmt.Sprintf("%s (%s - %s)", node.Title,
			formatClock(node.StartSeconds), formatClock(node.EndSeconds)), "", "L", false)
		pdf.SetFont("Helvetica", "", 10)
		for _, bullet := range node.Bullets {
			pdf.SetX(pdf.GetX() + float64(depth)*5 + 4)
			pdf.MultiCell(0, 5, "- "+bullet, "", "L", false)
		}
		writeOutlinePDF(pdf, node.Children, depth+1)
	}
}
