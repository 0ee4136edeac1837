package workers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/interfaces"
	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/models"
	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/services/outline"
)

const sectionPrompt = `Summarize this transcript section of a video in 2-4 sentences.
Keep concrete facts, names and numbers. Do not editorialize.

Section covers %s to %s.

Transcript:
%s`

const overallPrompt = `These are chronological section summaries of one video.
Write a single cohesive summary of the whole video in one paragraph.

%s`

const outlinePrompt = `These are chronological section summaries of one video, each with its time range in seconds.
Produce a chapter outline as a JSON array. Each element:
{"title": string, "start_time": number, "end_time": number, "bullets": [string, ...]}
Chapters must be chronological and non-overlapping, covering 0 to %.0f seconds.
Respond with only the JSON array.

%s`

// SummarizeWorker runs map-reduce summarization. The map phase summarizes
// fixed transcript sections, persisting each as a checkpoint; the reduce
// phase produces the overall summary and chapter outline from the section
// summaries. A retried job redoes only the sections it has no checkpoint
// for, then the reduce.
type SummarizeWorker struct {
	transcript interfaces.TranscriptStorage
	summaries  interfaces.SummaryStorage
	llm        interfaces.LLMService
	llmSem     chan struct{}
	logger     arbor.ILogger
}

// NewSummarizeWorker creates the summarization stage handler. llmSem bounds
// concurrent LLM calls across the process and may be shared with other
// LLM-using components.
func NewSummarizeWorker(
	transcript interfaces.TranscriptStorage,
	summaries interfaces.SummaryStorage,
	llm interfaces.LLMService,
	llmSem chan struct{},
	logger arbor.ILogger,
) *SummarizeWorker {
	return &SummarizeWorker{
		transcript: transcript,
		summaries:  summaries,
		llm:        llm,
		llmSem:     llmSem,
		logger:     logger,
	}
}

// Type returns the job type this handler executes
func (w *SummarizeWorker) Type() models.JobType {
	return models.JobTypeSummarize
}

// Execute runs the map and reduce phases to a persisted summary
func (w *SummarizeWorker) Execute(ctx context.Context, job *models.Job, reporter interfaces.ProgressReporter) (interface{}, error) {
	params, err := job.DecodeParams()
	if err != nil {
		return nil, err
	}
	p := params.(*models.SummarizeParams)

	transcript, err := w.transcript.GetTranscript(ctx, job.VideoID)
	if err != nil {
		return nil, err
	}
	if len(transcript.Segments) == 0 {
		return nil, models.NewAppError(models.ErrCodeTranscriptNotFound,
			"video %s has no transcript segments to summarize", job.VideoID)
	}
	transcriptHash := transcript.ContentHash()

	if p.FromScratch {
		if err := w.summaries.ClearSections(ctx, job.VideoID); err != nil {
			return nil, err
		}
	}

	sections := splitSections(transcript, p.SectionSeconds)
	done := make(map[int]models.SectionSummary)
	existing, err := w.summaries.GetSections(ctx, job.VideoID)
	if err != nil {
		return nil, err
	}
	for _, sec := range existing {
		done[sec.Index] = sec
	}

	// Map phase: each completed section is a durable checkpoint. Sections
	// carrying a stale checkpoint (different bounds after a params change)
	// are redone.
	for i, section := range sections {
		if prev, ok := done[i]; ok && prev.StartSeconds == section.start && prev.EndSeconds == section.end {
			continue
		}
		if reporter.Cancelled(ctx) {
			return nil, models.NewAppError(models.ErrCodeCancelled,
				"summarization cancelled at section %d/%d", i, len(sections))
		}

		text, err := w.completeLLM(ctx, fmt.Sprintf(sectionPrompt,
			formatSeconds(section.start), formatSeconds(section.end), section.text), p.MaxTokens)
		if err != nil {
			return nil, err
		}

		sec := models.SectionSummary{
			Index:        i,
			StartSeconds: section.start,
			EndSeconds:   section.end,
			Text:         strings.TrimSpace(text),
		}
		if err := w.summaries.SaveSection(ctx, job.VideoID, sec); err != nil {
			return nil, err
		}
		done[i] = sec

		// Reserve the last 20% of progress for the reduce phase.
		progress := 0.8 * float64(i+1) / float64(len(sections))
		if err := reporter.Report(ctx, progress,
			fmt.Sprintf("summarized section %d/%d", i+1, len(sections))); err != nil {
			w.logger.Warn().Err(err).Str("job_id", job.ID).Msg("Progress write failed")
		}
	}

	if reporter.Cancelled(ctx) {
		return nil, models.NewAppError(models.ErrCodeCancelled, "summarization cancelled before reduce")
	}

	var sectionBlock strings.Builder
	sectionSummaries := make([]models.SectionSummary, 0, len(sections))
	for i := range sections {
		sec := done[i]
		sectionSummaries = append(sectionSummaries, sec)
		fmt.Fprintf(&sectionBlock, "[%.0f - %.0f] %s\n\n", sec.StartSeconds, sec.EndSeconds, sec.Text)
	}

	overall, err := w.completeLLM(ctx, fmt.Sprintf(overallPrompt, sectionBlock.String()), p.MaxTokens)
	if err != nil {
		return nil, err
	}
	if err := reporter.Report(ctx, 0.9, "building outline"); err != nil {
		w.logger.Warn().Err(err).Str("job_id", job.ID).Msg("Progress write failed")
	}

	outlineRaw, err := w.completeLLM(ctx,
		fmt.Sprintf(outlinePrompt, transcript.AudioDuration, sectionBlock.String()), p.MaxTokens)
	if err != nil {
		return nil, err
	}
	nodes, err := outline.Parse(outlineRaw)
	if err != nil {
		return nil, err
	}

	summary := &models.Summary{
		VideoID:        job.VideoID,
		Overall:        strings.TrimSpace(overall),
		Outline:        nodes,
		Sections:       sectionSummaries,
		Params:         p,
		TranscriptHash: transcriptHash,
		CreatedAt:      time.Now().UTC(),
	}
	if err := w.summaries.SaveSummary(ctx, summary); err != nil {
		return nil, err
	}

	return &models.SummarizeResult{
		SectionCount:   len(sections),
		OutlineNodes:   models.CountOutlineNodes(nodes),
		TranscriptHash: transcriptHash,
	}, nil
}

func (w *SummarizeWorker) completeLLM(ctx context.Context, prompt string, maxTokens int) (string, error) {
	select {
	case w.llmSem <- struct{}{}:
		defer func() { <-w.llmSem }()
	case <-ctx.Done():
		return "", models.WrapError(models.ErrCodeCancelled, ctx.Err(), "cancelled while waiting for LLM slot")
	}
	return w.llm.Complete(ctx, prompt, maxTokens)
}

type sectionSpan struct {
	start float64
	end   float64
	text  string
}

// splitSections partitions the transcript into fixed time sections. A
// segment belongs to the section its start time falls in.
func splitSections(t *models.Transcript, sectionSeconds float64) []sectionSpan {
	duration := t.AudioDuration
	if last := t.Segments[len(t.Segments)-1].EndSeconds; last > duration {
		duration = last
	}

	var sections []sectionSpan
	for start := 0.0; start < duration; start += sectionSeconds {
		end := start + sectionSeconds
		if end > duration {
			end = duration
		}

		var texts []string
		for _, seg := range t.Segments {
			if seg.StartSeconds >= start && seg.StartSeconds < end {
				texts = append(texts, seg.Text)
			}
		}
		if len(texts) == 0 {
			continue
		}
		sections = append(sections, sectionSpan{start: start, end: end, text: strings.Join(texts, " ")})
	}
	return sections
}

func formatSeconds(sec float64) string {
	d := time.Duration(sec * float64(time.Second))
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%d:%02d", m, s)
}
