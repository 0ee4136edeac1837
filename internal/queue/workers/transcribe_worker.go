package workers

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/ternarybob/arbor"

	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/interfaces"
	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/models"
)

// TranscribeWorker runs the windowed transcription stage. The video's audio
// is split into fixed windows; each window is extracted, transcribed and
// appended to the transcript log as one durable checkpoint. A retried job
// resumes at the first window the log does not yet contain.
type TranscribeWorker struct {
	videos     interfaces.VideoStorage
	transcript interfaces.TranscriptStorage
	media      interfaces.MediaTool
	asr        interfaces.ASRService
	workspace  string
	logger     arbor.ILogger
}

// NewTranscribeWorker creates the transcription stage handler
func NewTranscribeWorker(
	videos interfaces.VideoStorage,
	transcript interfaces.TranscriptStorage,
	media interfaces.MediaTool,
	asr interfaces.ASRService,
	workspace string,
	logger arbor.ILogger,
) *TranscribeWorker {
	return &TranscribeWorker{
		videos:     videos,
		transcript: transcript,
		media:      media,
		asr:        asr,
		workspace:  workspace,
		logger:     logger,
	}
}

// Type returns the job type this handler executes
func (w *TranscribeWorker) Type() models.JobType {
	return models.JobTypeTranscribe
}

// Execute runs transcription to completion or the next cancel checkpoint
func (w *TranscribeWorker) Execute(ctx context.Context, job *models.Job, reporter interfaces.ProgressReporter) (interface{}, error) {
	params, err := job.DecodeParams()
	if err != nil {
		return nil, err
	}
	p := params.(*models.TranscribeParams)

	video, err := w.videos.GetVideo(ctx, job.VideoID)
	if err != nil {
		return nil, err
	}

	if p.FromScratch {
		if err := w.transcript.Truncate(ctx, video.ID); err != nil {
			return nil, err
		}
	}

	duration := video.DurationSeconds
	if duration <= 0 {
		duration, err = w.media.ProbeDuration(ctx, video.FilePath)
		if err != nil {
			return nil, err
		}
		if err := w.videos.SetVideoDuration(ctx, video.ID, duration); err != nil {
			return nil, err
		}
	}
	if duration <= 0 {
		return nil, models.NewAppError(models.ErrCodeValidation, "video %s has no audio duration", video.ID)
	}

	windowCount := int(math.Ceil(duration / p.SegmentSeconds))

	nextWindow := 0
	nextSeq := 0
	resumed := false
	existing, err := w.transcript.GetTranscript(ctx, video.ID)
	if err != nil && !models.IsCode(err, models.ErrCodeTranscriptNotFound) {
		return nil, err
	}
	if existing != nil {
		nextWindow = existing.NextWindow
		nextSeq = len(existing.Segments)
		resumed = nextWindow > 0
	}

	if err := w.transcript.InitState(ctx, video.ID, windowCount, duration); err != nil {
		return nil, err
	}

	audioDir := filepath.Join(w.workspace, video.ID, "audio")
	for window := nextWindow; window < windowCount; window++ {
		if reporter.Cancelled(ctx) {
			return nil, models.NewAppError(models.ErrCodeCancelled,
				"transcription cancelled at window %d/%d", window, windowCount)
		}

		start := float64(window) * p.SegmentSeconds
		extractDur := p.SegmentSeconds + p.OverlapSeconds
		wavPath := filepath.Join(audioDir, fmt.Sprintf("window_%05d.wav", window))

		if err := w.media.ExtractAudioWindow(ctx, video.FilePath, wavPath, start, extractDur); err != nil {
			return nil, err
		}

		asrSegments, err := w.asr.Transcribe(ctx, wavPath, p.Language)
		os.Remove(wavPath)
		if err != nil {
			return nil, err
		}

		segments := w.absoluteSegments(asrSegments, window, start, p.SegmentSeconds, duration, &nextSeq)
		if err := w.transcript.AppendWindow(ctx, video.ID, window, segments); err != nil {
			return nil, err
		}

		progress := float64(window+1) / float64(windowCount)
		if err := reporter.Report(ctx, progress,
			fmt.Sprintf("transcribed window %d/%d", window+1, windowCount)); err != nil {
			w.logger.Warn().Err(err).Str("job_id", job.ID).Msg("Progress write failed")
		}
	}

	final, err := w.transcript.GetTranscript(ctx, video.ID)
	if err != nil {
		return nil, err
	}

	return &models.TranscribeResult{
		SegmentCount:    len(final.Segments),
		WindowCount:     windowCount,
		AudioDuration:   duration,
		TranscriptHash:  final.ContentHash(),
		ResumedFromZero: !resumed,
	}, nil
}

// absoluteSegments shifts window-relative ASR timings to video-absolute
// seconds and drops segments starting in the trailing overlap, which the
// next window transcribes as its own lead-in.
func (w *TranscribeWorker) absoluteSegments(asrSegments []interfaces.ASRSegment, window int, windowStart, segmentSeconds, duration float64, nextSeq *int) []models.TranscriptSegment {
	windowEnd := windowStart + segmentSeconds
	lastWindow := windowEnd >= duration

	var segments []models.TranscriptSegment
	for _, seg := range asrSegments {
		absStart := windowStart + seg.StartSeconds
		if !lastWindow && absStart >= windowEnd {
			continue
		}
		absEnd := windowStart + seg.EndSeconds
		if absEnd > duration {
			absEnd = duration
		}
		segments = append(segments, models.TranscriptSegment{
			Seq:          *nextSeq,
			WindowIndex:  window,
			StartSeconds: absStart,
			EndSeconds:   absEnd,
			Text:         seg.Text,
		})
		*nextSeq++
	}
	return segments
}
