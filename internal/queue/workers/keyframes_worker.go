package workers

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/ternarybob/arbor"

	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/interfaces"
	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/models"
	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/services/keyframes"
)

// KeyframesWorker extracts representative frames by fixed interval or scene
// change, stores them with their timestamps, and attaches them to the
// video's summary chapters when a summary exists. Extraction restarts rather
// than resumes; frame extraction is cheap relative to the other stages.
type KeyframesWorker struct {
	videos    interfaces.VideoStorage
	keyframes interfaces.KeyframeStorage
	summaries interfaces.SummaryStorage
	media     interfaces.MediaTool
	workspace string
	logger    arbor.ILogger
}

// NewKeyframesWorker creates the keyframe stage handler
func NewKeyframesWorker(
	videos interfaces.VideoStorage,
	keyframeStore interfaces.KeyframeStorage,
	summaries interfaces.SummaryStorage,
	media interfaces.MediaTool,
	workspace string,
	logger arbor.ILogger,
) *KeyframesWorker {
	return &KeyframesWorker{
		videos:    videos,
		keyframes: keyframeStore,
		summaries: summaries,
		media:     media,
		workspace: workspace,
		logger:    logger,
	}
}

// Type returns the job type this handler executes
func (w *KeyframesWorker) Type() models.JobType {
	return models.JobTypeKeyframes
}

// Execute extracts and persists the video's keyframe set
func (w *KeyframesWorker) Execute(ctx context.Context, job *models.Job, reporter interfaces.ProgressReporter) (interface{}, error) {
	params, err := job.DecodeParams()
	if err != nil {
		return nil, err
	}
	p := params.(*models.KeyframeParams)

	video, err := w.videos.GetVideo(ctx, job.VideoID)
	if err != nil {
		return nil, err
	}

	duration := video.DurationSeconds
	if duration <= 0 {
		duration, err = w.media.ProbeDuration(ctx, video.FilePath)
		if err != nil {
			return nil, err
		}
	}

	var plan []interfaces.SceneCandidate
	switch p.Method {
	case models.KeyframeMethodScene:
		candidates, err := w.media.DetectScenes(ctx, video.FilePath)
		if err != nil {
			return nil, err
		}
		plan = keyframes.SelectSceneTimestamps(candidates, p.SceneThreshold, p.MaxFrames, p.MinGapSeconds)
		if len(plan) == 0 {
			// A static video produces no scene changes; fall back to one
			// representative frame so the job still yields something usable.
			plan = []interfaces.SceneCandidate{{TimestampSeconds: duration / 2}}
		}
	case models.KeyframeMethodInterval:
		for _, ts := range keyframes.IntervalTimestamps(duration, p.IntervalSeconds, p.MaxFrames) {
			plan = append(plan, interfaces.SceneCandidate{TimestampSeconds: ts})
		}
	default:
		return nil, models.NewAppError(models.ErrCodeValidation, "unknown keyframe method: %s", p.Method)
	}

	framesDir := filepath.Join(w.workspace, video.ID, "frames")
	frames := make([]models.Keyframe, 0, len(plan))
	for i, candidate := range plan {
		if reporter.Cancelled(ctx) {
			return nil, models.NewAppError(models.ErrCodeCancelled,
				"keyframe extraction cancelled at frame %d/%d", i, len(plan))
		}

		imagePath := filepath.Join(framesDir, fmt.Sprintf("frame_%05d.jpg", i))
		width, height, err := w.media.ExtractFrame(ctx, video.FilePath, imagePath, candidate.TimestampSeconds, 0)
		if err != nil {
			return nil, err
		}

		frames = append(frames, models.Keyframe{
			VideoID:     video.ID,
			TimestampMS: int64(candidate.TimestampSeconds * 1000),
			ImagePath:   imagePath,
			Width:       width,
			Height:      height,
			Method:      p.Method,
			Score:       candidate.Score,
		})

		progress := float64(i+1) / float64(len(plan))
		if err := reporter.Report(ctx, progress,
			fmt.Sprintf("extracted frame %d/%d", i+1, len(plan))); err != nil {
			w.logger.Warn().Err(err).Str("job_id", job.ID).Msg("Progress write failed")
		}
	}

	if err := w.keyframes.ReplaceKeyframes(ctx, video.ID, p.Method, frames); err != nil {
		return nil, err
	}

	return &models.KeyframeResult{
		FrameCount: len(frames),
		Method:     p.Method,
		Sections:   w.alignToOutline(ctx, video.ID, plan, p),
	}, nil
}

// alignToOutline attaches the extracted frames to the video's summary
// chapters. A video without a summary gets no chapter attachment; extraction
// stands on its own.
func (w *KeyframesWorker) alignToOutline(ctx context.Context, videoID string, frames []interfaces.SceneCandidate, p *models.KeyframeParams) []models.SectionKeyframes {
	summary, err := w.summaries.GetSummary(ctx, videoID)
	if err != nil {
		if !models.IsCode(err, models.ErrCodeSummaryNotFound) {
			w.logger.Warn().Err(err).Str("video_id", videoID).Msg("Summary lookup failed, skipping chapter alignment")
		}
		return nil
	}

	scored := p.Method == models.KeyframeMethodScene
	var sections []models.SectionKeyframes
	for _, node := range chapterWindows(summary.Outline) {
		chosen := keyframes.SelectForSection(frames, node.StartSeconds, node.EndSeconds,
			p.PerSection, p.MinGapSeconds, scored, p.Fallback)
		timestamps := make([]int64, 0, len(chosen))
		for _, c := range chosen {
			timestamps = append(timestamps, int64(c.TimestampSeconds*1000))
		}
		sections = append(sections, models.SectionKeyframes{
			Title:        node.Title,
			StartSeconds: node.StartSeconds,
			EndSeconds:   node.EndSeconds,
			TimestampsMS: timestamps,
		})
	}
	return sections
}

// chapterWindows flattens the one-level outline tree into alignment windows,
// preferring a node's children when it has them.
func chapterWindows(nodes []models.OutlineNode) []models.OutlineNode {
	var flat []models.OutlineNode
	for _, node := range nodes {
		if len(node.Children) > 0 {
			flat = append(flat, node.Children...)
			continue
		}
		flat = append(flat, node)
	}
	return flat
}
