package library

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/common"
	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/interfaces"
	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/models"
)

// Service manages the video library: content-addressed import and the
// cascading delete of everything derived from a video.
type Service struct {
	videos     interfaces.VideoStorage
	jobs       interfaces.JobStorage
	transcript interfaces.TranscriptStorage
	summaries  interfaces.SummaryStorage
	keyframes  interfaces.KeyframeStorage
	indexState interfaces.IndexStateStorage
	vectors    interfaces.VectorStore
	media      interfaces.MediaTool
	events     interfaces.EventService
	workspace  string
	logger     arbor.ILogger
}

// NewService creates the library service
func NewService(
	videos interfaces.VideoStorage,
	jobs interfaces.JobStorage,
	transcript interfaces.TranscriptStorage,
	summaries interfaces.SummaryStorage,
	keyframes interfaces.KeyframeStorage,
	indexState interfaces.IndexStateStorage,
	vectors interfaces.VectorStore,
	media interfaces.MediaTool,
	events interfaces.EventService,
	workspace string,
	logger arbor.ILogger,
) *Service {
	return &Service{
		videos:     videos,
		jobs:       jobs,
		transcript: transcript,
		summaries:  summaries,
		keyframes:  keyframes,
		indexState: indexState,
		vectors:    vectors,
		media:      media,
		events:     events,
		workspace:  workspace,
		logger:     logger,
	}
}

// ImportVideo registers a local media file. The video ID is derived from the
// file content hash, so importing the same bytes twice (even from a moved
// file) resolves to the existing record with its path refreshed.
func (s *Service) ImportVideo(ctx context.Context, filePath, title string) (*models.Video, bool, error) {
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return nil, false, models.WrapError(models.ErrCodeValidation, err, "invalid file path: %s", filePath)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, false, models.WrapError(models.ErrCodeNotFound, err, "video file not found: %s", absPath)
	}
	if info.IsDir() {
		return nil, false, models.NewAppError(models.ErrCodeValidation, "path is a directory: %s", absPath)
	}

	hash, err := common.HashFile(absPath)
	if err != nil {
		return nil, false, models.WrapError(models.ErrCodeInternal, err, "failed to hash file")
	}

	existing, err := s.videos.GetVideoByHash(ctx, hash)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		if existing.FilePath != absPath {
			existing.FilePath = absPath
			if err := s.videos.UpsertVideo(ctx, existing); err != nil {
				return nil, false, err
			}
		}
		s.logger.Debug().Str("video_id", existing.ID).Msg("Import matched existing video by content hash")
		return existing, false, nil
	}

	if title == "" {
		title = strings.TrimSuffix(filepath.Base(absPath), filepath.Ext(absPath))
	}
	video := &models.Video{
		ID:       common.VideoIDFromHash(hash),
		FilePath: absPath,
		FileHash: hash,
		Title:    title,
		FileSize: info.Size(),
		Status:   models.VideoStatusPending,
	}

	if duration, err := s.media.ProbeDuration(ctx, absPath); err == nil {
		video.DurationSeconds = duration
	} else {
		s.logger.Warn().Err(err).Str("path", absPath).Msg("Failed to probe video duration at import")
	}

	if err := s.videos.UpsertVideo(ctx, video); err != nil {
		return nil, false, err
	}

	s.events.Publish(ctx, interfaces.Event{Type: interfaces.EventVideoUpdated, Payload: video})
	s.logger.Info().Str("video_id", video.ID).Str("path", absPath).Msg("Video imported")
	return video, true, nil
}

// GetVideo returns one video record
func (s *Service) GetVideo(ctx context.Context, videoID string) (*models.Video, error) {
	return s.videos.GetVideo(ctx, videoID)
}

// ListVideos returns a page of the library plus the total count
func (s *Service) ListVideos(ctx context.Context, limit, offset int) ([]*models.Video, int, error) {
	return s.videos.ListVideos(ctx, limit, offset)
}

// WorkspaceDir is where a video's derived artifacts (audio windows, frames)
// live on disk.
func (s *Service) WorkspaceDir(videoID string) string {
	return filepath.Join(s.workspace, videoID)
}

// DeleteVideoData removes the video and every derived artifact: jobs,
// transcript, summary, keyframes, vector collection entries and the
// workspace directory. The original media file is never touched. The
// operation is destructive, so it refuses to run without confirm.
func (s *Service) DeleteVideoData(ctx context.Context, videoID string, confirm bool) error {
	if !confirm {
		return models.NewAppError(models.ErrCodeConfirmRequired,
			"deleting video data is irreversible; repeat with confirm=true")
	}

	video, err := s.videos.GetVideo(ctx, videoID)
	if err != nil {
		return err
	}

	// Refuse while work is in flight; cancel first.
	for _, jobType := range []models.JobType{
		models.JobTypeTranscribe, models.JobTypeIndex,
		models.JobTypeSummarize, models.JobTypeKeyframes,
	} {
		active, err := s.jobs.FindActiveJob(ctx, videoID, jobType)
		if err != nil {
			return err
		}
		if active != nil {
			return models.NewAppError(models.ErrCodeInvalidState,
				"video %s has an active %s job (%s); cancel it before deleting", videoID, jobType, active.ID)
		}
	}

	if state, err := s.indexState.GetIndexState(ctx, videoID); err == nil && state != nil {
		// Chunk ids are deterministic ("{videoID}_{index}"), so the recorded
		// chunk count names every record this video owns in the shared
		// collection.
		ids := make([]string, 0, state.ChunkCount)
		for i := 0; i < state.ChunkCount; i++ {
			ids = append(ids, fmt.Sprintf("%s_%d", videoID, i))
		}
		if err := s.vectors.DeleteRecords(ctx, state.Collection, ids); err != nil {
			s.logger.Warn().Err(err).Str("video_id", videoID).Msg("Failed to drop vector entries")
		}
	}

	if err := s.jobs.DeleteJobsForVideo(ctx, videoID); err != nil {
		return err
	}
	if err := s.transcript.Truncate(ctx, videoID); err != nil {
		return err
	}
	if err := s.summaries.DeleteSummary(ctx, videoID); err != nil {
		return err
	}
	if err := s.keyframes.DeleteKeyframes(ctx, videoID); err != nil {
		return err
	}
	if err := s.indexState.DeleteIndexState(ctx, videoID); err != nil {
		return err
	}
	if err := s.videos.DeleteVideo(ctx, videoID); err != nil {
		return err
	}

	if err := os.RemoveAll(s.WorkspaceDir(videoID)); err != nil {
		s.logger.Warn().Err(err).Str("video_id", videoID).Msg("Failed to remove workspace directory")
	}

	s.events.Publish(ctx, interfaces.Event{Type: interfaces.EventVideoUpdated, Payload: video})
	s.logger.Info().Str("video_id", videoID).Msg("Video data deleted")
	return nil
}
