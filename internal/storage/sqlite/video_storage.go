package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/models"
)

const videoColumns = `id, file_path, file_hash, title, duration_seconds, file_size,
	status, created_at, updated_at`

// VideoStorage is the SQLite-backed video metadata table
type VideoStorage struct {
	db     *DB
	logger arbor.ILogger
}

// NewVideoStorage creates a SQLite-backed video storage
func NewVideoStorage(db *DB, logger arbor.ILogger) *VideoStorage {
	return &VideoStorage{db: db, logger: logger}
}

// UpsertVideo inserts or refreshes a video record keyed by file hash. The
// content-addressed ID means the same bytes at a new path update the
// existing row rather than creating a duplicate.
func (s *VideoStorage) UpsertVideo(ctx context.Context, video *models.Video) error {
	if err := video.Validate(); err != nil {
		return models.WrapError(models.ErrCodeValidation, err, "invalid video")
	}
	now := nowMillis()
	_, err := s.db.SQL().ExecContext(ctx, `
		INSERT INTO videos (id, file_path, file_hash, title, duration_seconds,
			file_size, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(file_hash) DO UPDATE SET
			file_path = excluded.file_path,
			title = excluded.title,
			file_size = excluded.file_size,
			updated_at = excluded.updated_at`,
		video.ID, video.FilePath, video.FileHash, video.Title,
		video.DurationSeconds, video.FileSize, string(video.Status), now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert video: %w", err)
	}
	return nil
}

// GetVideo returns the video or a VIDEO_NOT_FOUND error
func (s *VideoStorage) GetVideo(ctx context.Context, videoID string) (*models.Video, error) {
	row := s.db.SQL().QueryRowContext(ctx,
		"SELECT "+videoColumns+" FROM videos WHERE id = ?", videoID)
	video, err := scanVideo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NewAppError(models.ErrCodeVideoNotFound, "video not found: %s", videoID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get video: %w", err)
	}
	return video, nil
}

// GetVideoByHash returns the video with the given file hash, or nil
func (s *VideoStorage) GetVideoByHash(ctx context.Context, fileHash string) (*models.Video, error) {
	row := s.db.SQL().QueryRowContext(ctx,
		"SELECT "+videoColumns+" FROM videos WHERE file_hash = ?", fileHash)
	video, err := scanVideo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get video by hash: %w", err)
	}
	return video, nil
}

// ListVideos returns a page of videos plus the total count, newest first
func (s *VideoStorage) ListVideos(ctx context.Context, limit, offset int) ([]*models.Video, int, error) {
	var total int
	if err := s.db.SQL().QueryRowContext(ctx,
		"SELECT COUNT(1) FROM videos").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count videos: %w", err)
	}

	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.db.SQL().QueryContext(ctx,
		"SELECT "+videoColumns+" FROM videos ORDER BY created_at DESC, id LIMIT ? OFFSET ?",
		limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list videos: %w", err)
	}
	defer rows.Close()

	videos := make([]*models.Video, 0, limit)
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan video: %w", err)
		}
		videos = append(videos, video)
	}
	return videos, total, rows.Err()
}

// SetVideoStatus transitions the video lifecycle status
func (s *VideoStorage) SetVideoStatus(ctx context.Context, videoID string, status models.VideoStatus) error {
	res, err := s.db.SQL().ExecContext(ctx,
		"UPDATE videos SET status = ?, updated_at = ? WHERE id = ?",
		string(status), nowMillis(), videoID)
	if err != nil {
		return fmt.Errorf("failed to set video status: %w", err)
	}
	return requireVideoAffected(res, videoID)
}

// SetVideoDuration records the probed media duration
func (s *VideoStorage) SetVideoDuration(ctx context.Context, videoID string, seconds float64) error {
	res, err := s.db.SQL().ExecContext(ctx,
		"UPDATE videos SET duration_seconds = ?, updated_at = ? WHERE id = ?",
		seconds, nowMillis(), videoID)
	if err != nil {
		return fmt.Errorf("failed to set video duration: %w", err)
	}
	return requireVideoAffected(res, videoID)
}

// DeleteVideo removes the video row
func (s *VideoStorage) DeleteVideo(ctx context.Context, videoID string) error {
	res, err := s.db.SQL().ExecContext(ctx,
		"DELETE FROM videos WHERE id = ?", videoID)
	if err != nil {
		return fmt.Errorf("failed to delete video: %w", err)
	}
	return requireVideoAffected(res, videoID)
}

func requireVideoAffected(res sql.Result, videoID string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return models.NewAppError(models.ErrCodeVideoNotFound, "video not found: %s", videoID)
	}
	return nil
}

func scanVideo(row rowScanner) (*models.Video, error) {
	var (
		video                models.Video
		status               string
		createdAt, updatedAt int64
	)
	err := row.Scan(&video.ID, &video.FilePath, &video.FileHash, &video.Title,
		&video.DurationSeconds, &video.FileSize, &status, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	video.Status = models.VideoStatus(status)
	video.CreatedAt = time.UnixMilli(createdAt).UTC()
	video.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return &video, nil
}
