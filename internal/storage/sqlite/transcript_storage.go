package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/models"
)

// TranscriptStorage is the append-only transcript log plus resume cursor.
// Each AppendWindow call is one durable checkpoint: after a crash, the next
// run re-reads next_window and picks up exactly where the last commit left
// off.
type TranscriptStorage struct {
	db     *DB
	logger arbor.ILogger
}

// NewTranscriptStorage creates a SQLite-backed transcript storage
func NewTranscriptStorage(db *DB, logger arbor.ILogger) *TranscriptStorage {
	return &TranscriptStorage{db: db, logger: logger}
}

// GetTranscript loads the full segment log and resume state
func (s *TranscriptStorage) GetTranscript(ctx context.Context, videoID string) (*models.Transcript, error) {
	t := &models.Transcript{VideoID: videoID}

	err := s.db.SQL().QueryRowContext(ctx, `
		SELECT next_window, window_count, audio_duration
		FROM transcript_state WHERE video_id = ?`, videoID).
		Scan(&t.NextWindow, &t.WindowCount, &t.AudioDuration)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NewAppError(models.ErrCodeTranscriptNotFound, "no transcript for video: %s", videoID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transcript state: %w", err)
	}

	rows, err := s.db.SQL().QueryContext(ctx, `
		SELECT seq, window_idx, start_seconds, end_seconds, text
		FROM transcript_segments WHERE video_id = ? ORDER BY seq`, videoID)
	if err != nil {
		return nil, fmt.Errorf("failed to load transcript segments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var seg models.TranscriptSegment
		if err := rows.Scan(&seg.Seq, &seg.WindowIndex, &seg.StartSeconds,
			&seg.EndSeconds, &seg.Text); err != nil {
			return nil, fmt.Errorf("failed to scan transcript segment: %w", err)
		}
		t.Segments = append(t.Segments, seg)
	}
	return t, rows.Err()
}

// InitState records the planned window count and audio duration before the
// first window runs. Idempotent: a resumed job re-initializing keeps the
// existing cursor.
func (s *TranscriptStorage) InitState(ctx context.Context, videoID string, windowCount int, audioDuration float64) error {
	_, err := s.db.SQL().ExecContext(ctx, `
		INSERT INTO transcript_state (video_id, next_window, window_count, audio_duration, updated_at)
		VALUES (?, 0, ?, ?, ?)
		ON CONFLICT(video_id) DO UPDATE SET
			window_count = excluded.window_count,
			audio_duration = excluded.audio_duration,
			updated_at = excluded.updated_at`,
		videoID, windowCount, audioDuration, nowMillis())
	if err != nil {
		return fmt.Errorf("failed to init transcript state: %w", err)
	}
	return nil
}

// AppendWindow durably appends one window's segments and advances the resume
// cursor in one transaction. Re-appending an already-committed window is a
// no-op so a worker that crashed between commit and progress write cannot
// duplicate segments.
func (s *TranscriptStorage) AppendWindow(ctx context.Context, videoID string, windowIndex int, segments []models.TranscriptSegment) error {
	tx, err := s.db.SQL().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var nextWindow int
	err = tx.QueryRowContext(ctx,
		"SELECT next_window FROM transcript_state WHERE video_id = ?", videoID).
		Scan(&nextWindow)
	if errors.Is(err, sql.ErrNoRows) {
		return models.NewAppError(models.ErrCodeInvalidState, "transcript state not initialized for video: %s", videoID)
	}
	if err != nil {
		return fmt.Errorf("failed to read transcript cursor: %w", err)
	}
	if windowIndex < nextWindow {
		return tx.Commit()
	}
	if windowIndex > nextWindow {
		return models.NewAppError(models.ErrCodeInvalidState,
			"window %d appended out of order (next is %d)", windowIndex, nextWindow)
	}

	for _, seg := range segments {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO transcript_segments (video_id, seq, window_idx, start_seconds, end_seconds, text)
			VALUES (?, ?, ?, ?, ?, ?)`,
			videoID, seg.Seq, windowIndex, seg.StartSeconds, seg.EndSeconds, seg.Text); err != nil {
			return fmt.Errorf("failed to insert transcript segment: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE transcript_state SET next_window = ?, updated_at = ?
		WHERE video_id = ?`,
		windowIndex+1, nowMillis(), videoID); err != nil {
		return fmt.Errorf("failed to advance transcript cursor: %w", err)
	}
	return tx.Commit()
}

// Truncate removes all segments and resume state
func (s *TranscriptStorage) Truncate(ctx context.Context, videoID string) error {
	tx, err := s.db.SQL().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM transcript_segments WHERE video_id = ?", videoID); err != nil {
		return fmt.Errorf("failed to delete transcript segments: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM transcript_state WHERE video_id = ?", videoID); err != nil {
		return fmt.Errorf("failed to delete transcript state: %w", err)
	}
	return tx.Commit()
}
