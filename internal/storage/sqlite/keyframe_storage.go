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

// KeyframeStorage persists extracted keyframes
type KeyframeStorage struct {
	db     *DB
	logger arbor.ILogger
}

// NewKeyframeStorage creates a SQLite-backed keyframe storage
func NewKeyframeStorage(db *DB, logger arbor.ILogger) *KeyframeStorage {
	return &KeyframeStorage{db: db, logger: logger}
}

// ReplaceKeyframes atomically swaps the video's keyframe set for the given
// extraction method. Frames from other methods are left in place.
func (s *KeyframeStorage) ReplaceKeyframes(ctx context.Context, videoID string, method models.KeyframeMethod, frames []models.Keyframe) error {
	tx, err := s.db.SQL().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM keyframes WHERE video_id = ? AND method = ?",
		videoID, string(method)); err != nil {
		return fmt.Errorf("failed to clear keyframes: %w", err)
	}

	for _, f := range frames {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO keyframes (video_id, timestamp_ms, image_path, width, height, method, score)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			videoID, f.TimestampMS, f.ImagePath, f.Width, f.Height,
			string(method), f.Score); err != nil {
			return fmt.Errorf("failed to insert keyframe: %w", err)
		}
	}
	return tx.Commit()
}

// ListKeyframes returns the video's keyframes ordered by timestamp
func (s *KeyframeStorage) ListKeyframes(ctx context.Context, videoID string) ([]models.Keyframe, error) {
	rows, err := s.db.SQL().QueryContext(ctx, `
		SELECT id, video_id, timestamp_ms, image_path, width, height, method, score
		FROM keyframes WHERE video_id = ? ORDER BY timestamp_ms, id`, videoID)
	if err != nil {
		return nil, fmt.Errorf("failed to list keyframes: %w", err)
	}
	defer rows.Close()

	var frames []models.Keyframe
	for rows.Next() {
		var f models.Keyframe
		var method string
		if err := rows.Scan(&f.ID, &f.VideoID, &f.TimestampMS, &f.ImagePath,
			&f.Width, &f.Height, &method, &f.Score); err != nil {
			return nil, fmt.Errorf("failed to scan keyframe: %w", err)
		}
		f.Method = models.KeyframeMethod(method)
		frames = append(frames, f)
	}
	return frames, rows.Err()
}

// DeleteKeyframes removes all keyframe rows for a video
func (s *KeyframeStorage) DeleteKeyframes(ctx context.Context, videoID string) error {
	if _, err := s.db.SQL().ExecContext(ctx,
		"DELETE FROM keyframes WHERE video_id = ?", videoID); err != nil {
		return fmt.Errorf("failed to delete keyframes: %w", err)
	}
	return nil
}

// IndexStateStorage records staleness bookkeeping for the vector index
type IndexStateStorage struct {
	db     *DB
	logger arbor.ILogger
}

// NewIndexStateStorage creates a SQLite-backed index state storage
func NewIndexStateStorage(db *DB, logger arbor.ILogger) *IndexStateStorage {
	return &IndexStateStorage{db: db, logger: logger}
}

// SaveIndexState upserts the last successful index state for a video
func (s *IndexStateStorage) SaveIndexState(ctx context.Context, state *models.IndexState) error {
	if state.IndexedAtUnix == 0 {
		state.IndexedAtUnix = time.Now().Unix()
	}
	_, err := s.db.SQL().ExecContext(ctx, `
		INSERT INTO index_state (video_id, transcript_hash, collection, chunk_count, indexed_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(video_id) DO UPDATE SET
			transcript_hash = excluded.transcript_hash,
			collection = excluded.collection,
			chunk_count = excluded.chunk_count,
			indexed_at = excluded.indexed_at`,
		state.VideoID, state.TranscriptHash, state.Collection,
		state.ChunkCount, state.IndexedAtUnix)
	if err != nil {
		return fmt.Errorf("failed to save index state: %w", err)
	}
	return nil
}

// GetIndexState returns the last successful index state, or nil
func (s *IndexStateStorage) GetIndexState(ctx context.Context, videoID string) (*models.IndexState, error) {
	var state models.IndexState
	err := s.db.SQL().QueryRowContext(ctx, `
		SELECT video_id, transcript_hash, collection, chunk_count, indexed_at
		FROM index_state WHERE video_id = ?`, videoID).
		Scan(&state.VideoID, &state.TranscriptHash, &state.Collection,
			&state.ChunkCount, &state.IndexedAtUnix)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get index state: %w", err)
	}
	return &state, nil
}

// DeleteIndexState removes the index state row for a video
func (s *IndexStateStorage) DeleteIndexState(ctx context.Context, videoID string) error {
	if _, err := s.db.SQL().ExecContext(ctx,
		"DELETE FROM index_state WHERE video_id = ?", videoID); err != nil {
		return fmt.Errorf("failed to delete index state: %w", err)
	}
	return nil
}
