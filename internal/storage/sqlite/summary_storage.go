package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/models"
)

// SummaryStorage persists the latest summary per video plus the map-phase
// section checkpoints a resumed summarization job reuses.
type SummaryStorage struct {
	db     *DB
	logger arbor.ILogger
}

// NewSummaryStorage creates a SQLite-backed summary storage
func NewSummaryStorage(db *DB, logger arbor.ILogger) *SummaryStorage {
	return &SummaryStorage{db: db, logger: logger}
}

// SaveSummary replaces the video's summary (latest wins)
func (s *SummaryStorage) SaveSummary(ctx context.Context, summary *models.Summary) error {
	outlineJSON, err := json.Marshal(summary.Outline)
	if err != nil {
		return fmt.Errorf("failed to marshal outline: %w", err)
	}
	paramsJSON, err := json.Marshal(summary.Params)
	if err != nil {
		return fmt.Errorf("failed to marshal summary params: %w", err)
	}

	now := nowMillis()
	_, err = s.db.SQL().ExecContext(ctx, `
		INSERT INTO summaries (video_id, overall, outline_json, params_json, transcript_hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(video_id) DO UPDATE SET
			overall = excluded.overall,
			outline_json = excluded.outline_json,
			params_json = excluded.params_json,
			transcript_hash = excluded.transcript_hash,
			created_at = excluded.created_at`,
		summary.VideoID, summary.Overall, string(outlineJSON), string(paramsJSON),
		summary.TranscriptHash, now)
	if err != nil {
		return fmt.Errorf("failed to save summary: %w", err)
	}
	summary.CreatedAt = time.UnixMilli(now).UTC()
	return nil
}

// GetSummary returns the summary with its persisted sections, or a
// SUMMARY_NOT_FOUND error. Staleness is the caller's call: it depends on the
// current transcript hash, which this storage does not know.
func (s *SummaryStorage) GetSummary(ctx context.Context, videoID string) (*models.Summary, error) {
	var (
		summary     models.Summary
		outlineJSON string
		paramsJSON  string
		createdAt   int64
	)
	err := s.db.SQL().QueryRowContext(ctx, `
		SELECT video_id, overall, outline_json, params_json, transcript_hash, created_at
		FROM summaries WHERE video_id = ?`, videoID).
		Scan(&summary.VideoID, &summary.Overall, &outlineJSON, &paramsJSON,
			&summary.TranscriptHash, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NewAppError(models.ErrCodeSummaryNotFound, "no summary for video: %s", videoID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get summary: %w", err)
	}

	if err := json.Unmarshal([]byte(outlineJSON), &summary.Outline); err != nil {
		return nil, fmt.Errorf("failed to decode outline: %w", err)
	}
	if paramsJSON != "" && paramsJSON != "null" {
		summary.Params = &models.SummarizeParams{}
		if err := json.Unmarshal([]byte(paramsJSON), summary.Params); err != nil {
			return nil, fmt.Errorf("failed to decode summary params: %w", err)
		}
	}
	summary.CreatedAt = time.UnixMilli(createdAt).UTC()

	sections, err := s.GetSections(ctx, videoID)
	if err != nil {
		return nil, err
	}
	summary.Sections = sections
	return &summary, nil
}

// SaveSection persists one map-phase section summary. Each call is a
// checkpoint: a resumed job skips sections already present.
func (s *SummaryStorage) SaveSection(ctx context.Context, videoID string, section models.SectionSummary) error {
	_, err := s.db.SQL().ExecContext(ctx, `
		INSERT INTO summary_sections (video_id, section_idx, start_seconds, end_seconds, text)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(video_id, section_idx) DO UPDATE SET
			start_seconds = excluded.start_seconds,
			end_seconds = excluded.end_seconds,
			text = excluded.text`,
		videoID, section.Index, section.StartSeconds, section.EndSeconds, section.Text)
	if err != nil {
		return fmt.Errorf("failed to save summary section: %w", err)
	}
	return nil
}

// GetSections returns persisted section summaries in index order
func (s *SummaryStorage) GetSections(ctx context.Context, videoID string) ([]models.SectionSummary, error) {
	rows, err := s.db.SQL().QueryContext(ctx, `
		SELECT section_idx, start_seconds, end_seconds, text
		FROM summary_sections WHERE video_id = ? ORDER BY section_idx`, videoID)
	if err != nil {
		return nil, fmt.Errorf("failed to load summary sections: %w", err)
	}
	defer rows.Close()

	var sections []models.SectionSummary
	for rows.Next() {
		var sec models.SectionSummary
		if err := rows.Scan(&sec.Index, &sec.StartSeconds, &sec.EndSeconds, &sec.Text); err != nil {
			return nil, fmt.Errorf("failed to scan summary section: %w", err)
		}
		sections = append(sections, sec)
	}
	return sections, rows.Err()
}

// ClearSections removes persisted section checkpoints
func (s *SummaryStorage) ClearSections(ctx context.Context, videoID string) error {
	if _, err := s.db.SQL().ExecContext(ctx,
		"DELETE FROM summary_sections WHERE video_id = ?", videoID); err != nil {
		return fmt.Errorf("failed to clear summary sections: %w", err)
	}
	return nil
}

// DeleteSummary removes the summary and its sections
func (s *SummaryStorage) DeleteSummary(ctx context.Context, videoID string) error {
	tx, err := s.db.SQL().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM summaries WHERE video_id = ?", videoID); err != nil {
		return fmt.Errorf("failed to delete summary: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM summary_sections WHERE video_id = ?", videoID); err != nil {
		return fmt.Errorf("failed to delete summary sections: %w", err)
	}
	return tx.Commit()
}
