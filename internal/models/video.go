package models

import (
	"errors"
	"time"
)

// VideoStatus represents the lifecycle stage of an imported video.
// Transitions are driven by job completion/failure, not set directly by API
// calls other than import.
type VideoStatus string

const (
	VideoStatusPending    VideoStatus = "pending"
	VideoStatusProcessing VideoStatus = "processing"
	VideoStatusComplete   VideoStatus = "complete"
	VideoStatusError      VideoStatus = "error"
)

// Video is the durable record for an imported media file. The ID is
// content-addressed (derived from the file hash), so re-importing the same
// bytes always resolves to the same record.
type Video struct {
	ID              string      `json:"id"`
	FilePath        string      `json:"file_path"`
	FileHash        string      `json:"file_hash"`
	Title           string      `json:"title"`
	DurationSeconds float64     `json:"duration_seconds"`
	FileSize        int64       `json:"file_size"`
	Status          VideoStatus `json:"status"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// Validate checks required fields before persistence.
func (v *Video) Validate() error {
	if v.ID == "" {
		return errors.New("video ID is required")
	}
	if v.FilePath == "" {
		return errors.New("video file path is required")
	}
	if v.FileHash == "" {
		return errors.New("video file hash is required")
	}
	return nil
}
