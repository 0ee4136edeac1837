package models

// Keyframe is one extracted frame. Immutable once written except for
// replacement when the video's keyframes are re-extracted.
type Keyframe struct {
	ID          int64          `json:"id"`
	VideoID     string         `json:"video_id"`
	TimestampMS int64          `json:"timestamp_ms"`
	ImagePath   string         `json:"image_path"`
	Width       int            `json:"width"`
	Height      int            `json:"height"`
	Method      KeyframeMethod `json:"extraction_method"`
	// Score is the scene-change intensity in [0,1]; zero for interval frames.
	Score float64 `json:"score,omitempty"`
}

// TimestampSeconds converts the frame timestamp to seconds.
func (k *Keyframe) TimestampSeconds() float64 {
	return float64(k.TimestampMS) / 1000.0
}
