package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// TranscriptSegment is one time-stamped ASR segment. Segments are persisted
// as an append-friendly log keyed by video so a resumed job picks up after
// the last fully appended window.
type TranscriptSegment struct {
	Seq          int     `json:"seq"`
	WindowIndex  int     `json:"window_index"`
	StartSeconds float64 `json:"start"`
	EndSeconds   float64 `json:"end"`
	Text         string  `json:"text"`
}

// Transcript is the ordered segment log for one video plus the resume state
// of the transcription stage.
type Transcript struct {
	VideoID       string              `json:"video_id"`
	Segments      []TranscriptSegment `json:"segments"`
	NextWindow    int                 `json:"next_window"`
	WindowCount   int                 `json:"window_count"`
	AudioDuration float64             `json:"audio_duration_seconds"`
}

// Complete reports whether every planned window has been appended.
func (t *Transcript) Complete() bool {
	return t.WindowCount > 0 && t.NextWindow >= t.WindowCount
}

// FullText joins segment texts in order.
func (t *Transcript) FullText() string {
	var b strings.Builder
	for i, seg := range t.Segments {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(seg.Text)
	}
	return b.String()
}

// ContentHash is the staleness key for everything derived from this
// transcript. It covers segment order, timing and text, so any change to the
// log changes the hash.
func (t *Transcript) ContentHash() string {
	h := sha256.New()
	for _, seg := range t.Segments {
		fmt.Fprintf(h, "%d|%.3f|%.3f|%s\n", seg.Seq, seg.StartSeconds, seg.EndSeconds, seg.Text)
	}
	return hex.EncodeToString(h.Sum(nil))
}
