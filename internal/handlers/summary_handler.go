package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/interfaces"
)

// SummaryHandler serves persisted transcripts and summaries
type SummaryHandler struct {
	transcript interfaces.TranscriptStorage
	summaries  interfaces.SummaryStorage
	logger     arbor.ILogger
}

// NewSummaryHandler creates a new summary handler
func NewSummaryHandler(
	transcript interfaces.TranscriptStorage,
	summaries interfaces.SummaryStorage,
	logger arbor.ILogger,
) *SummaryHandler {
	return &SummaryHandler{transcript: transcript, summaries: summaries, logger: logger}
}

// TranscriptHandler returns the full transcript for a video
// GET /api/videos/{id}/transcript
func (h *SummaryHandler) TranscriptHandler(w http.ResponseWriter, r *http.Request, videoID string) {
	transcript, err := h.transcript.GetTranscript(r.Context(), videoID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, transcript)
}

// GetHandler returns the latest summary for a video. The is_stale flag is
// computed fresh against the current transcript hash, never trusted from
// storage.
// GET /api/videos/{id}/summary
func (h *SummaryHandler) GetHandler(w http.ResponseWriter, r *http.Request, videoID string) {
	summary, err := h.summaries.GetSummary(r.Context(), videoID)
	if err != nil {
		writeError(w, err)
		return
	}

	if transcript, terr := h.transcript.GetTranscript(r.Context(), videoID); terr == nil {
		summary.IsStale = summary.TranscriptHash != transcript.ContentHash()
	} else {
		// Summary survives a deleted transcript; flag it rather than fail.
		summary.IsStale = true
	}

	writeJSON(w, http.StatusOK, summary)
}
