package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/models"
	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/services/search"
)

// SearchHandler handles semantic search and index freshness requests
type SearchHandler struct {
	search *search.Service
	logger arbor.ILogger
}

// NewSearchHandler creates a new search handler
func NewSearchHandler(searchSvc *search.Service, logger arbor.ILogger) *SearchHandler {
	return &SearchHandler{search: searchSvc, logger: logger}
}

// SearchHandler answers a semantic query against one video
// POST /api/search {"video_id": "...", "query": "...", "top_k": 5}
func (h *SearchHandler) SearchHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		VideoID string `json:"video_id"`
		Query   string `json:"query"`
		TopK    int    `json:"top_k"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	resp, err := h.search.Search(r.Context(), req.VideoID, req.Query, req.TopK)
	if err != nil {
		writeError(w, err)
		return
	}

	if resp.Indexing != nil {
		// The query is deferred behind the index job; the client polls it
		// and retries.
		writeJSON(w, http.StatusAccepted, resp)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"results": resp.Results,
		"count":   len(resp.Results),
	})
}

// IndexStatusHandler reports whether a video's index is fresh
// GET /api/videos/{id}/index
func (h *SearchHandler) IndexStatusHandler(w http.ResponseWriter, r *http.Request, videoID string) {
	fresh, err := h.search.CheckFreshness(r.Context(), videoID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fresh)
}

// EnsureIndexHandler requests (re)indexing; duplicate requests converge on
// the active job
// POST /api/videos/{id}/index {"window_seconds": 60, ...}
func (h *SearchHandler) EnsureIndexHandler(w http.ResponseWriter, r *http.Request, videoID string) {
	var params models.IndexParams
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&params)
	}

	jobID, created, err := h.search.EnsureIndexJob(r.Context(), videoID, &params)
	if err != nil {
		writeError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]interface{}{
		"job_id":  jobID,
		"created": created,
	})
}
