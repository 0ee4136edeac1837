package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/services/library"
)

// VideoHandler handles video library API requests
type VideoHandler struct {
	library *library.Service
	logger  arbor.ILogger
}

// NewVideoHandler creates a new video handler
func NewVideoHandler(librarySvc *library.Service, logger arbor.ILogger) *VideoHandler {
	return &VideoHandler{library: librarySvc, logger: logger}
}

// ImportHandler registers a local video file
// POST /api/videos {"file_path": "...", "title": "..."}
func (h *VideoHandler) ImportHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FilePath string `json:"file_path"`
		Title    string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	video, created, err := h.library.ImportVideo(r.Context(), req.FilePath, req.Title)
	if err != nil {
		h.logger.Warn().Err(err).Str("path", req.FilePath).Msg("Video import failed")
		writeError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]interface{}{
		"video":   video,
		"created": created,
	})
}

// ListHandler returns a paginated list of videos
// GET /api/videos?limit=50&offset=0
func (h *VideoHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	limit := intQuery(r, "limit", 50)
	offset := intQuery(r, "offset", 0)

	videos, total, err := h.library.ListVideos(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list videos")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"videos":      videos,
		"total_count": total,
		"limit":       limit,
		"offset":      offset,
	})
}

// GetHandler returns one video
// GET /api/videos/{id}
func (h *VideoHandler) GetHandler(w http.ResponseWriter, r *http.Request, videoID string) {
	video, err := h.library.GetVideo(r.Context(), videoID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, video)
}

// DeleteHandler removes a video and all derived data
// DELETE /api/videos/{id}?confirm=true
func (h *VideoHandler) DeleteHandler(w http.ResponseWriter, r *http.Request, videoID string) {
	confirm := strings.EqualFold(r.URL.Query().Get("confirm"), "true")

	if err := h.library.DeleteVideoData(r.Context(), videoID, confirm); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"deleted":  true,
		"video_id": videoID,
	})
}

func intQuery(r *http.Request, name string, def int) int {
	if v := r.URL.Query().Get(name); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}
