package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/interfaces"
	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/models"
)

// KeyframeHandler serves extracted keyframes and their images
type KeyframeHandler struct {
	keyframes interfaces.KeyframeStorage
	logger    arbor.ILogger
}

// NewKeyframeHandler creates a new keyframe handler
func NewKeyframeHandler(keyframes interfaces.KeyframeStorage, logger arbor.ILogger) *KeyframeHandler {
	return &KeyframeHandler{keyframes: keyframes, logger: logger}
}

// ListHandler returns the video's keyframes in timeline order
// GET /api/videos/{id}/keyframes
func (h *KeyframeHandler) ListHandler(w http.ResponseWriter, r *http.Request, videoID string) {
	frames, err := h.keyframes.ListKeyframes(r.Context(), videoID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"keyframes": frames,
		"count":     len(frames),
	})
}

// ImageHandler streams one keyframe image from the workspace. The path is
// looked up from storage, never taken from the request, so clients cannot
// reach outside the frame directory.
// GET /api/videos/{id}/keyframes/{filename}
func (h *KeyframeHandler) ImageHandler(w http.ResponseWriter, r *http.Request, videoID, filename string) {
	if strings.ContainsAny(filename, "/\\") {
		writeError(w, models.NewAppError(models.ErrCodeValidation, "invalid keyframe filename"))
		return
	}

	frames, err := h.keyframes.ListKeyframes(r.Context(), videoID)
	if err != nil {
		writeError(w, err)
		return
	}

	for _, frame := range frames {
		if filepath.Base(frame.ImagePath) != filename {
			continue
		}
		if _, err := os.Stat(frame.ImagePath); err != nil {
			writeError(w, models.NewAppError(models.ErrCodeNotFound, "keyframe image missing on disk"))
			return
		}
		http.ServeFile(w, r, frame.ImagePath)
		return
	}

	writeError(w, models.NewAppError(models.ErrCodeNotFound, "keyframe %s not found for video %s", filename, videoID))
}
