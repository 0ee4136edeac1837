package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/interfaces"
	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/services/chat"
)

// ChatHandler handles grounded question answering requests
type ChatHandler struct {
	chat   *chat.Service
	logger arbor.ILogger
}

// NewChatHandler creates a new chat handler
func NewChatHandler(chatSvc *chat.Service, logger arbor.ILogger) *ChatHandler {
	return &ChatHandler{chat: chatSvc, logger: logger}
}

// AskHandler answers a question about a video from its indexed transcript
// POST /api/chat {"video_id": "...", "question": "...", "history": [...]}
func (h *ChatHandler) AskHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		VideoID  string               `json:"video_id"`
		Question string               `json:"question"`
		History  []interfaces.Message `json:"history"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	answer, err := h.chat.Ask(r.Context(), req.VideoID, req.Question, req.History)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, answer)
}
