package handlers

import (
	"fmt"
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/models"
	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/services/export"
)

// ExportHandler renders transcripts and summaries into downloadable formats
type ExportHandler struct {
	export *export.Service
	logger arbor.ILogger
}

// NewExportHandler creates a new export handler
func NewExportHandler(exportSvc *export.Service, logger arbor.ILogger) *ExportHandler {
	return &ExportHandler{export: exportSvc, logger: logger}
}

// ExportHandler streams a rendered export document
// GET /api/videos/{id}/export?kind=transcript&format=srt
func (h *ExportHandler) ExportHandler(w http.ResponseWriter, r *http.Request, videoID string) {
	kind := r.URL.Query().Get("kind")
	format := export.Format(r.URL.Query().Get("format"))

	var (
		doc *export.Document
		err error
	)
	switch kind {
	case "transcript":
		doc, err = h.export.ExportTranscript(r.Context(), videoID, format)
	case "summary":
		doc, err = h.export.ExportSummary(r.Context(), videoID, format)
	default:
		err = models.NewAppError(models.ErrCodeValidation, "kind must be transcript or summary, got %q", kind)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Filename))
	w.WriteHeader(http.StatusOK)
	w.Write(doc.Body)
}
