package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/models"
)

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// writeError renders an error as {"error": {"code", "message"}} with the
// HTTP status implied by its code. Unclassified errors become 500 INTERNAL
// without leaking their message details.
func writeError(w http.ResponseWriter, err error) {
	code := models.CodeOf(err)
	message := "internal error"
	var appErr *models.AppError
	if ok := asAppError(err, &appErr); ok {
		message = appErr.Message
	}

	writeJSON(w, statusForCode(code), map[string]interface{}{
		"error": map[string]string{
			"code":    string(code),
			"message": message,
		},
	})
}

func asAppError(err error, target **models.AppError) bool {
	for err != nil {
		if appErr, ok := err.(*models.AppError); ok {
			*target = appErr
			return true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = unwrapper.Unwrap()
	}
	return false
}

func statusForCode(code models.ErrorCode) int {
	switch code {
	case models.ErrCodeNotFound, models.ErrCodeVideoNotFound, models.ErrCodeJobNotFound,
		models.ErrCodeTranscriptNotFound, models.ErrCodeSummaryNotFound:
		return http.StatusNotFound
	case models.ErrCodeValidation, models.ErrCodeParse:
		return http.StatusBadRequest
	case models.ErrCodeInvalidState, models.ErrCodeJobNotCancellable,
		models.ErrCodeJobNotRetriable, models.ErrCodeConfirmRequired:
		return http.StatusConflict
	case models.ErrCodeUpstreamUnavailable:
		return http.StatusBadGateway
	case models.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case models.ErrCodeCancelled:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
