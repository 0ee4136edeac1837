package llm

import (
	"context"
	"errors"

	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/models"
)

// classifyCallError maps a provider SDK failure onto the stable error codes
// jobs and API responses carry. Deadline expiry is a TIMEOUT; everything
// else from the wire is UPSTREAM_UNAVAILABLE.
func classifyCallError(err error, provider string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return models.WrapError(models.ErrCodeTimeout, err, "%s request timed out", provider)
	}
	if errors.Is(err, context.Canceled) {
		return models.WrapError(models.ErrCodeCancelled, err, "%s request cancelled", provider)
	}
	return models.WrapError(models.ErrCodeUpstreamUnavailable, err, "%s request failed", provider)
}
