package embeddings

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/common"
	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/models"
)

// Service produces embedding vectors via the Gemini embedding API. The model
// name and output dimension are fixed at construction; together they name
// the vector collection every produced vector belongs to.
type Service struct {
	config  *common.EmbeddingConfig
	logger  arbor.ILogger
	client  *genai.Client
	limiter *rate.Limiter
}

// NewService creates a Gemini-backed embedding service
func NewService(cfg *common.Config, logger arbor.ILogger) (*Service, error) {
	apiKey := cfg.Gemini.APIKey
	if apiKey == "" {
		return nil, fmt.Errorf("Gemini API key is required for embeddings (set GEMINI_API_KEY or gemini.api_key in config)")
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize genai client: %w", err)
	}

	service := &Service{
		config:  &cfg.Embeddings,
		logger:  logger,
		client:  client,
		limiter: rate.NewLimiter(rate.Every(cfg.Gemini.RateLimitDuration()), 1),
	}

	logger.Info().
		Str("model", cfg.Embeddings.Model).
		Int("dimension", cfg.Embeddings.Dimension).
		Msg("Embedding service initialized")

	return service, nil
}

// ModelName reports the embedding model identifier
func (s *Service) ModelName() string {
	return s.config.Model
}

// Dimension reports the fixed output vector length
func (s *Service) Dimension() int {
	return s.config.Dimension
}

// Embed returns one vector per input text. Every vector is validated against
// the declared dimension before it is returned; a mismatch means the model
// configuration drifted and indexing must not proceed.
func (s *Service) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, models.WrapError(models.ErrCodeUpstreamUnavailable, err, "embedding rate limit wait failed")
	}

	contents := make([]*genai.Content, 0, len(texts))
	for _, text := range texts {
		contents = append(contents, genai.NewContentFromText(text, genai.RoleUser))
	}

	outputDim := int32(s.config.Dimension)
	embeddingConfig := &genai.EmbedContentConfig{
		OutputDimensionality: &outputDim,
	}

	started := time.Now()
	result, err := s.client.Models.EmbedContent(ctx, s.config.Model, contents, embeddingConfig)
	if err != nil {
		s.logger.Warn().Err(err).Int("texts", len(texts)).Msg("Embedding generation failed")
		if ctx.Err() != nil {
			return nil, models.WrapError(models.ErrCodeTimeout, err, "embedding request timed out")
		}
		return nil, models.WrapError(models.ErrCodeUpstreamUnavailable, err, "embedding request failed")
	}
	if result == nil || len(result.Embeddings) != len(texts) {
		got := 0
		if result != nil {
			got = len(result.Embeddings)
		}
		return nil, models.NewAppError(models.ErrCodeUpstreamUnavailable,
			"embedding count mismatch: expected %d, got %d", len(texts), got)
	}

	vectors := make([][]float32, len(texts))
	for i, emb := range result.Embeddings {
		if len(emb.Values) != s.config.Dimension {
			return nil, models.NewAppError(models.ErrCodeUpstreamUnavailable,
				"embedding dimension mismatch: expected %d, got %d", s.config.Dimension, len(emb.Values))
		}
		vectors[i] = emb.Values
	}

	s.logger.Debug().
		Int("texts", len(texts)).
		Dur("duration", time.Since(started)).
		Msg("Embedding generation completed")

	return vectors, nil
}

// CollectionName is the vector collection namespace for this model and
// dimension. Changing either yields a fresh collection instead of mixing
// vector shapes.
func CollectionName(model string, dimension int) string {
	return fmt.Sprintf("chunks_%s_%d", model, dimension)
}
