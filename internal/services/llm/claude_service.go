package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/common"
	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/interfaces"
	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/models"
)

// ClaudeService implements the LLMService interface using the Anthropic API.
type ClaudeService struct {
	config  *common.ClaudeConfig
	logger  arbor.ILogger
	client  *anthropic.Client
	limiter *rate.Limiter
	timeout time.Duration
}

// NewClaudeService creates a new Claude LLM service instance
func NewClaudeService(config *common.ClaudeConfig, logger arbor.ILogger) (*ClaudeService, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required (set ANTHROPIC_API_KEY or claude.api_key in config)")
	}
	if config.Model == "" {
		config.Model = "claude-haiku-3-5-20241022"
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = 8192
	}

	client := anthropic.NewClient(
		option.WithAPIKey(config.APIKey),
	)

	service := &ClaudeService{
		config:  config,
		logger:  logger,
		client:  &client,
		limiter: rate.NewLimiter(rate.Every(config.RateLimitDuration()), 1),
		timeout: config.TimeoutDuration(),
	}

	logger.Info().
		Str("model", config.Model).
		Dur("timeout", service.timeout).
		Int("max_tokens", config.MaxTokens).
		Msg("Claude LLM service initialized")

	return service, nil
}

// Provider reports the active backend name
func (s *ClaudeService) Provider() string {
	return string(common.LLMProviderClaude)
}

// Complete generates a completion for a single prompt
func (s *ClaudeService) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	return s.Chat(ctx, []interfaces.Message{{Role: "user", Content: prompt}}, maxTokens)
}

// Chat generates a completion from a conversation history
func (s *ClaudeService) Chat(ctx context.Context, messages []interfaces.Message, maxTokens int) (string, error) {
	if len(messages) == 0 {
		return "", models.NewAppError(models.ErrCodeValidation, "messages cannot be empty")
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return "", classifyCallError(err, s.Provider())
	}
	if maxTokens <= 0 || maxTokens > s.config.MaxTokens {
		maxTokens = s.config.MaxTokens
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	claudeMessages, systemText := convertMessagesToClaude(messages)

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(s.config.Model),
		MaxTokens: int64(maxTokens),
		Messages:  claudeMessages,
	}
	if s.config.Temperature > 0 {
		params.Temperature = anthropic.Float(float64(s.config.Temperature))
	}
	if systemText != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: systemText},
		}
	}

	started := time.Now()
	resp, err := s.client.Messages.New(timeoutCtx, params)
	if err != nil {
		s.logger.Warn().Err(err).Str("model", s.config.Model).Msg("Claude completion failed")
		return "", classifyCallError(err, s.Provider())
	}

	var response strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			response.WriteString(block.Text)
		}
	}
	if response.Len() == 0 {
		return "", models.NewAppError(models.ErrCodeUpstreamUnavailable, "no response generated from chat model")
	}

	s.logger.Debug().
		Str("model", s.config.Model).
		Int("response_length", response.Len()).
		Dur("duration", time.Since(started)).
		Msg("Claude completion finished")

	return response.String(), nil
}

// convertMessagesToClaude maps messages to Anthropic message params,
// extracting the first system message for the system prompt.
func convertMessagesToClaude(messages []interfaces.Message) ([]anthropic.MessageParam, string) {
	claudeMessages := make([]anthropic.MessageParam, 0, len(messages))
	var systemText string
	for _, msg := range messages {
		switch msg.Role {
		case "system":
			if systemText == "" {
				systemText = msg.Content
			}
		case "assistant":
			claudeMessages = append(claudeMessages, anthropic.NewAssistantMessage(
				anthropic.NewTextBlock(msg.Content),
			))
		default:
			claudeMessages = append(claudeMessages, anthropic.NewUserMessage(
				anthropic.NewTextBlock(msg.Content),
			))
		}
	}
	return claudeMessages, systemText
}
