package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/interfaces"
	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/models"
	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/services/search"
)

const systemPrompt = `You answer questions about a video using only the transcript excerpts provided.
Each excerpt carries a [start - end] timestamp range in seconds.
Cite the timestamp range of the excerpt you drew each claim from.
If the excerpts do not contain the answer, say so; do not speculate.`

// Citation points an answer back into the video timeline.
type Citation struct {
	ChunkIndex   int     `json:"chunk_index"`
	StartSeconds float64 `json:"start_time"`
	EndSeconds   float64 `json:"end_time"`
	Text         string  `json:"text"`
	Score        float64 `json:"score"`
}

// Answer is one grounded chat response. IndexJobID is set when the question
// could not be answered because the video is still being indexed; the caller
// polls that job and asks again.
type Answer struct {
	Text       string     `json:"answer"`
	Citations  []Citation `json:"citations"`
	IndexJobID string     `json:"index_job_id,omitempty"`
}

// Service answers questions about a video grounded in retrieved transcript
// chunks.
type Service struct {
	search *search.Service
	llm    interfaces.LLMService
	logger arbor.ILogger
	topK   int
}

// NewService creates the chat service
func NewService(searchSvc *search.Service, llm interfaces.LLMService, logger arbor.ILogger) *Service {
	return &Service{search: searchSvc, llm: llm, logger: logger, topK: 5}
}

// Ask retrieves the most relevant transcript chunks for the question and has
// the LLM answer from them. History carries prior conversation turns.
// A missing or stale index defers to the index job the search layer ensured;
// the answer carries that job id instead of going to the LLM.
func (s *Service) Ask(ctx context.Context, videoID, question string, history []interfaces.Message) (*Answer, error) {
	if question == "" {
		return nil, models.NewAppError(models.ErrCodeValidation, "question cannot be empty")
	}

	resp, err := s.search.Search(ctx, videoID, question, s.topK)
	if err != nil {
		return nil, err
	}
	if resp.Indexing != nil {
		return &Answer{
			Text:       "The video is still being indexed. Ask again once the index job completes.",
			IndexJobID: resp.Indexing.JobID,
		}, nil
	}

	results := resp.Results
	if len(results) == 0 {
		return &Answer{Text: "The transcript contains nothing relevant to that question."}, nil
	}

	var contextBlock strings.Builder
	citations := make([]Citation, 0, len(results))
	for _, r := range results {
		fmt.Fprintf(&contextBlock, "[%.0f - %.0f] %s\n\n",
			r.Chunk.StartSeconds, r.Chunk.EndSeconds, r.Chunk.Text)
		citations = append(citations, Citation{
			ChunkIndex:   r.Chunk.Index,
			StartSeconds: r.Chunk.StartSeconds,
			EndSeconds:   r.Chunk.EndSeconds,
			Text:         r.Chunk.Text,
			Score:        r.Score,
		})
	}

	messages := make([]interfaces.Message, 0, len(history)+2)
	messages = append(messages, interfaces.Message{Role: "system", Content: systemPrompt})
	messages = append(messages, history...)
	messages = append(messages, interfaces.Message{
		Role: "user",
		Content: fmt.Sprintf("Transcript excerpts:\n\n%s\nQuestion: %s",
			contextBlock.String(), question),
	})

	text, err := s.llm.Chat(ctx, messages, 0)
	if err != nil {
		return nil, err
	}

	s.logger.Debug().
		Str("video_id", videoID).
		Int("citations", len(citations)).
		Msg("Chat answer generated")

	return &Answer{Text: text, Citations: citations}, nil
}
