package search

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/ternarybob/arbor"

	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/interfaces"
	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/models"
)

// Service answers semantic queries against a video's indexed transcript
type Service struct {
	transcript interfaces.TranscriptStorage
	indexState interfaces.IndexStateStorage
	jobs       interfaces.JobStorage
	embeddings interfaces.EmbeddingService
	vectors    interfaces.VectorStore
	logger     arbor.ILogger
}

// NewService creates the search service
func NewService(
	transcript interfaces.TranscriptStorage,
	indexState interfaces.IndexStateStorage,
	jobs interfaces.JobStorage,
	embeddings interfaces.EmbeddingService,
	vectors interfaces.VectorStore,
	logger arbor.ILogger,
) *Service {
	return &Service{
		transcript: transcript,
		indexState: indexState,
		jobs:       jobs,
		embeddings: embeddings,
		vectors:    vectors,
		logger:     logger,
	}
}

// IndexFreshness reports whether the video's vector index matches its
// current transcript.
type IndexFreshness struct {
	Indexed        bool   `json:"indexed"`
	Stale          bool   `json:"stale"`
	Collection     string `json:"collection,omitempty"`
	ChunkCount     int    `json:"chunk_count"`
	TranscriptHash string `json:"transcript_hash,omitempty"`
}

// CheckFreshness compares the stored index state against the current
// transcript content hash.
func (s *Service) CheckFreshness(ctx context.Context, videoID string) (*IndexFreshness, error) {
	state, err := s.indexState.GetIndexState(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return &IndexFreshness{Indexed: false}, nil
	}

	transcript, err := s.transcript.GetTranscript(ctx, videoID)
	if err != nil {
		if models.IsCode(err, models.ErrCodeTranscriptNotFound) {
			// Index exists but its transcript is gone; treat as stale.
			return &IndexFreshness{Indexed: true, Stale: true, Collection: state.Collection, ChunkCount: state.ChunkCount}, nil
		}
		return nil, err
	}

	currentHash := transcript.ContentHash()
	return &IndexFreshness{
		Indexed:        true,
		Stale:          state.TranscriptHash != currentHash,
		Collection:     state.Collection,
		ChunkCount:     state.ChunkCount,
		TranscriptHash: currentHash,
	}, nil
}

// EnsureIndexJob requests (re)indexing for the video. Duplicate requests
// while an index job is already pending or running converge on the existing
// job id; the bool reports whether a new job was created.
func (s *Service) EnsureIndexJob(ctx context.Context, videoID string, params *models.IndexParams) (string, bool, error) {
	if params == nil {
		params = &models.IndexParams{}
	}
	if err := models.ValidateParams(models.JobTypeIndex, params); err != nil {
		return "", false, err
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return "", false, models.WrapError(models.ErrCodeInternal, err, "marshal index params")
	}
	return s.jobs.EnsureActiveJob(ctx, videoID, models.JobTypeIndex, raw)
}

// IndexingStatus reports that retrieval is deferred behind an index job.
type IndexingStatus struct {
	JobID   string `json:"job_id"`
	Created bool   `json:"created"`
	Message string `json:"message"`
}

// Response is the outcome of one search request. When the index is missing
// or stale the query is not answered; Indexing instead carries the id of the
// index job ensured on the caller's behalf, so the caller can poll it and
// ask again. An empty Results on a fresh index is a real answer: the
// transcript genuinely never mentions the query.
type Response struct {
	Results  []models.SearchResult `json:"results"`
	Indexing *IndexingStatus       `json:"indexing,omitempty"`
}

// Search embeds the query and returns the topK transcript chunks by cosine
// similarity. A missing or stale index ensures exactly one index job and
// reports it instead of answering; concurrent queries against the same
// unindexed video converge on that one job.
func (s *Service) Search(ctx context.Context, videoID, query string, topK int) (*Response, error) {
	if query == "" {
		return nil, models.NewAppError(models.ErrCodeValidation, "query cannot be empty")
	}
	if topK <= 0 {
		topK = 5
	}

	fresh, err := s.CheckFreshness(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if !fresh.Indexed || fresh.Stale {
		jobID, created, err := s.EnsureIndexJob(ctx, videoID, nil)
		if err != nil {
			return nil, err
		}
		message := "indexing in progress"
		if fresh.Stale {
			message = "index is stale, reindexing in progress"
		}
		s.logger.Debug().
			Str("video_id", videoID).
			Str("job_id", jobID).
			Bool("created", created).
			Msg("Search deferred behind index job")
		return &Response{Indexing: &IndexingStatus{JobID: jobID, Created: created, Message: message}}, nil
	}

	vectors, err := s.embeddings.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}

	matches, err := s.vectors.Query(ctx, fresh.Collection, vectors[0], topK)
	if err != nil {
		return nil, err
	}

	results := make([]models.SearchResult, 0, len(matches))
	for _, m := range matches {
		chunk := chunkFromMetadata(videoID, m)
		if chunk.VideoID != videoID {
			// Collections are shared across videos; drop foreign hits.
			continue
		}
		results = append(results, models.SearchResult{Chunk: chunk, Score: m.Score})
	}
	return &Response{Results: results}, nil
}

func chunkFromMetadata(videoID string, m interfaces.VectorMatch) models.Chunk {
	chunk := models.Chunk{ID: m.ID}
	if m.Metadata == nil {
		return chunk
	}
	chunk.VideoID = m.Metadata["video_id"]
	chunk.Text = m.Metadata["text"]
	chunk.ContentHash = m.Metadata["content_hash"]
	if v, err := strconv.Atoi(m.Metadata["index"]); err == nil {
		chunk.Index = v
	}
	if v, err := strconv.ParseFloat(m.Metadata["start"], 64); err == nil {
		chunk.StartSeconds = v
	}
	if v, err := strconv.ParseFloat(m.Metadata["end"], 64); err == nil {
		chunk.EndSeconds = v
	}
	return chunk
}
