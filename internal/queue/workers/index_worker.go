package workers

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/interfaces"
	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/models"
	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/services/chunking"
	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/services/embeddings"
)

// embedBatchSize bounds how many chunks go to the embedding API per call;
// a batch is also the cancellation and progress checkpoint.
const embedBatchSize = 16

// IndexWorker builds the vector index for a video's transcript: chunk,
// embed, upsert, then record the transcript hash the index was built from.
type IndexWorker struct {
	transcript interfaces.TranscriptStorage
	indexState interfaces.IndexStateStorage
	embeddings interfaces.EmbeddingService
	vectors    interfaces.VectorStore
	logger     arbor.ILogger
}

// NewIndexWorker creates the indexing stage handler
func NewIndexWorker(
	transcript interfaces.TranscriptStorage,
	indexState interfaces.IndexStateStorage,
	embeddingSvc interfaces.EmbeddingService,
	vectors interfaces.VectorStore,
	logger arbor.ILogger,
) *IndexWorker {
	return &IndexWorker{
		transcript: transcript,
		indexState: indexState,
		embeddings: embeddingSvc,
		vectors:    vectors,
		logger:     logger,
	}
}

// Type returns the job type this handler executes
func (w *IndexWorker) Type() models.JobType {
	return models.JobTypeIndex
}

// Execute chunks the transcript, embeds every chunk and replaces the
// video's records in the versioned collection
func (w *IndexWorker) Execute(ctx context.Context, job *models.Job, reporter interfaces.ProgressReporter) (interface{}, error) {
	params, err := job.DecodeParams()
	if err != nil {
		return nil, err
	}
	p := params.(*models.IndexParams)

	transcript, err := w.transcript.GetTranscript(ctx, job.VideoID)
	if err != nil {
		return nil, err
	}
	if len(transcript.Segments) == 0 {
		return nil, models.NewAppError(models.ErrCodeTranscriptNotFound,
			"video %s has no transcript segments to index", job.VideoID)
	}

	transcriptHash := transcript.ContentHash()
	collection := embeddings.CollectionName(w.embeddings.ModelName(), w.embeddings.Dimension())

	// Clear this video's previous records first: the chunking params may
	// have changed, leaving orphans past the new chunk count.
	if prev, err := w.indexState.GetIndexState(ctx, job.VideoID); err == nil && prev != nil {
		ids := make([]string, 0, prev.ChunkCount)
		for i := 0; i < prev.ChunkCount; i++ {
			ids = append(ids, fmt.Sprintf("%s_%d", job.VideoID, i))
		}
		if err := w.vectors.DeleteRecords(ctx, prev.Collection, ids); err != nil {
			return nil, err
		}
	}

	chunks := chunking.BuildChunks(job.VideoID, transcript.Segments, p.WindowSeconds, p.OverlapSeconds)
	if len(chunks) == 0 {
		return nil, models.NewAppError(models.ErrCodeValidation,
			"chunking produced no chunks for video %s", job.VideoID)
	}

	for offset := 0; offset < len(chunks); offset += embedBatchSize {
		if reporter.Cancelled(ctx) {
			return nil, models.NewAppError(models.ErrCodeCancelled,
				"indexing cancelled at chunk %d/%d", offset, len(chunks))
		}

		end := offset + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[offset:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}
		vectors, err := w.embeddings.Embed(ctx, texts)
		if err != nil {
			return nil, err
		}

		records := make([]interfaces.VectorRecord, len(batch))
		for i, c := range batch {
			records[i] = interfaces.VectorRecord{
				ID:     c.ID,
				Vector: vectors[i],
				Metadata: map[string]string{
					"video_id":     c.VideoID,
					"index":        strconv.Itoa(c.Index),
					"start":        strconv.FormatFloat(c.StartSeconds, 'f', 3, 64),
					"end":          strconv.FormatFloat(c.EndSeconds, 'f', 3, 64),
					"text":         c.Text,
					"content_hash": c.ContentHash,
				},
			}
		}
		if err := w.vectors.Upsert(ctx, collection, records); err != nil {
			return nil, err
		}

		progress := float64(end) / float64(len(chunks))
		if err := reporter.Report(ctx, progress,
			fmt.Sprintf("indexed %d/%d chunks", end, len(chunks))); err != nil {
			w.logger.Warn().Err(err).Str("job_id", job.ID).Msg("Progress write failed")
		}
	}

	if err := w.indexState.SaveIndexState(ctx, &models.IndexState{
		VideoID:        job.VideoID,
		TranscriptHash: transcriptHash,
		Collection:     collection,
		ChunkCount:     len(chunks),
		IndexedAtUnix:  time.Now().Unix(),
	}); err != nil {
		return nil, err
	}

	return &models.IndexResult{
		ChunkCount:     len(chunks),
		Collection:     collection,
		TranscriptHash: transcriptHash,
	}, nil
}
