package chat

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ternarybob/arbor"

	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/common"
	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/interfaces"
	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/models"
	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/services/search"
	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/storage/sqlite"
)

type fakeEmbedder struct{}

func (e *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func (e *fakeEmbedder) ModelName() string { return "test-embed" }
func (e *fakeEmbedder) Dimension() int    { return 2 }

type fakeVectors struct {
	matches []interfaces.VectorMatch
}

func (v *fakeVectors) Upsert(ctx context.Context, collection string, records []interfaces.VectorRecord) error {
	return nil
}

func (v *fakeVectors) Query(ctx context.Context, collection string, vector []float32, topK int) ([]interfaces.VectorMatch, error) {
	return v.matches, nil
}

func (v *fakeVectors) DeleteRecords(ctx context.Context, collection string, ids []string) error {
	return nil
}

func (v *fakeVectors) DropCollection(ctx context.Context, collection string) error { return nil }
func (v *fakeVectors) Count(ctx context.Context, collection string) (int, error)   { return 0, nil }

type fakeLLM struct {
	reply string
	calls int
}

func (l *fakeLLM) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	l.calls++
	return l.reply, nil
}

func (l *fakeLLM) Chat(ctx context.Context, messages []interfaces.Message, maxTokens int) (string, error) {
	l.calls++
	return l.reply, nil
}

func (l *fakeLLM) Provider() string { return "fake" }

type chatFixture struct {
	svc     *Service
	llm     *fakeLLM
	vectors *fakeVectors
	indexed func(t *testing.T)
}

func newChatFixture(t *testing.T) *chatFixture {
	t.Helper()
	logger := arbor.NewLogger()
	db, err := sqlite.NewDB(logger, &common.SQLiteConfig{
		Path:          filepath.Join(t.TempDir(), "test.db"),
		WALMode:       true,
		BusyTimeoutMS: 5000,
		CacheSizeMB:   16,
	})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	videos := sqlite.NewVideoStorage(db, logger)
	if err := videos.UpsertVideo(ctx, &models.Video{
		ID:       "video-1",
		FilePath: "/videos/v1.mp4",
		FileHash: "hash-1",
		Title:    "v1",
		Status:   models.VideoStatusComplete,
	}); err != nil {
		t.Fatalf("failed to seed video: %v", err)
	}

	jobs := sqlite.NewJobStorage(db, logger)
	transcripts := sqlite.NewTranscriptStorage(db, logger)
	indexStates := sqlite.NewIndexStateStorage(db, logger)
	vectors := &fakeVectors{}
	searchSvc := search.NewService(transcripts, indexStates, jobs, &fakeEmbedder{}, vectors, logger)

	llm := &fakeLLM{reply: "They discuss the launch around [30 - 60]."}
	f := &chatFixture{
		svc:     NewService(searchSvc, llm, logger),
		llm:     llm,
		vectors: vectors,
	}
	f.indexed = func(t *testing.T) {
		t.Helper()
		if err := transcripts.InitState(ctx, "video-1", 1, 60); err != nil {
			t.Fatalf("InitState failed: %v", err)
		}
		err := transcripts.AppendWindow(ctx, "video-1", 0, []models.TranscriptSegment{
			{Seq: 0, WindowIndex: 0, StartSeconds: 0, EndSeconds: 30, Text: "we launch today"},
		})
		if err != nil {
			t.Fatalf("AppendWindow failed: %v", err)
		}
		transcript, err := transcripts.GetTranscript(ctx, "video-1")
		if err != nil {
			t.Fatalf("GetTranscript failed: %v", err)
		}
		err = indexStates.SaveIndexState(ctx, &models.IndexState{
			VideoID:        "video-1",
			TranscriptHash: transcript.ContentHash(),
			Collection:     "chunks_test-embed_2",
			ChunkCount:     1,
		})
		if err != nil {
			t.Fatalf("SaveIndexState failed: %v", err)
		}
	}
	return f
}

func TestAskWhileIndexingDefersWithoutLLM(t *testing.T) {
	f := newChatFixture(t)

	answer, err := f.svc.Ask(context.Background(), "video-1", "what happened?", nil)
	if err != nil {
		t.Fatalf("Ask failed: %v", err)
	}
	if answer.IndexJobID == "" {
		t.Fatal("unindexed video must surface the ensured index job id")
	}
	if answer.Text == "" {
		t.Error("deferred answer must explain itself")
	}
	if f.llm.calls != 0 {
		t.Errorf("LLM must not be consulted while the index is being built, got %d calls", f.llm.calls)
	}
}

func TestAskAnswersFromRetrievedChunks(t *testing.T) {
	f := newChatFixture(t)
	f.indexed(t)
	f.vectors.matches = []interfaces.VectorMatch{
		{ID: "video-1_0", Score: 0.92, Metadata: map[string]string{
			"video_id": "video-1", "text": "we launch today", "index": "0",
			"start": "0", "end": "30", "content_hash": "c0",
		}},
	}

	answer, err := f.svc.Ask(context.Background(), "video-1", "what happened?", nil)
	if err != nil {
		t.Fatalf("Ask failed: %v", err)
	}
	if answer.IndexJobID != "" {
		t.Errorf("fresh index must answer directly, got job %s", answer.IndexJobID)
	}
	if !strings.Contains(answer.Text, "launch") {
		t.Errorf("unexpected answer text: %q", answer.Text)
	}
	if len(answer.Citations) != 1 {
		t.Fatalf("expected 1 citation, got %d", len(answer.Citations))
	}
	if answer.Citations[0].Text != "we launch today" {
		t.Errorf("citation text: %q", answer.Citations[0].Text)
	}
	if f.llm.calls != 1 {
		t.Errorf("expected exactly one LLM call, got %d", f.llm.calls)
	}
}
