package vector

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ternarybob/arbor"

	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/common"
	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/interfaces"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	logger := arbor.NewLogger()
	db, err := NewBadgerDB(logger, &common.BadgerConfig{
		Path: filepath.Join(t.TempDir(), "vectors"),
	})
	if err != nil {
		t.Fatalf("failed to open badger: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewStore(db, logger)
}

func rec(id string, vector ...float32) interfaces.VectorRecord {
	return interfaces.VectorRecord{
		ID:       id,
		Vector:   vector,
		Metadata: map[string]string{"chunk_id": id},
	}
}

func TestStoreQueryRanksByCosine(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	records := []interfaces.VectorRecord{
		rec("exact", 1, 0, 0),
		rec("close", 0.9, 0.1, 0),
		rec("orthogonal", 0, 1, 0),
		rec("opposite", -1, 0, 0),
	}
	if err := store.Upsert(ctx, "chunks", records); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	matches, err := store.Query(ctx, "chunks", []float32{1, 0, 0}, 10)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(matches) != 4 {
		t.Fatalf("expected 4 matches, got %d", len(matches))
	}
	wantOrder := []string{"exact", "close", "orthogonal", "opposite"}
	for i, want := range wantOrder {
		if matches[i].ID != want {
			t.Errorf("rank %d: got %s, want %s", i, matches[i].ID, want)
		}
	}
	if matches[0].Score < 0.999 {
		t.Errorf("identical vectors must score ~1, got %v", matches[0].Score)
	}
	if matches[0].Metadata["chunk_id"] != "exact" {
		t.Errorf("metadata lost: %+v", matches[0].Metadata)
	}
}

func TestStoreQueryTopK(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	records := []interfaces.VectorRecord{
		rec("a", 1, 0), rec("b", 0.8, 0.2), rec("c", 0.5, 0.5), rec("d", 0, 1),
	}
	if err := store.Upsert(ctx, "chunks", records); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	matches, err := store.Query(ctx, "chunks", []float32{1, 0}, 2)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(matches) != 2 {
		t.Errorf("expected topK=2 matches, got %d", len(matches))
	}
}

func TestStoreQuerySkipsBadVectors(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	records := []interfaces.VectorRecord{
		rec("good", 1, 0, 0),
		rec("wrong-dims", 1, 0),
		rec("zero", 0, 0, 0),
	}
	if err := store.Upsert(ctx, "chunks", records); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	matches, err := store.Query(ctx, "chunks", []float32{1, 0, 0}, 10)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(matches) != 1 || matches[0].ID != "good" {
		t.Errorf("mismatched and zero vectors must be skipped, got %+v", matches)
	}
}

func TestStoreCollectionsIsolated(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Same record id in collections built by different embedding models.
	if err := store.Upsert(ctx, "chunks_model_a", []interfaces.VectorRecord{rec("v1_0", 1, 0)}); err != nil {
		t.Fatalf("Upsert a failed: %v", err)
	}
	if err := store.Upsert(ctx, "chunks_model_b", []interfaces.VectorRecord{rec("v1_0", 0, 1)}); err != nil {
		t.Fatalf("Upsert b failed: %v", err)
	}

	matches, err := store.Query(ctx, "chunks_model_a", []float32{1, 0}, 10)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected 1 match in collection a, got %d", len(matches))
	}
	if matches[0].Score < 0.999 {
		t.Errorf("collection a must hold its own vector, score %v", matches[0].Score)
	}
}

func TestStoreUpsertReplaces(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Upsert(ctx, "chunks", []interfaces.VectorRecord{rec("v1_0", 1, 0)}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if err := store.Upsert(ctx, "chunks", []interfaces.VectorRecord{rec("v1_0", 0, 1)}); err != nil {
		t.Fatalf("second Upsert failed: %v", err)
	}

	count, err := store.Count(ctx, "chunks")
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("upsert must replace, not duplicate: count %d", count)
	}

	matches, err := store.Query(ctx, "chunks", []float32{0, 1}, 1)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if matches[0].Score < 0.999 {
		t.Errorf("query must see the replaced vector, score %v", matches[0].Score)
	}
}

func TestStoreDeleteRecords(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	records := []interfaces.VectorRecord{rec("v1_0", 1, 0), rec("v1_1", 0, 1)}
	if err := store.Upsert(ctx, "chunks", records); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	// Missing ids are tolerated.
	if err := store.DeleteRecords(ctx, "chunks", []string{"v1_0", "never-existed"}); err != nil {
		t.Fatalf("DeleteRecords failed: %v", err)
	}

	count, err := store.Count(ctx, "chunks")
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 record after delete, got %d", count)
	}
}

func TestStoreDropCollection(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Upsert(ctx, "chunks_old", []interfaces.VectorRecord{rec("v1_0", 1, 0)}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if err := store.Upsert(ctx, "chunks_new", []interfaces.VectorRecord{rec("v1_0", 1, 0)}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	if err := store.DropCollection(ctx, "chunks_old"); err != nil {
		t.Fatalf("DropCollection failed: %v", err)
	}

	oldCount, err := store.Count(ctx, "chunks_old")
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	newCount, err := store.Count(ctx, "chunks_new")
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if oldCount != 0 || newCount != 1 {
		t.Errorf("drop must be collection-scoped: old=%d new=%d", oldCount, newCount)
	}
}

func TestStoreUpsertRequiresCollection(t *testing.T) {
	store := newTestStore(t)

	err := store.Upsert(context.Background(), "", []interfaces.VectorRecord{rec("v1_0", 1)})
	if err == nil {
		t.Error("expected error for empty collection name")
	}
}

func TestCosineSimilarity(t *testing.T) {
	if score, ok := cosineSimilarity([]float32{1, 0}, []float32{1, 0}); !ok || score < 0.999 {
		t.Errorf("identical vectors: score=%v ok=%v", score, ok)
	}
	if score, ok := cosineSimilarity([]float32{1, 0}, []float32{-1, 0}); !ok || score > -0.999 {
		t.Errorf("opposite vectors: score=%v ok=%v", score, ok)
	}
	if _, ok := cosineSimilarity([]float32{1, 0}, []float32{1}); ok {
		t.Error("mismatched dimensions must not rank")
	}
	if _, ok := cosineSimilarity([]float32{0, 0}, []float32{1, 0}); ok {
		t.Error("zero vector must not rank")
	}
	if _, ok := cosineSimilarity(nil, nil); ok {
		t.Error("empty vectors must not rank")
	}
}
