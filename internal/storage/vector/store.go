package vector

import (
	"context"
	"math"
	"sort"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/interfaces"
	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/models"
)

// storedVector is the badgerhold record for one embedded chunk. Keys are
// "collection/id" so the same chunk id can live in collections built by
// different embedding models without colliding.
type storedVector struct {
	Collection string `badgerhold:"index"`
	RecordID   string
	Vector     []float32
	Metadata   map[string]string
}

// Store is the embedded vector store. Collections are brute-force scanned at
// query time; at transcript scale (hundreds to low thousands of chunks per
// video) exact cosine search beats maintaining an ANN index.
type Store struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewStore creates a badger-backed vector store
func NewStore(db *BadgerDB, logger arbor.ILogger) *Store {
	return &Store{db: db, logger: logger}
}

func storageKey(collection, id string) string {
	return collection + "/" + id
}

// Upsert writes records into the collection, replacing any existing record
// with the same id
func (s *Store) Upsert(ctx context.Context, collection string, records []interfaces.VectorRecord) error {
	if collection == "" {
		return models.NewAppError(models.ErrCodeValidation, "collection name is required")
	}
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		stored := &storedVector{
			Collection: collection,
			RecordID:   rec.ID,
			Vector:     rec.Vector,
			Metadata:   rec.Metadata,
		}
		if err := s.db.Store().Upsert(storageKey(collection, rec.ID), stored); err != nil {
			return models.WrapError(models.ErrCodeUpstreamUnavailable, err, "vector store upsert failed")
		}
	}
	return nil
}

// Query returns the topK records by cosine similarity to the query vector.
// A store-level failure is reported as UPSTREAM_UNAVAILABLE so callers can
// tell "no matches" from "store broken".
func (s *Store) Query(ctx context.Context, collection string, vector []float32, topK int) ([]interfaces.VectorMatch, error) {
	if topK <= 0 {
		topK = 10
	}

	var stored []storedVector
	err := s.db.Store().Find(&stored, badgerhold.Where("Collection").Eq(collection).Index("Collection"))
	if err != nil {
		return nil, models.WrapError(models.ErrCodeUpstreamUnavailable, err, "vector store query failed")
	}

	matches := make([]interfaces.VectorMatch, 0, len(stored))
	for _, rec := range stored {
		score, ok := cosineSimilarity(vector, rec.Vector)
		if !ok {
			continue
		}
		matches = append(matches, interfaces.VectorMatch{
			ID:       rec.RecordID,
			Score:    score,
			Metadata: rec.Metadata,
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// DeleteRecords removes the given record ids from the collection. Missing
// ids are not an error.
func (s *Store) DeleteRecords(ctx context.Context, collection string, ids []string) error {
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := s.db.Store().Delete(storageKey(collection, id), &storedVector{})
		if err != nil && err != badgerhold.ErrNotFound {
			return models.WrapError(models.ErrCodeUpstreamUnavailable, err, "vector store delete failed")
		}
	}
	return nil
}

// DropCollection removes every record in the collection
func (s *Store) DropCollection(ctx context.Context, collection string) error {
	err := s.db.Store().DeleteMatching(&storedVector{},
		badgerhold.Where("Collection").Eq(collection).Index("Collection"))
	if err != nil {
		return models.WrapError(models.ErrCodeUpstreamUnavailable, err, "vector store drop failed")
	}
	return nil
}

// Count returns the number of records in the collection
func (s *Store) Count(ctx context.Context, collection string) (int, error) {
	count, err := s.db.Store().Count(&storedVector{},
		badgerhold.Where("Collection").Eq(collection).Index("Collection"))
	if err != nil {
		return 0, models.WrapError(models.ErrCodeUpstreamUnavailable, err, "vector store count failed")
	}
	return int(count), nil
}

// cosineSimilarity returns the cosine of the angle between a and b. The
// second return is false for mismatched dimensions or zero vectors, which
// are skipped rather than ranked.
func cosineSimilarity(a, b []float32) (float64, bool) {
	if len(a) != len(b) || len(a) == 0 {
		return 0, false
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, false
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), true
}
