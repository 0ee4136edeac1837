package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Chunk is a time-window aggregation of transcript segments, the unit of
// embedding and retrieval. Chunks are coarser than ASR segments and may
// overlap their neighbours.
type Chunk struct {
	ID           string  `json:"id"`
	VideoID      string  `json:"video_id"`
	Index        int     `json:"index"`
	StartSeconds float64 `json:"start_time"`
	EndSeconds   float64 `json:"end_time"`
	Text         string  `json:"text"`
	ContentHash  string  `json:"content_hash"`
}

// ComputeContentHash fills ContentHash from the chunk's time bounds and text.
func (c *Chunk) ComputeContentHash() {
	h := sha256.Sum256([]byte(fmt.Sprintf("%.3f|%.3f|%s", c.StartSeconds, c.EndSeconds, c.Text)))
	c.ContentHash = hex.EncodeToString(h[:])
}

// SearchResult is one ranked retrieval hit.
type SearchResult struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}

// IndexState records the outcome of the last successful index run for a
// video. The index is stale whenever TranscriptHash no longer matches the
// current transcript's content hash.
type IndexState struct {
	VideoID        string `json:"video_id"`
	TranscriptHash string `json:"transcript_hash"`
	Collection     string `json:"collection"`
	ChunkCount     int    `json:"chunk_count"`
	IndexedAtUnix  int64  `json:"indexed_at"`
}
