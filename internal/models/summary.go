package models

import "time"

// OutlineNode is one titled, time-bounded chapter in the hierarchical
// summary. Children are optional one-level nesting.
type OutlineNode struct {
	Title        string        `json:"title"`
	StartSeconds float64       `json:"start_time"`
	EndSeconds   float64       `json:"end_time"`
	Bullets      []string      `json:"bullets,omitempty"`
	Children     []OutlineNode `json:"children,omitempty"`
}

// SectionSummary is the map-phase output for one transcript section.
type SectionSummary struct {
	Index        int     `json:"index"`
	StartSeconds float64 `json:"start_time"`
	EndSeconds   float64 `json:"end_time"`
	Text         string  `json:"text"`
}

// Summary is the reduce-phase output, one per video (latest wins). The
// transcript hash it was built from is kept so readers can flag staleness
// instead of silently serving a summary of an older transcript.
type Summary struct {
	VideoID         string           `json:"video_id"`
	Overall         string           `json:"overall_summary"`
	Outline         []OutlineNode    `json:"outline"`
	Sections        []SectionSummary `json:"segment_summaries"`
	Params          *SummarizeParams `json:"params,omitempty"`
	TranscriptHash  string           `json:"transcript_hash"`
	IsStale         bool             `json:"is_stale"`
	CreatedAt       time.Time        `json:"created_at"`
}

// CountOutlineNodes counts every node including nested children.
func CountOutlineNodes(nodes []OutlineNode) int {
	n := len(nodes)
	for _, node := range nodes {
		n += CountOutlineNodes(node.Children)
	}
	return n
}
