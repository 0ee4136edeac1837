package chunking

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/models"
)

// pauseGapSeconds is the silence between consecutive segments treated as a
// natural break.
const pauseGapSeconds = 1.0

// BuildChunks aggregates transcript segments into overlapping time windows,
// the unit of embedding and retrieval. A segment belongs to every window its
// start time falls inside, so window overlap duplicates boundary segments
// rather than splitting them.
//
// Windows advance by (windowSeconds - overlapSeconds). Each window's trailing
// edge snaps to a nearby sentence or pause boundary so chunks tend to end
// between sentences instead of mid-sentence. Empty windows are skipped; chunk
// indexes stay contiguous over the emitted chunks.
func BuildChunks(videoID string, segments []models.TranscriptSegment, windowSeconds, overlapSeconds float64) []models.Chunk {
	if len(segments) == 0 || windowSeconds <= 0 {
		return nil
	}
	if overlapSeconds >= windowSeconds {
		overlapSeconds = windowSeconds / 2
	}
	stride := windowSeconds - overlapSeconds

	breaks := naturalBreaks(segments)
	end := segments[len(segments)-1].EndSeconds
	var chunks []models.Chunk

	for start := 0.0; start < end; start += stride {
		windowEnd := snapEdge(breaks, start, start+windowSeconds, windowSeconds/6, overlapSeconds)

		var texts []string
		var chunkStart, chunkEnd float64
		for _, seg := range segments {
			if seg.StartSeconds < start || seg.StartSeconds >= windowEnd {
				continue
			}
			if len(texts) == 0 {
				chunkStart = seg.StartSeconds
			}
			if seg.EndSeconds > chunkEnd {
				chunkEnd = seg.EndSeconds
			}
			texts = append(texts, seg.Text)
		}
		if len(texts) == 0 {
			continue
		}

		chunk := models.Chunk{
			ID:           fmt.Sprintf("%s_%d", videoID, len(chunks)),
			VideoID:      videoID,
			Index:        len(chunks),
			StartSeconds: chunkStart,
			EndSeconds:   chunkEnd,
			Text:         strings.Join(texts, " "),
		}
		chunk.ComputeContentHash()
		chunks = append(chunks, chunk)
	}
	return chunks
}

// naturalBreaks returns the timeline positions where a chunk may cleanly end:
// after a segment that closes a sentence, or before a segment that follows an
// audible pause. A break sits at the start of the segment it precedes, so a
// window edge placed there excludes that segment.
func naturalBreaks(segments []models.TranscriptSegment) []float64 {
	var breaks []float64
	for i := 0; i < len(segments)-1; i++ {
		next := segments[i+1]
		if endsSentence(segments[i].Text) || next.StartSeconds-segments[i].EndSeconds >= pauseGapSeconds {
			breaks = append(breaks, next.StartSeconds)
		}
	}
	return breaks
}

// snapEdge moves the window's trailing edge to the natural break nearest the
// target edge. Pulling the edge in is bounded by the overlap so no segment
// can fall between consecutive windows; pushing it out is bounded by the
// tolerance. With no break close enough the hard edge stands.
func snapEdge(breaks []float64, windowStart, targetEnd, tolerance, overlapSeconds float64) float64 {
	inward := tolerance
	if overlapSeconds < inward {
		inward = overlapSeconds
	}

	best := targetEnd
	bestDist := tolerance
	for _, b := range breaks {
		if b <= windowStart {
			continue
		}
		d := b - targetEnd
		if d < 0 {
			if -d >= inward {
				continue
			}
			d = -d
		}
		if d < bestDist {
			best = b
			bestDist = d
		}
	}
	return best
}

// endsSentence reports whether text closes a sentence once trailing quotes
// and whitespace are stripped.
func endsSentence(text string) bool {
	trimmed := strings.TrimRight(text, " \t\"'”’)")
	if trimmed == "" {
		return false
	}
	r, _ := utf8.DecodeLastRuneInString(trimmed)
	switch r {
	case '.', '!', '?', '…', '。', '！', '？':
		return true
	}
	return false
}
