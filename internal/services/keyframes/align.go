package keyframes

import (
	"math"
	"sort"

	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/interfaces"
)

// FallbackNearest substitutes the frame closest to a chapter's midpoint when
// the chapter window itself holds no frames.
const FallbackNearest = "nearest"

// SelectSceneTimestamps picks keyframe timestamps from scored scene-change
// candidates. Candidates at or below the threshold are dropped; the rest are taken
// strongest-first while enforcing a minimum gap, so a burst of cuts yields
// one representative frame instead of a cluster. The result is chronological.
func SelectSceneTimestamps(candidates []interfaces.SceneCandidate, threshold float64, maxFrames int, minGapSeconds float64) []interfaces.SceneCandidate {
	if maxFrames <= 0 || len(candidates) == 0 {
		return nil
	}

	eligible := make([]interfaces.SceneCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Score > threshold {
			eligible = append(eligible, c)
		}
	}
	sort.SliceStable(eligible, func(i, j int) bool {
		if eligible[i].Score != eligible[j].Score {
			return eligible[i].Score > eligible[j].Score
		}
		return eligible[i].TimestampSeconds < eligible[j].TimestampSeconds
	})

	var picked []interfaces.SceneCandidate
	for _, c := range eligible {
		if len(picked) >= maxFrames {
			break
		}
		tooClose := false
		for _, p := range picked {
			if math.Abs(p.TimestampSeconds-c.TimestampSeconds) < minGapSeconds {
				tooClose = true
				break
			}
		}
		if !tooClose {
			picked = append(picked, c)
		}
	}

	sort.Slice(picked, func(i, j int) bool {
		return picked[i].TimestampSeconds < picked[j].TimestampSeconds
	})
	return picked
}

// IntervalTimestamps produces evenly spaced timestamps over the duration,
// capped at maxFrames. The first frame lands at interval/2 so a very short
// video still yields one representative frame instead of the black frame at
// zero.
func IntervalTimestamps(durationSeconds, intervalSeconds float64, maxFrames int) []float64 {
	if durationSeconds <= 0 || intervalSeconds <= 0 || maxFrames <= 0 {
		return nil
	}

	var timestamps []float64
	for ts := intervalSeconds / 2; ts < durationSeconds; ts += intervalSeconds {
		if len(timestamps) >= maxFrames {
			break
		}
		timestamps = append(timestamps, ts)
	}
	if len(timestamps) == 0 {
		timestamps = append(timestamps, durationSeconds/2)
	}
	return timestamps
}

// SelectForSection attaches frames to one outline chapter
// [startSeconds, endSeconds). Scored frames are taken strongest-first with a
// minimum gap between accepted frames, so a burst of cuts inside the chapter
// yields its strongest representative; unscored frames are taken
// chronologically. A chapter whose window holds no frames stays empty unless
// fallback is FallbackNearest, which substitutes the single frame closest to
// the chapter midpoint, ignoring the gap rule. The result is chronological.
func SelectForSection(frames []interfaces.SceneCandidate, startSeconds, endSeconds float64, perSection int, minGapSeconds float64, scored bool, fallback string) []interfaces.SceneCandidate {
	if perSection <= 0 || len(frames) == 0 {
		return nil
	}

	var window []interfaces.SceneCandidate
	for _, f := range frames {
		if f.TimestampSeconds >= startSeconds && f.TimestampSeconds < endSeconds {
			window = append(window, f)
		}
	}

	if len(window) == 0 {
		if fallback != FallbackNearest {
			return nil
		}
		mid := (startSeconds + endSeconds) / 2
		best := frames[0]
		for _, f := range frames[1:] {
			if math.Abs(f.TimestampSeconds-mid) < math.Abs(best.TimestampSeconds-mid) {
				best = f
			}
		}
		return []interfaces.SceneCandidate{best}
	}

	if scored {
		sort.SliceStable(window, func(i, j int) bool {
			if window[i].Score != window[j].Score {
				return window[i].Score > window[j].Score
			}
			return window[i].TimestampSeconds < window[j].TimestampSeconds
		})
	}

	var picked []interfaces.SceneCandidate
	for _, f := range window {
		if len(picked) >= perSection {
			break
		}
		tooClose := false
		for _, p := range picked {
			if math.Abs(p.TimestampSeconds-f.TimestampSeconds) < minGapSeconds {
				tooClose = true
				break
			}
		}
		if !tooClose {
			picked = append(picked, f)
		}
	}

	sort.Slice(picked, func(i, j int) bool {
		return picked[i].TimestampSeconds < picked[j].TimestampSeconds
	})
	return picked
}
