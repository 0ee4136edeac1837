package media

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/common"
	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/interfaces"
	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/models"
)

// Tool wraps the ffmpeg and ffprobe binaries
type Tool struct {
	ffmpeg  string
	ffprobe string
	width   int
	logger  arbor.ILogger
}

// NewTool creates an ffmpeg-backed media tool
func NewTool(cfg *common.FFmpegConfig, logger arbor.ILogger) *Tool {
	ffmpeg := cfg.FFmpegPath
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}
	ffprobe := cfg.FFprobePath
	if ffprobe == "" {
		ffprobe = "ffprobe"
	}
	width := cfg.FrameWidth
	if width <= 0 {
		width = 640
	}
	return &Tool{ffmpeg: ffmpeg, ffprobe: ffprobe, width: width, logger: logger}
}

// ProbeDuration returns the media duration in seconds
func (t *Tool) ProbeDuration(ctx context.Context, inputPath string) (float64, error) {
	cmd := exec.CommandContext(ctx, t.ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		inputPath,
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return 0, models.WrapError(models.ErrCodeUpstreamUnavailable, err,
			"ffprobe duration failed: %s", truncateOutput(out))
	}
	s := strings.TrimSpace(string(out))
	sec, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, models.WrapError(models.ErrCodeParse, err, "unparseable duration %q", s)
	}
	return sec, nil
}

// ExtractAudioWindow writes a mono 16kHz WAV covering one time window of the
// input. Every window is decoded independently so a resumed job can start at
// any window boundary without touching earlier audio.
func (t *Tool) ExtractAudioWindow(ctx context.Context, inputPath, outputWav string, startSeconds, durationSeconds float64) error {
	if err := os.MkdirAll(filepath.Dir(outputWav), 0755); err != nil {
		return fmt.Errorf("failed to create audio output dir: %w", err)
	}
	cmd := exec.CommandContext(ctx, t.ffmpeg,
		"-y",
		"-ss", formatSeconds(startSeconds),
		"-t", formatSeconds(durationSeconds),
		"-i", inputPath,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-f", "wav",
		outputWav,
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return models.WrapError(models.ErrCodeUpstreamUnavailable, err,
			"ffmpeg audio extract failed: %s", truncateOutput(out))
	}
	return nil
}

// ExtractFrame writes a single scaled frame at the given timestamp and
// returns the output dimensions.
func (t *Tool) ExtractFrame(ctx context.Context, inputPath, outputImage string, timestampSeconds float64, width int) (int, int, error) {
	if width <= 0 {
		width = t.width
	}
	if err := os.MkdirAll(filepath.Dir(outputImage), 0755); err != nil {
		return 0, 0, fmt.Errorf("failed to create frame output dir: %w", err)
	}
	cmd := exec.CommandContext(ctx, t.ffmpeg,
		"-y",
		"-ss", formatSeconds(timestampSeconds),
		"-i", inputPath,
		"-frames:v", "1",
		"-vf", fmt.Sprintf("scale=%d:-2", width),
		"-q:v", "2",
		outputImage,
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return 0, 0, models.WrapError(models.ErrCodeUpstreamUnavailable, err,
			"ffmpeg frame extract failed: %s", truncateOutput(out))
	}
	return t.probeImageSize(ctx, outputImage)
}

// DetectScenes runs ffmpeg scene detection over the whole input and returns
// every candidate with its change score. Callers threshold and cap the list.
func (t *Tool) DetectScenes(ctx context.Context, inputPath string) ([]interfaces.SceneCandidate, error) {
	// select=gt(scene\,0) emits every scored frame; the metadata filter
	// prints pts_time plus lavfi.scene_score lines on stderr.
	cmd := exec.CommandContext(ctx, t.ffmpeg,
		"-i", inputPath,
		"-vf", "select='gt(scene,0)',metadata=print",
		"-f", "null", "-",
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return nil, models.WrapError(models.ErrCodeUpstreamUnavailable, err,
			"ffmpeg scene detection failed: %s", truncateOutput(out))
	}
	return ParseSceneScores(string(out)), nil
}

// ParseSceneScores extracts (pts_time, scene_score) pairs from ffmpeg
// metadata=print output. Lines arrive as:
//
//	[Parsed_metadata_1 @ ...] frame:12 pts:3003 pts_time:100.1
//	[Parsed_metadata_1 @ ...] lavfi.scene_score=0.42
//
// A score line binds to the most recent pts_time line.
func ParseSceneScores(output string) []interfaces.SceneCandidate {
	var candidates []interfaces.SceneCandidate
	var lastTime float64
	var haveTime bool

	scanner := bufio.NewScanner(strings.NewReader(output))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()

		if idx := strings.Index(line, "pts_time:"); idx >= 0 {
			field := line[idx+len("pts_time:"):]
			if sp := strings.IndexByte(field, ' '); sp >= 0 {
				field = field[:sp]
			}
			if ts, err := strconv.ParseFloat(strings.TrimSpace(field), 64); err == nil {
				lastTime = ts
				haveTime = true
			}
			continue
		}

		if idx := strings.Index(line, "lavfi.scene_score="); idx >= 0 && haveTime {
			field := strings.TrimSpace(line[idx+len("lavfi.scene_score="):])
			if score, err := strconv.ParseFloat(field, 64); err == nil {
				candidates = append(candidates, interfaces.SceneCandidate{
					TimestampSeconds: lastTime,
					Score:            score,
				})
				haveTime = false
			}
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].TimestampSeconds < candidates[j].TimestampSeconds
	})
	return candidates
}

func (t *Tool) probeImageSize(ctx context.Context, imagePath string) (int, int, error) {
	cmd := exec.CommandContext(ctx, t.ffprobe,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height",
		"-of", "csv=s=x:p=0",
		imagePath,
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		// The frame exists; missing dimensions are not fatal.
		t.logger.Warn().Err(err).Str("image", imagePath).Msg("Failed to probe frame dimensions")
		return 0, 0, nil
	}
	parts := strings.SplitN(strings.TrimSpace(string(out)), "x", 2)
	if len(parts) != 2 {
		return 0, 0, nil
	}
	w, _ := strconv.Atoi(parts[0])
	h, _ := strconv.Atoi(parts[1])
	return w, h, nil
}

func formatSeconds(sec float64) string {
	return strconv.FormatFloat(sec, 'f', 3, 64)
}

func truncateOutput(out []byte) string {
	const maxLen = 512
	s := strings.TrimSpace(string(out))
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	return s
}
