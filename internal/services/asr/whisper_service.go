package asr

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/common"
	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/interfaces"
	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/models"
)

// Service invokes the whisper.cpp CLI for one audio window at a time. The
// configuration can be swapped at runtime; a reconfigure takes effect on the
// next Transcribe call, never mid-call.
type Service struct {
	mu     sync.RWMutex
	cfg    common.WhisperConfig
	logger arbor.ILogger
	sem    chan struct{}
}

// NewService creates a whisper.cpp-backed ASR service
func NewService(cfg *common.WhisperConfig, logger arbor.ILogger) *Service {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Service{
		cfg:    *cfg,
		logger: logger,
		sem:    make(chan struct{}, concurrency),
	}
}

// Reconfigure swaps the whisper binary/model settings. In-flight calls keep
// the configuration they started with.
func (s *Service) Reconfigure(cfg *common.WhisperConfig) {
	s.mu.Lock()
	s.cfg = *cfg
	s.mu.Unlock()
	s.logger.Info().Str("model", cfg.ModelPath).Msg("ASR service reconfigured")
}

func (s *Service) snapshot() common.WhisperConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Transcribe runs whisper.cpp against one audio file and returns its timed
// segments. Timestamps are relative to the start of the audio file.
func (s *Service) Transcribe(ctx context.Context, audioPath string, language string) ([]interfaces.ASRSegment, error) {
	select {
	case s.sem <- struct{}{}:
		defer func() { <-s.sem }()
	case <-ctx.Done():
		return nil, models.WrapError(models.ErrCodeCancelled, ctx.Err(), "transcription cancelled while queued")
	}

	cfg := s.snapshot()
	if cfg.BinPath == "" || cfg.ModelPath == "" {
		return nil, models.NewAppError(models.ErrCodeUpstreamUnavailable, "whisper binary or model path not configured")
	}
	if language == "" {
		language = cfg.Language
	}

	runCtx := ctx
	if timeout := cfg.TimeoutDuration(); timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	outDir, err := os.MkdirTemp("", "whisper-out-")
	if err != nil {
		return nil, fmt.Errorf("failed to create whisper output dir: %w", err)
	}
	defer os.RemoveAll(outDir)
	outPrefix := filepath.Join(outDir, "window")

	args := []string{
		"-m", cfg.ModelPath,
		"-f", audioPath,
		"-oj",
		"-of", outPrefix,
	}
	if language != "" {
		args = append(args, "-l", language)
	}

	cmd := exec.CommandContext(runCtx, cfg.BinPath, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return nil, models.WrapError(models.ErrCodeTimeout, runCtx.Err(), "whisper.cpp timed out on %s", filepath.Base(audioPath))
		}
		if ctx.Err() != nil {
			return nil, models.WrapError(models.ErrCodeCancelled, ctx.Err(), "transcription cancelled")
		}
		return nil, models.WrapError(models.ErrCodeUpstreamUnavailable, err,
			"whisper.cpp failed: %s", truncateOutput(out))
	}

	raw, err := os.ReadFile(outPrefix + ".json")
	if err != nil {
		return nil, models.WrapError(models.ErrCodeUpstreamUnavailable, err, "whisper.cpp produced no JSON output")
	}

	segments, err := ParseOutput(raw)
	if err != nil {
		return nil, err
	}
	return segments, nil
}

// whisperOutput covers both JSON shapes whisper.cpp emits: a top-level
// "segments" array with numeric seconds, and the older "transcription" array
// with string millisecond offsets.
type whisperOutput struct {
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

// ParseOutput decodes whisper.cpp JSON into timed segments. Empty-text
// segments are dropped.
func ParseOutput(raw []byte) ([]interfaces.ASRSegment, error) {
	var out whisperOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, models.WrapError(models.ErrCodeParse, err, "failed to decode whisper output")
	}

	var segments []interfaces.ASRSegment
	for _, seg := range out.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		segments = append(segments, interfaces.ASRSegment{
			StartSeconds: seg.Start,
			EndSeconds:   seg.End,
			Text:         text,
		})
	}
	if len(segments) > 0 {
		return segments, nil
	}

	for _, seg := range out.Transcription {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		segments = append(segments, interfaces.ASRSegment{
			StartSeconds: float64(seg.Offsets.From) / 1000.0,
			EndSeconds:   float64(seg.Offsets.To) / 1000.0,
			Text:         text,
		})
	}
	return segments, nil
}

func truncateOutput(out []byte) string {
	const maxLen = 512
	s := strings.TrimSpace(string(out))
	if len(s) > maxLen {
		return s[:maxLen] + "... (" + strconv.Itoa(len(s)) + " bytes)"
	}
	return s
}
