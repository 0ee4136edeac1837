// -----------------------------------------------------------------------
// Collaborator contracts - narrow request/response interfaces over the
// external AI backends and the media tool
// -----------------------------------------------------------------------

package interfaces

import (
	"context"

	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/models"
)

// ASRSegment is one raw engine segment, timed relative to the audio it
// transcribed.
type ASRSegment struct {
	StartSeconds float64
	EndSeconds   float64
	Text         string
}

// ASRService transcribes an audio file. The implementation may be swapped or
// reconfigured between invocations (hot-reload on next call, never mid-call).
type ASRService interface {
	Transcribe(ctx context.Context, audioPath string, language string) ([]ASRSegment, error)
}

// Message represents a single message in a chat conversation
type Message struct {
	// Role identifies the message sender: "user", "assistant", or "system"
	Role string

	// Content contains the text content of the message
	Content string
}

// LLMService generates text completions. Failures distinguish timeout from
// malformed output from unreachable via models.ErrorCode classification.
type LLMService interface {
	// Complete generates a completion for a single prompt.
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)

	// Chat generates a completion from a conversation history.
	Chat(ctx context.Context, messages []Message, maxTokens int) (string, error)

	// Provider reports the active backend name.
	Provider() string
}

// EmbeddingService produces vectors of a fixed, declared dimension.
type EmbeddingService interface {
	// Embed returns one vector per input text, each of Dimension() length.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	ModelName() string
	Dimension() int
}

// VectorRecord is the unit stored in a vector collection.
type VectorRecord struct {
	ID       string
	Vector   []float32
	Metadata map[string]string
}

// VectorMatch is one ranked query hit.
type VectorMatch struct {
	ID       string
	Score    float64
	Metadata map[string]string
}

// VectorStore is the versioned vector collection collaborator. Collections
// are namespaced by (embedding model, dimension); an unavailable store
// surfaces a distinguishable UPSTREAM_UNAVAILABLE error, never an empty
// result set.
type VectorStore interface {
	Upsert(ctx context.Context, collection string, records []VectorRecord) error

	Query(ctx context.Context, collection string, vector []float32, topK int) ([]VectorMatch, error)

	// DeleteRecords removes the given record ids from the collection.
	// Missing ids are ignored.
	DeleteRecords(ctx context.Context, collection string, ids []string) error

	// DropCollection removes every record in the collection.
	DropCollection(ctx context.Context, collection string) error

	// Count returns the number of records in the collection.
	Count(ctx context.Context, collection string) (int, error)
}

// SceneCandidate is one scene-change detection hit.
type SceneCandidate struct {
	TimestampSeconds float64
	// Score is the detector's change intensity in [0,1].
	Score float64
}

// MediaTool wraps the ffmpeg/ffprobe binaries. Calls are synchronous and
// produce files or parsed output; failures surface as typed I/O errors.
type MediaTool interface {
	// ProbeDuration returns the media duration in seconds.
	ProbeDuration(ctx context.Context, inputPath string) (float64, error)

	// ExtractAudioWindow writes a mono 16kHz WAV covering
	// [startSeconds, startSeconds+durationSeconds) of the input.
	ExtractAudioWindow(ctx context.Context, inputPath, outputWav string, startSeconds, durationSeconds float64) error

	// ExtractFrame writes a single frame at the given timestamp.
	ExtractFrame(ctx context.Context, inputPath, outputImage string, timestampSeconds float64, width int) (w, h int, err error)

	// DetectScenes returns scene-change candidates with scores above zero;
	// callers apply their own threshold.
	DetectScenes(ctx context.Context, inputPath string) ([]SceneCandidate, error)
}

// ProgressReporter is handed to stage handlers for checkpointed progress
// writes and cancellation observation.
type ProgressReporter interface {
	// Report writes progress in [0,1] with a message.
	Report(ctx context.Context, progress float64, message string) error

	// Cancelled reports whether cancellation was requested. Handlers check
	// this at checkpoint boundaries only.
	Cancelled(ctx context.Context) bool
}

// StageHandler executes one job type's resumable pipeline algorithm.
type StageHandler interface {
	Type() models.JobType

	// Execute runs the stage to completion, writing checkpoints as it goes.
	// A cancellation observed at a checkpoint returns a CANCELLED error;
	// collaborator failures return typed errors that the worker records on
	// the job.
	Execute(ctx context.Context, job *models.Job, reporter ProgressReporter) (interface{}, error)
}
