// -----------------------------------------------------------------------
// Job - durable job record and the typed params/result payloads
// -----------------------------------------------------------------------

package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// JobType identifies the pipeline stage a job executes.
type JobType string

const (
	JobTypeTranscribe JobType = "transcribe"
	JobTypeIndex      JobType = "index"
	JobTypeSummarize  JobType = "summarize"
	JobTypeKeyframes  JobType = "keyframes"
)

// IsValidJobType checks if a given JobType is one of the valid constants.
func IsValidJobType(jobType JobType) bool {
	switch jobType {
	case JobTypeTranscribe, JobTypeIndex, JobTypeSummarize, JobTypeKeyframes:
		return true
	default:
		return false
	}
}

// JobStatus represents the lifecycle stage of a job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Job is the durable job record. The job store exclusively owns mutation;
// every other component reads job state but never writes it directly.
//
// UpdatedAt strictly increases on every mutation and is the sole signal the
// progress hub observes.
type Job struct {
	ID              string          `json:"id"`
	VideoID         string          `json:"video_id"`
	Type            JobType         `json:"job_type"`
	Status          JobStatus       `json:"status"`
	Progress        float64         `json:"progress"`
	Message         string          `json:"message,omitempty"`
	Params          json.RawMessage `json:"params,omitempty"`
	Result          json.RawMessage `json:"result,omitempty"`
	ErrorCode       ErrorCode       `json:"error_code,omitempty"`
	ErrorMessage    string          `json:"error_message,omitempty"`
	CancelRequested bool            `json:"cancel_requested,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	StartedAt       *time.Time      `json:"started_at,omitempty"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
}

// NewJob creates a pending job with marshalled params.
func NewJob(videoID string, jobType JobType, params JobParams) (*Job, error) {
	if params != nil {
		if err := ValidateParams(jobType, params); err != nil {
			return nil, err
		}
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal job params: %w", err)
	}
	now := time.Now().UTC()
	return &Job{
		ID:        uuid.New().String(),
		VideoID:   videoID,
		Type:      jobType,
		Status:    JobStatusPending,
		Params:    raw,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// IsTerminal returns true if the job is in a terminal state.
func (j *Job) IsTerminal() bool {
	return j.Status == JobStatusCompleted ||
		j.Status == JobStatusFailed ||
		j.Status == JobStatusCancelled
}

// IsActive returns true while the job still owns its (video_id, job_type)
// slot: pending or running.
func (j *Job) IsActive() bool {
	return j.Status == JobStatusPending || j.Status == JobStatusRunning
}

// DecodeParams unmarshals the stored params into the typed variant for the
// job's type. Missing params decode to the type's defaults.
func (j *Job) DecodeParams() (JobParams, error) {
	return DecodeParams(j.Type, j.Params)
}

// -----------------------------------------------------------------------
// Typed params - a closed sum keyed by job type, validated at enqueue
// -----------------------------------------------------------------------

var validate = validator.New()

// JobParams is implemented by exactly the four per-type parameter structs.
type JobParams interface {
	JobType() JobType
	ApplyDefaults()
}

// TranscribeParams controls the windowed transcription stage.
type TranscribeParams struct {
	SegmentSeconds float64 `json:"segment_seconds" validate:"gte=10,lte=1800"`
	OverlapSeconds float64 `json:"overlap_seconds" validate:"gte=0,lte=60"`
	Language       string  `json:"language,omitempty"`
	FromScratch    bool    `json:"from_scratch,omitempty"`
}

func (p *TranscribeParams) JobType() JobType { return JobTypeTranscribe }

func (p *TranscribeParams) ApplyDefaults() {
	if p.SegmentSeconds == 0 {
		p.SegmentSeconds = 120
	}
	if p.OverlapSeconds == 0 {
		p.OverlapSeconds = 3
	}
}

// IndexParams controls transcript chunking and vector indexing.
type IndexParams struct {
	WindowSeconds  float64 `json:"window_seconds" validate:"gte=10,lte=3600"`
	OverlapSeconds float64 `json:"overlap_seconds" validate:"gte=0,lte=120"`
	FromScratch    bool    `json:"from_scratch,omitempty"`
}

func (p *IndexParams) JobType() JobType { return JobTypeIndex }

func (p *IndexParams) ApplyDefaults() {
	if p.WindowSeconds == 0 {
		p.WindowSeconds = 60
	}
	if p.OverlapSeconds == 0 {
		p.OverlapSeconds = 10
	}
}

// SummarizeParams controls map-reduce summarization.
type SummarizeParams struct {
	SectionSeconds float64 `json:"section_seconds" validate:"gte=60,lte=3600"`
	MaxTokens      int     `json:"max_tokens" validate:"gte=0,lte=32768"`
	FromScratch    bool    `json:"from_scratch,omitempty"`
}

func (p *SummarizeParams) JobType() JobType { return JobTypeSummarize }

func (p *SummarizeParams) ApplyDefaults() {
	if p.SectionSeconds == 0 {
		p.SectionSeconds = 300
	}
	if p.MaxTokens == 0 {
		p.MaxTokens = 2048
	}
}

// KeyframeMethod selects the extraction strategy.
type KeyframeMethod string

const (
	KeyframeMethodInterval KeyframeMethod = "interval"
	KeyframeMethodScene    KeyframeMethod = "scene"
)

// KeyframeParams controls keyframe extraction and chapter alignment.
type KeyframeParams struct {
	Method          KeyframeMethod `json:"method" validate:"oneof=interval scene"`
	IntervalSeconds float64        `json:"interval_seconds" validate:"gte=0,lte=3600"`
	MaxFrames       int            `json:"max_frames" validate:"gte=0,lte=2000"`
	SceneThreshold  float64        `json:"scene_threshold" validate:"gte=0,lte=1"`
	PerSection      int            `json:"per_section" validate:"gte=0,lte=50"`
	MinGapSeconds   float64        `json:"min_gap_seconds" validate:"gte=0,lte=600"`
	Fallback        string         `json:"fallback,omitempty" validate:"omitempty,oneof=nearest"`
}

func (p *KeyframeParams) JobType() JobType { return JobTypeKeyframes }

func (p *KeyframeParams) ApplyDefaults() {
	if p.Method == "" {
		p.Method = KeyframeMethodInterval
	}
	if p.IntervalSeconds == 0 {
		p.IntervalSeconds = 30
	}
	if p.MaxFrames == 0 {
		p.MaxFrames = 200
	}
	if p.SceneThreshold == 0 {
		p.SceneThreshold = 0.3
	}
	if p.PerSection == 0 {
		p.PerSection = 3
	}
	if p.MinGapSeconds == 0 {
		p.MinGapSeconds = 2
	}
}

// ValidateParams applies defaults then runs struct validation, and checks the
// params variant matches the job type.
func ValidateParams(jobType JobType, params JobParams) error {
	if params.JobType() != jobType {
		return NewAppError(ErrCodeValidation, "params type %s does not match job type %s", params.JobType(), jobType)
	}
	params.ApplyDefaults()
	if err := validate.Struct(params); err != nil {
		return WrapError(ErrCodeValidation, err, "invalid %s params", jobType)
	}
	return nil
}

// DecodeParams unmarshals raw params into the typed variant for jobType,
// applying defaults for zero values. nil raw yields all-default params.
func DecodeParams(jobType JobType, raw json.RawMessage) (JobParams, error) {
	var params JobParams
	switch jobType {
	case JobTypeTranscribe:
		params = &TranscribeParams{}
	case JobTypeIndex:
		params = &IndexParams{}
	case JobTypeSummarize:
		params = &SummarizeParams{}
	case JobTypeKeyframes:
		params = &KeyframeParams{}
	default:
		return nil, NewAppError(ErrCodeValidation, "unknown job type: %s", jobType)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, params); err != nil {
			return nil, WrapError(ErrCodeValidation, err, "decode %s params", jobType)
		}
	}
	params.ApplyDefaults()
	return params, nil
}

// -----------------------------------------------------------------------
// Typed results - one per job type, stored as the job's result payload
// -----------------------------------------------------------------------

// TranscribeResult is recorded when a transcription job completes.
type TranscribeResult struct {
	SegmentCount    int     `json:"segment_count"`
	WindowCount     int     `json:"window_count"`
	AudioDuration   float64 `json:"audio_duration_seconds"`
	TranscriptHash  string  `json:"transcript_hash"`
	ResumedFromZero bool    `json:"resumed_from_zero"`
}

// IndexResult is recorded when an indexing job completes.
type IndexResult struct {
	ChunkCount     int    `json:"chunk_count"`
	Collection     string `json:"collection"`
	TranscriptHash string `json:"transcript_hash"`
}

// SummarizeResult is recorded when a summarization job completes.
type SummarizeResult struct {
	SectionCount   int    `json:"section_count"`
	OutlineNodes   int    `json:"outline_nodes"`
	TranscriptHash string `json:"transcript_hash"`
}

// SectionKeyframes lists the frames chosen for one outline chapter.
type SectionKeyframes struct {
	Title        string  `json:"title"`
	StartSeconds float64 `json:"start_time"`
	EndSeconds   float64 `json:"end_time"`
	TimestampsMS []int64 `json:"timestamps_ms"`
}

// KeyframeResult is recorded when a keyframe job completes. Sections is only
// present when the video had a summary outline to align against.
type KeyframeResult struct {
	FrameCount int                `json:"frame_count"`
	Method     KeyframeMethod     `json:"method"`
	Sections   []SectionKeyframes `json:"sections,omitempty"`
}

// MarshalResult encodes a typed result for storage on the job row.
func MarshalResult(result interface{}) (json.RawMessage, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("marshal job result: %w", err)
	}
	return raw, nil
}
