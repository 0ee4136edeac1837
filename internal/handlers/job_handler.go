package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/interfaces"
	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/models"
	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/queue"
)

// maxWaitTimeout caps the long-poll duration for progress waits
const maxWaitTimeout = 60 * time.Second

// JobHandler handles job lifecycle API requests
type JobHandler struct {
	manager *queue.Manager
	hub     *queue.Hub
	logger  arbor.ILogger
}

// NewJobHandler creates a new job handler
func NewJobHandler(manager *queue.Manager, hub *queue.Hub, logger arbor.ILogger) *JobHandler {
	return &JobHandler{manager: manager, hub: hub, logger: logger}
}

// CreateHandler enqueues a job
// POST /api/jobs {"video_id": "...", "job_type": "transcribe", "params": {...}}
func (h *JobHandler) CreateHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		VideoID string          `json:"video_id"`
		JobType models.JobType  `json:"job_type"`
		Params  json.RawMessage `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	params, err := models.DecodeParams(req.JobType, req.Params)
	if err != nil {
		writeError(w, err)
		return
	}

	job, created, err := h.manager.CreateJob(r.Context(), req.VideoID, req.JobType, params)
	if err != nil {
		h.logger.Warn().Err(err).Str("video_id", req.VideoID).Msg("Job creation failed")
		writeError(w, err)
		return
	}

	status := http.StatusCreated
	if !created {
		// Coalesced onto an existing active job.
		status = http.StatusOK
	}
	writeJSON(w, status, map[string]interface{}{
		"job":     job,
		"created": created,
	})
}

// ListHandler returns a filtered, paginated job list
// GET /api/jobs?video_id=&type=&status=&limit=50&offset=0
func (h *JobHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	opts := &interfaces.JobListOptions{
		VideoID: r.URL.Query().Get("video_id"),
		Type:    models.JobType(r.URL.Query().Get("type")),
		Status:  models.JobStatus(r.URL.Query().Get("status")),
		Limit:   intQuery(r, "limit", 50),
		Offset:  intQuery(r, "offset", 0),
	}

	jobs, total, err := h.manager.ListJobs(r.Context(), opts)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list jobs")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":        jobs,
		"total_count": total,
		"limit":       opts.Limit,
		"offset":      opts.Offset,
	})
}

// GetHandler returns one job
// GET /api/jobs/{id}
func (h *JobHandler) GetHandler(w http.ResponseWriter, r *http.Request, jobID string) {
	job, err := h.manager.GetJob(r.Context(), jobID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// CancelHandler requests cancellation
// POST /api/jobs/{id}/cancel
func (h *JobHandler) CancelHandler(w http.ResponseWriter, r *http.Request, jobID string) {
	job, err := h.manager.Cancel(r.Context(), jobID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// RetryHandler re-queues a failed or cancelled job
// POST /api/jobs/{id}/retry {"from_scratch": false}
func (h *JobHandler) RetryHandler(w http.ResponseWriter, r *http.Request, jobID string) {
	var req struct {
		FromScratch bool `json:"from_scratch"`
	}
	if r.Body != nil {
		// An empty body means resume from checkpoints.
		json.NewDecoder(r.Body).Decode(&req)
	}

	job, err := h.manager.Retry(r.Context(), jobID, req.FromScratch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// WaitHandler long-polls until the job changes
// GET /api/jobs/{id}/wait?since=<unix_millis>&timeout=30s
//
// since is the updated_at watermark of the last snapshot the client saw;
// omitting it returns the current state immediately.
func (h *JobHandler) WaitHandler(w http.ResponseWriter, r *http.Request, jobID string) {
	var since time.Time
	if v := intQuery(r, "since", 0); v > 0 {
		since = time.UnixMilli(int64(v)).UTC()
	}

	timeout := 30 * time.Second
	if v := r.URL.Query().Get("timeout"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil && parsed > 0 {
			timeout = parsed
		}
	}
	if timeout > maxWaitTimeout {
		timeout = maxWaitTimeout
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	job, err := h.hub.WaitForChange(ctx, jobID, since)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"job":     job,
		"changed": err == nil,
		"since":   job.UpdatedAt.UnixMilli(),
	})
}

// StreamHandler pushes job snapshots as Server-Sent Events until the job
// reaches a terminal state or the client disconnects. Unlike the WebSocket
// feed this follows a single job and needs no client-side filtering.
// GET /api/jobs/{id}/stream
func (h *JobHandler) StreamHandler(w http.ResponseWriter, r *http.Request, jobID string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	snapshots, err := h.hub.Watch(r.Context(), jobID)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	for job := range snapshots {
		data, err := json.Marshal(job)
		if err != nil {
			h.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to marshal job snapshot")
			return
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}
}
