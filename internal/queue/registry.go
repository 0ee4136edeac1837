package queue

import "sync"

// CancelRegistry is the in-memory cancel signal. The durable
// cancel_requested column survives a crash; the registry lets a running
// worker in the same process observe the request without a store read.
type CancelRegistry struct {
	mu        sync.RWMutex
	requested map[string]struct{}
}

// NewCancelRegistry creates an empty registry
func NewCancelRegistry() *CancelRegistry {
	return &CancelRegistry{requested: make(map[string]struct{})}
}

// Request marks a job as cancel-requested
func (r *CancelRegistry) Request(jobID string) {
	r.mu.Lock()
	r.requested[jobID] = struct{}{}
	r.mu.Unlock()
}

// Requested reports whether cancellation was requested for the job
func (r *CancelRegistry) Requested(jobID string) bool {
	r.mu.RLock()
	_, ok := r.requested[jobID]
	r.mu.RUnlock()
	return ok
}

// Clear removes a job's cancel marker, typically once the job reaches a
// terminal state.
func (r *CancelRegistry) Clear(jobID string) {
	r.mu.Lock()
	delete(r.requested, jobID)
	r.mu.Unlock()
}
