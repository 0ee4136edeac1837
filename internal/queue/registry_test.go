package queue

import (
	"sync"
	"testing"
)

func TestCancelRegistry(t *testing.T) {
	registry := NewCancelRegistry()

	if registry.Requested("job-1") {
		t.Error("fresh registry must report no requests")
	}

	registry.Request("job-1")
	if !registry.Requested("job-1") {
		t.Error("request not observed")
	}
	if registry.Requested("job-2") {
		t.Error("request must be scoped to its job")
	}

	registry.Clear("job-1")
	if registry.Requested("job-1") {
		t.Error("cleared request still observed")
	}

	// Clearing an unknown job is a no-op.
	registry.Clear("job-9")
}

func TestCancelRegistryConcurrent(t *testing.T) {
	registry := NewCancelRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			registry.Request("job-1")
			_ = registry.Requested("job-1")
			registry.Clear("job-1")
		}()
	}
	wg.Wait()
}
