package engine

import (
	"context"
	"sync"
)

// Registry tracks active generation jobs and owns their cancellation.
// Cancelling a job makes its pipeline's remaining status writes no-ops;
// the in-flight work may still run to completion but its result is
// discarded.
type Registry struct {
	mu     sync.Mutex
	active map[string]context.CancelFunc
}

func NewRegistry() *Registry {
	return &Registry{active: make(map[string]context.CancelFunc)}
}

// Register adds jobID to the active set and returns the context its
// pipeline must run under.
func (r *Registry) Register(parent context.Context, jobID string) context.Context {
	ctx, cancel := context.WithCancel(parent)
	r.mu.Lock()
	r.active[jobID] = cancel
	r.mu.Unlock()
	return ctx
}

// Cancel abandons an active job. Returns false when the job was not
// active.
func (r *Registry) Cancel(jobID string) bool {
	r.mu.Lock()
	cancel, ok := r.active[jobID]
	delete(r.active, jobID)
	r.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// Done removes a finished job from the active set.
func (r *Registry) Done(jobID string) {
	r.mu.Lock()
	cancel, ok := r.active[jobID]
	delete(r.active, jobID)
	r.mu.Unlock()
	if ok {
		cancel()
	}
}

// Active reports whether jobID is still tracked. Pipeline status writes
// check this so a deleted job's late writes are dropped.
func (r *Registry) Active(jobID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.active[jobID]
	return ok
}
