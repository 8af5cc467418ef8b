package orchestrator

import (
	"context"
	"sync"
)

// registry tracks the cancellation handles of live provisioning tasks,
// keyed by environment id. It is the only shared mutable structure between
// the request path and the provisioning tasks, so all access goes through
// the mutex. A cancel racing with the task's own removal resolves to a
// no-op: whichever runs second finds nothing to do.
type registry struct {
	mu    sync.Mutex
	tasks map[uint]context.CancelFunc
}

func newRegistry() *registry {
	return &registry{tasks: make(map[uint]context.CancelFunc)}
}

func (r *registry) add(id uint, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[id] = cancel
}

// remove drops the entry and releases the task's context. Called by the
// task itself on completion, whatever the outcome.
func (r *registry) remove(id uint) {
	r.mu.Lock()
	cancel, ok := r.tasks[id]
	delete(r.tasks, id)
	r.mu.Unlock()
	if ok {
		cancel()
	}
}

// cancel requests cooperative cancellation of the task for id. Returns
// false when no task is live for that id.
func (r *registry) cancel(id uint) bool {
	r.mu.Lock()
	cancel, ok := r.tasks[id]
	r.mu.Unlock()
	if !ok {
		return false
	}
	cancel()
	return true
}

// active returns the number of live tasks.
func (r *registry) active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}
