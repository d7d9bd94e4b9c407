package task

import "sync"

// Registry is the ordered sequence of every Task added so far via Add
// (§3's Task registry); constructing a Task does not add it. Order is the
// order of Add calls, preserved for reproducibility; it is cleared when
// the scheduler reloads the user's
// graph-building code for a new barrier pass.
type Registry struct {
	mu    sync.Mutex
	tasks []*Task
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Add appends a task, preserving construction order.
func (r *Registry) Add(t *Task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks = append(r.tasks, t)
}

// Snapshot returns the current frontier: a stable-ordered copy of every
// task registered so far. The scheduler operates on a snapshot taken at
// the start of each pass (§4.3).
func (r *Registry) Snapshot() []*Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Task, len(r.tasks))
	copy(out, r.tasks)
	return out
}

// Len reports the number of tasks currently registered.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}

// Clear empties the registry; used before re-running the user's
// graph-building function on a barrier reload.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks = nil
}

// Builder is the user-supplied graph-building function: the Go analogue
// of importing a jugfile. It populates the registry by constructing Task
// values (which self-register is not implied here — callers add
// explicitly via Registry.Add, keeping construction free of hidden global
// state beyond the registry itself).
type Builder func(r *Registry) error
