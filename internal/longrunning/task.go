package longrunning

import (
	"context"
	"time"
)

// Status is the registry-tracked state of a task
type Status string

const (
	// StatusRunning is set when the task is started
	StatusRunning Status = "running"
	// StatusStopping is set when a stop has been requested; it is advisory only
	StatusStopping Status = "stopping"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// Handle is the detached execution handle of a task goroutine.
// The registry never joins or cancels it.
type Handle struct {
	done chan struct{}
}

func newHandle() *Handle {
	return &Handle{done: make(chan struct{})}
}

// Alive reports whether the goroutine is still executing the work
func (h *Handle) Alive() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

// Done is closed when the work has returned (or panicked)
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the work has returned or ctx is done
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Task is a registry record. The work function receives its own *Task and uses it
// to poll for stop requests.
type Task struct {
	// Identity
	id        string
	startTime time.Time

	// State, guarded by manager.mu
	status Status

	// Execution
	handle *Handle

	// Closed on the first stop request for this record
	stopCtx context.Context
	stop    context.CancelFunc

	manager *Manager
}

// ID returns the task's identifier
func (t *Task) ID() string {
	return t.id
}

// StartTime returns when the task was spawned
func (t *Task) StartTime() time.Time {
	return t.startTime
}

// Handle returns the task's execution handle
func (t *Task) Handle() *Handle {
	return t.handle
}

// Status returns the current registry status of this record
func (t *Task) Status() Status {
	t.manager.mu.RLock()
	defer t.manager.mu.RUnlock()
	return t.status
}

// StopRequested reports whether StopTask has been called for this record.
// Work functions that want to honour stops must poll this (or watch Context).
func (t *Task) StopRequested() bool {
	return t.Status() == StatusStopping
}

// Context returns a context that is cancelled once a stop is requested. It carries
// the same advisory flag as StopRequested: nothing forces the work to observe it.
func (t *Task) Context() context.Context {
	return t.stopCtx
}

// info builds a snapshot (must be called with manager.mu held)
func (t *Task) info() TaskInfo {
	return TaskInfo{
		ID:        t.id,
		StartTime: t.startTime,
		Status:    t.status,
		IsRunning: t.handle.Alive(),
		Handle:    t.handle,
	}
}

// TaskInfo is a point-in-time snapshot of a task record
type TaskInfo struct {
	ID        string    `json:"task_id"`
	StartTime time.Time `json:"start_time"`
	Status    Status    `json:"status"`
	// IsRunning is polled from the execution handle when the snapshot is taken
	IsRunning bool `json:"is_running"`

	Handle *Handle `json:"-"`
}
