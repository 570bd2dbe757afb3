package mcpc

import (
	"sync"

	"golang.org/x/time/rate"
)

// Reporter sends the status messages of a single task. task_update messages are
// rate limited; an update that arrives too early is held and replaced by later
// ones until it can be sent or Flush is called. Lifecycle messages are never limited.
type Reporter struct {
	notifier  *Notifier
	toolName  string
	sessionID string
	taskID    string

	limiter *rate.Limiter

	mu         sync.Mutex
	pending    any
	hasPending bool
}

func newReporter(n *Notifier, toolName, sessionID, taskID string, perSecond float64) *Reporter {
	limit := rate.Limit(perSecond)
	if perSecond < 0 {
		limit = rate.Inf
	}
	return &Reporter{
		notifier:  n,
		toolName:  toolName,
		sessionID: sessionID,
		taskID:    taskID,
		limiter:   rate.NewLimiter(limit, 1),
	}
}

// TaskID returns the task this reporter speaks for
func (r *Reporter) TaskID() string {
	return r.taskID
}

// Created sends task_created
func (r *Reporter) Created(result any) bool {
	return r.send(result, StatusCreated)
}

// Update sends task_update if the rate limit allows, otherwise holds it as pending.
// Returns false only when a send was attempted and failed.
func (r *Reporter) Update(result any) bool {
	r.mu.Lock()
	if !r.limiter.Allow() {
		r.pending = result
		r.hasPending = true
		r.mu.Unlock()
		return true
	}
	r.hasPending = false
	r.pending = nil
	r.mu.Unlock()

	return r.send(result, StatusUpdate)
}

// Flush sends the held update, if any
func (r *Reporter) Flush() bool {
	r.mu.Lock()
	if !r.hasPending {
		r.mu.Unlock()
		return true
	}
	result := r.pending
	r.hasPending = false
	r.pending = nil
	r.mu.Unlock()

	return r.send(result, StatusUpdate)
}

// Complete flushes any held update and sends task_complete
func (r *Reporter) Complete(result any) bool {
	_ = r.Flush()
	return r.send(result, StatusComplete)
}

// Fail flushes any held update and sends task_failed with the error text
func (r *Reporter) Fail(err error) bool {
	_ = r.Flush()
	result := map[string]any{"error": "unknown error"}
	if err != nil {
		result["error"] = err.Error()
	}
	return r.send(result, StatusFailed)
}

func (r *Reporter) send(result any, status Status) bool {
	return r.notifier.Send(CreateMessage(r.toolName, r.sessionID, r.taskID, result, status))
}
