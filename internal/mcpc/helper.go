package mcpc

import (
	"github.com/google/uuid"

	"github.com/vcto/mcpc/internal/longrunning"
)

// Helper bundles the task registry and the notifier behind one provider name.
// It is what a tool provider normally holds on to.
type Helper struct {
	providerName string
	tasks        *longrunning.Manager
	notifier     *Notifier
}

// NewHelper creates a helper for the named provider. opts may be nil.
func NewHelper(providerName string, opts *Options) *Helper {
	opts = opts.withDefaults()

	h := &Helper{
		providerName: providerName,
		tasks:        longrunning.NewManager(longrunning.WithLogger(opts.Logger)),
		notifier:     NewNotifier(providerName, opts),
	}
	opts.Logger.Printf("Initialized MCPC helper for provider: %s", providerName)
	return h
}

// Tasks exposes the underlying registry
func (h *Helper) Tasks() *longrunning.Manager {
	return h.tasks
}

// Notifier exposes the underlying notifier
func (h *Helper) Notifier() *Notifier {
	return h.notifier
}

// NewTaskID returns a fresh random task ID for callers that do not have one
func (h *Helper) NewTaskID() string {
	return uuid.NewString()
}

// StartTask launches work in the background. See longrunning.Manager.StartTask.
func (h *Helper) StartTask(taskID string, work longrunning.Work, args ...any) {
	h.tasks.StartTask(taskID, work, args...)
}

// CheckTask returns the task snapshot, or false if it is unknown
func (h *Helper) CheckTask(taskID string) (longrunning.TaskInfo, bool) {
	return h.tasks.CheckTask(taskID)
}

// StopTask requests a cooperative stop and reports whether the task exists
func (h *Helper) StopTask(taskID string) bool {
	return h.tasks.StopTask(taskID)
}

// CleanupTask removes the task from the registry
func (h *Helper) CleanupTask(taskID string) {
	h.tasks.CleanupTask(taskID)
}

// CreateMessage builds a status message. See CreateMessage.
func (h *Helper) CreateMessage(toolName, sessionID, taskID string, result any, status Status) Message {
	return CreateMessage(toolName, sessionID, taskID, result, status)
}

// Send delivers msg to the consumer; false means it was not delivered
func (h *Helper) Send(msg Message) bool {
	return h.notifier.Send(msg)
}

// Notify creates and sends a message in one step
func (h *Helper) Notify(toolName, sessionID, taskID string, result any, status Status) bool {
	return h.notifier.Send(CreateMessage(toolName, sessionID, taskID, result, status))
}

// NewReporter creates a progress reporter for taskID
func (h *Helper) NewReporter(toolName, sessionID, taskID string) *Reporter {
	return h.notifier.NewReporter(toolName, sessionID, taskID)
}

// ProtocolInfo returns the provider identity
func (h *Helper) ProtocolInfo() ProtocolInfo {
	return h.notifier.ProtocolInfo()
}
