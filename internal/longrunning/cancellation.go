package longrunning

import (
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
)

// CancellationHandler turns client cancellation notifications into stop requests
type CancellationHandler struct {
	manager *Manager

	mu       sync.Mutex
	requests map[string]string // JSON-RPC request ID -> Task ID
}

// NewCancellationHandler creates a handler for cancellation notifications
func NewCancellationHandler(manager *Manager) *CancellationHandler {
	return &CancellationHandler{
		manager:  manager,
		requests: make(map[string]string),
	}
}

// Bind records that the tool call with the given JSON-RPC request ID started taskID,
// so a later cancellation of that request stops the task. Bindings for tasks that
// are no longer registered are dropped.
func (h *CancellationHandler) Bind(requestID any, taskID string) error {
	key, err := requestKey(requestID)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for k, id := range h.requests {
		if _, found := h.manager.CheckTask(id); !found {
			delete(h.requests, k)
		}
	}
	h.requests[key] = taskID
	return nil
}

// Handle processes a notifications/cancelled message.
// A requestId bound with Bind resolves to its task; otherwise it is treated as the
// task ID itself. An unknown task is not an error, it has most likely been cleaned
// up already.
func (h *CancellationHandler) Handle(notification mcp.Notification) error {
	fields := notification.Params.AdditionalFields
	if fields == nil {
		return fmt.Errorf("missing cancellation params")
	}

	key, err := requestKey(fields["requestId"])
	if err != nil {
		return fmt.Errorf("missing or invalid requestId in cancellation params: %w", err)
	}

	h.mu.Lock()
	taskID, bound := h.requests[key]
	delete(h.requests, key)
	h.mu.Unlock()
	if !bound {
		taskID = key
	}

	reason, _ := fields["reason"].(string)
	if reason == "" {
		reason = "Cancelled by client"
	}

	if !h.manager.StopTask(taskID) {
		h.manager.logger.Printf("No task found for cancellation request: %s", key)
		return nil
	}

	h.manager.logger.Printf("Stop requested for task %s: %s", taskID, reason)
	return nil
}

func requestKey(id any) (string, error) {
	switch v := id.(type) {
	case string:
		return v, nil
	case float64, int, int64:
		return fmt.Sprintf("%v", v), nil
	case mcp.RequestId:
		if v.IsNil() {
			return "", fmt.Errorf("nil request ID")
		}
		return requestKey(v.Value())
	default:
		return "", fmt.Errorf("unsupported request ID type %T", id)
	}
}
