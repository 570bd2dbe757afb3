package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/vcto/mcpc/internal/longrunning"
	"github.com/vcto/mcpc/internal/mcpc"
)

// requestIDMetaKey carries the JSON-RPC request ID of a tools/call into its handler
const requestIDMetaKey = "mcpc/requestId"

type toolHandlers struct {
	helper        *mcpc.Helper
	cancellations *longrunning.CancellationHandler

	// tick is the countdown step; tests shorten it
	tick time.Duration
}

func newToolHandlers(helper *mcpc.Helper) *toolHandlers {
	return &toolHandlers{
		helper:        helper,
		cancellations: longrunning.NewCancellationHandler(helper.Tasks()),
		tick:          time.Second,
	}
}

// tagRequestID is an OnBeforeCallTool hook. It copies the request ID into the
// request metadata so the handler can bind it to the task it starts.
func tagRequestID(ctx context.Context, id any, req *mcp.CallToolRequest) {
	if id == nil {
		return
	}
	if req.Params.Meta == nil {
		req.Params.Meta = &mcp.Meta{}
	}
	if req.Params.Meta.AdditionalFields == nil {
		req.Params.Meta.AdditionalFields = make(map[string]any)
	}
	req.Params.Meta.AdditionalFields[requestIDMetaKey] = id
}

// bindRequest lets a notifications/cancelled for this tools/call stop taskID
func (h *toolHandlers) bindRequest(req mcp.CallToolRequest, taskID string) {
	if req.Params.Meta == nil {
		return
	}
	id, ok := req.Params.Meta.AdditionalFields[requestIDMetaKey]
	if !ok {
		return
	}
	if err := h.cancellations.Bind(id, taskID); err != nil {
		log.Printf("Cannot bind request to task %s: %v", taskID, err)
	}
}

func setupTools(s *server.MCPServer, h *toolHandlers) {
	s.AddTool(mcp.NewTool("countdown",
		mcp.WithDescription("Counts down in the background, sending an MCPC update every tick"),
		mcp.WithNumber("seconds", mcp.Description("Number of ticks (default 5)")),
		mcp.WithString("task_id", mcp.Description("Task ID to use; generated if omitted")),
	), h.countdown)

	s.AddTool(mcp.NewTool("fetch_async",
		mcp.WithDescription("Simulates a chunked download on a private event loop"),
		mcp.WithNumber("chunks", mcp.Description("Number of chunks (default 3)")),
		mcp.WithNumber("delay_ms", mcp.Description("Delay between chunks in milliseconds (default 200)")),
		mcp.WithString("task_id", mcp.Description("Task ID to use; generated if omitted")),
	), h.fetchAsync)

	s.AddTool(mcp.NewTool("task_status",
		mcp.WithDescription("Returns the registry snapshot of a background task"),
		mcp.WithString("task_id", mcp.Required()),
	), h.taskStatus)

	s.AddTool(mcp.NewTool("task_stop",
		mcp.WithDescription("Asks a background task to stop; the task decides when"),
		mcp.WithString("task_id", mcp.Required()),
	), h.taskStop)

	s.AddTool(mcp.NewTool("task_cleanup",
		mcp.WithDescription("Removes a background task from the registry"),
		mcp.WithString("task_id", mcp.Required()),
	), h.taskCleanup)

	s.AddTool(mcp.NewTool("mcpc_info",
		mcp.WithDescription("Returns MCPC protocol information for this provider"),
	), h.info)
}

func sessionIDFromContext(ctx context.Context) string {
	if session := server.ClientSessionFromContext(ctx); session != nil {
		return session.SessionID()
	}
	return "default"
}

func (h *toolHandlers) taskIDFrom(req mcp.CallToolRequest) string {
	if id := req.GetString("task_id", ""); id != "" {
		return id
	}
	return h.helper.NewTaskID()
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (h *toolHandlers) countdown(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ticks := req.GetInt("seconds", 5)
	if ticks < 0 {
		return mcp.NewToolResultError("seconds must not be negative"), nil
	}
	taskID := h.taskIDFrom(req)
	sessionID := sessionIDFromContext(ctx)
	reporter := h.helper.NewReporter("countdown", sessionID, taskID)
	tick := h.tick

	h.helper.StartTask(taskID, longrunning.SyncFunc(func(task *longrunning.Task, args ...any) error {
		reporter.Created(map[string]any{"remaining": ticks})

		for remaining := ticks; remaining > 0; remaining-- {
			select {
			case <-task.Context().Done():
				reporter.Complete(map[string]any{"remaining": remaining, "stopped": true})
				return nil
			case <-time.After(tick):
			}
			reporter.Update(map[string]any{"remaining": remaining - 1})
		}

		reporter.Complete(map[string]any{"remaining": 0, "stopped": false})
		return nil
	}))
	h.bindRequest(req, taskID)

	return jsonResult(map[string]any{"task_id": taskID, "status": "task_created"})
}

func (h *toolHandlers) fetchAsync(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	chunks := req.GetInt("chunks", 3)
	delay := time.Duration(req.GetInt("delay_ms", 200)) * time.Millisecond
	if chunks <= 0 {
		return mcp.NewToolResultError("chunks must be positive"), nil
	}
	taskID := h.taskIDFrom(req)
	reporter := h.helper.NewReporter("fetch_async", sessionIDFromContext(ctx), taskID)

	h.helper.StartTask(taskID, longrunning.AsyncFunc(func(loop *longrunning.Loop, task *longrunning.Task, args ...any) <-chan error {
		done := make(chan error, 1)
		received := 0

		var next func()
		next = func() {
			if task.StopRequested() {
				reporter.Fail(fmt.Errorf("stopped after %d of %d chunks", received, chunks))
				done <- nil
				return
			}
			received++
			if received == chunks {
				reporter.Complete(map[string]any{"chunks": received})
				done <- nil
				return
			}
			reporter.Update(map[string]any{"chunks": received, "total": chunks})
			loop.After(delay, next)
		}

		reporter.Created(map[string]any{"total": chunks})
		loop.After(delay, next)
		return done
	}))
	h.bindRequest(req, taskID)

	return jsonResult(map[string]any{"task_id": taskID, "status": "task_created"})
}

func (h *toolHandlers) taskStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	taskID, err := req.RequireString("task_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	info, found := h.helper.CheckTask(taskID)
	if !found {
		return jsonResult(map[string]any{"task_id": taskID, "found": false})
	}
	return jsonResult(map[string]any{
		"task_id":    info.ID,
		"found":      true,
		"start_time": info.StartTime,
		"status":     info.Status,
		"is_running": info.IsRunning,
	})
}

func (h *toolHandlers) taskStop(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	taskID, err := req.RequireString("task_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"task_id": taskID, "found": h.helper.StopTask(taskID)})
}

func (h *toolHandlers) taskCleanup(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	taskID, err := req.RequireString("task_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	h.helper.CleanupTask(taskID)
	return jsonResult(map[string]any{"task_id": taskID, "removed": true})
}

func (h *toolHandlers) info(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(h.helper.ProtocolInfo())
}
