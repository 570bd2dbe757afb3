// Package mcpc builds MCPC status messages and delivers them to the consumer as
// out-of-band JSON-RPC callbacks on the provider's duplex stream.
package mcpc

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// CallbackID is the JSON-RPC id reserved for out-of-band callbacks
const CallbackID = "MCPC_CALLBACK"

var (
	// ErrInvalidStatus is returned when a message carries a status outside the MCPC set
	ErrInvalidStatus = errors.New("invalid mcpc status")
	// ErrNotCallback is returned when decoding a line that is not an MCPC callback
	ErrNotCallback = errors.New("not an mcpc callback")
)

// Status is the lifecycle stage a message reports
type Status string

const (
	StatusCreated  Status = "task_created"
	StatusUpdate   Status = "task_update"
	StatusComplete Status = "task_complete"
	StatusFailed   Status = "task_failed"
)

// Valid reports whether s is one of the four MCPC statuses
func (s Status) Valid() bool {
	switch s {
	case StatusCreated, StatusUpdate, StatusComplete, StatusFailed:
		return true
	}
	return false
}

// Message is a status notification for one task. It is built per send and not retained.
type Message struct {
	SessionID string `json:"session_id"`
	TaskID    string `json:"task_id"`
	ToolName  string `json:"tool_name"`
	Result    any    `json:"result"`
	Status    Status `json:"status"`
}

// CreateMessage builds a message. An empty status means task_update.
func CreateMessage(toolName, sessionID, taskID string, result any, status Status) Message {
	if status == "" {
		status = StatusUpdate
	}
	return Message{
		SessionID: sessionID,
		TaskID:    taskID,
		ToolName:  toolName,
		Result:    result,
		Status:    status,
	}
}

// ProtocolInfo identifies the provider to the consumer
type ProtocolInfo struct {
	Provider string `json:"mcpc_provider"`
}

// callbackResult is the result object of a callback envelope. isError is always
// present on the wire, so mcp.CallToolResult (which omits it when false) is not used.
type callbackResult struct {
	Content []mcp.TextContent `json:"content"`
	IsError bool              `json:"isError"`
}

// EncodeCallback serializes msg into a single-line JSON-RPC response addressed to
// CallbackID. The message JSON travels as the text of the only content item.
func EncodeCallback(msg Message) ([]byte, error) {
	if !msg.Status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, msg.Status)
	}

	text, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}

	response := mcp.JSONRPCResponse{
		JSONRPC: mcp.JSONRPC_VERSION,
		ID:      mcp.NewRequestId(CallbackID),
		Result: callbackResult{
			Content: []mcp.TextContent{mcp.NewTextContent(string(text))},
			IsError: false,
		},
	}

	line, err := json.Marshal(response)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal callback envelope: %w", err)
	}
	return line, nil
}

// DecodeCallback parses a line produced by EncodeCallback back into its message
func DecodeCallback(line []byte) (Message, error) {
	var envelope struct {
		JSONRPC string `json:"jsonrpc"`
		ID      any    `json:"id"`
		Result  struct {
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
			IsError bool `json:"isError"`
		} `json:"result"`
	}
	if err := json.Unmarshal(line, &envelope); err != nil {
		return Message{}, fmt.Errorf("failed to parse callback: %w", err)
	}

	if id, _ := envelope.ID.(string); id != CallbackID {
		return Message{}, fmt.Errorf("%w: id %v", ErrNotCallback, envelope.ID)
	}
	if len(envelope.Result.Content) != 1 || envelope.Result.Content[0].Type != "text" {
		return Message{}, fmt.Errorf("%w: expected one text content item", ErrNotCallback)
	}

	var msg Message
	if err := json.Unmarshal([]byte(envelope.Result.Content[0].Text), &msg); err != nil {
		return Message{}, fmt.Errorf("failed to parse message: %w", err)
	}
	return msg, nil
}
