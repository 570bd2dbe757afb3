// Package debug records every MCPC callback the provider attempts to send, so a
// developer can reconstruct what the consumer was told about each task.
package debug

import (
	"fmt"
	"io"
	"log"
	"time"

	"github.com/vcto/mcpc/internal/config"
	"github.com/vcto/mcpc/internal/mcpc"
)

// CallbackRecord represents one send attempt in the callback log
type CallbackRecord struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	TaskID    string    `json:"task_id"`
	ToolName  string    `json:"tool_name"`
	Status    string    `json:"status"`
	Line      string    `json:"line"` // Serialized callback, empty if encoding failed
	Sent      bool      `json:"sent"`
	Timestamp time.Time `json:"timestamp"`
}

// Storage interface for different storage backends
type Storage interface {
	mcpc.Recorder
	GetTaskHistory(taskID string) ([]CallbackRecord, error)
	GetRecentSessions(limit int) ([]string, error)
	GetStats() (map[string]interface{}, error)
	CleanupOldRecords(maxAge time.Duration) error
	Close() error
	IsEnabled() bool
}

// NoOpStorage provides a no-op implementation when debug is disabled
type NoOpStorage struct{}

func (n *NoOpStorage) RecordCallback(msg mcpc.Message, line []byte, sent bool) {}

func (n *NoOpStorage) GetTaskHistory(taskID string) ([]CallbackRecord, error) {
	return nil, nil
}

func (n *NoOpStorage) GetRecentSessions(limit int) ([]string, error) {
	return nil, nil
}

func (n *NoOpStorage) GetStats() (map[string]interface{}, error) {
	return map[string]interface{}{
		"debug_enabled": false,
		"storage_type":  "disabled",
	}, nil
}

func (n *NoOpStorage) CleanupOldRecords(maxAge time.Duration) error {
	return nil
}

func (n *NoOpStorage) Close() error {
	return nil
}

func (n *NoOpStorage) IsEnabled() bool {
	return false
}

// NewStorage returns the storage selected by cfg. Its messages go to logger, or
// nowhere when logger is nil.
func NewStorage(cfg config.DebugConfig, logger *log.Logger) (Storage, error) {
	if !cfg.Enabled {
		return &NoOpStorage{}, nil
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	storage, err := NewSQLiteStorage(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create debug storage: %w", err)
	}

	if cfg.RetentionH > 0 {
		if err := storage.CleanupOldRecords(time.Duration(cfg.RetentionH) * time.Hour); err != nil {
			logger.Printf("Initial callback log cleanup failed: %v", err)
		}
	}

	logger.Printf("Debug callback log enabled: %s", cfg.StorageType)
	return storage, nil
}
