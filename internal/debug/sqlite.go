package debug

import (
	"database/sql"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/vcto/mcpc/internal/config"
	"github.com/vcto/mcpc/internal/mcpc"
)

// SQLiteStorage implements the callback log on SQLite
type SQLiteStorage struct {
	db     *sql.DB
	dbPath string
	logger *log.Logger
}

// NewSQLiteStorage opens (and if needed creates) the callback log.
// A nil logger discards storage messages.
func NewSQLiteStorage(cfg config.DebugConfig, logger *log.Logger) (*SQLiteStorage, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	var dbPath string
	switch cfg.StorageType {
	case "memory":
		dbPath = ":memory:"
	case "file":
		dbPath = cfg.StoragePath
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.StorageType)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Every connection to :memory: is a separate database
	db.SetMaxOpenConns(1)

	storage := &SQLiteStorage{
		db:     db,
		dbPath: dbPath,
		logger: logger,
	}

	if err := storage.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return storage, nil
}

func (s *SQLiteStorage) createTables() error {
	query := `
	CREATE TABLE IF NOT EXISTS callbacks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		task_id TEXT NOT NULL,
		tool_name TEXT,
		status TEXT NOT NULL,
		line TEXT,
		sent INTEGER NOT NULL DEFAULT 0,
		timestamp DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_callbacks_task ON callbacks(task_id);
	CREATE INDEX IF NOT EXISTS idx_callbacks_session ON callbacks(session_id);
	CREATE INDEX IF NOT EXISTS idx_callbacks_timestamp ON callbacks(timestamp);`

	_, err := s.db.Exec(query)
	return err
}

// RecordCallback stores one send attempt. Failures are logged; the send path never sees them.
func (s *SQLiteStorage) RecordCallback(msg mcpc.Message, line []byte, sent bool) {
	query := `
	INSERT INTO callbacks (session_id, task_id, tool_name, status, line, sent, timestamp)
	VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.Exec(query, msg.SessionID, msg.TaskID, msg.ToolName, string(msg.Status), string(line), sent, time.Now())
	if err != nil {
		s.logger.Printf("Failed to record callback for task %s: %v", msg.TaskID, err)
	}
}

// GetTaskHistory returns all recorded callbacks for a task in send order
func (s *SQLiteStorage) GetTaskHistory(taskID string) ([]CallbackRecord, error) {
	query := `
	SELECT id, session_id, task_id, tool_name, status, line, sent, timestamp
	FROM callbacks WHERE task_id = ? ORDER BY id ASC`

	rows, err := s.db.Query(query, taskID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			s.logger.Printf("Failed to close rows: %v", err)
		}
	}()

	var records []CallbackRecord
	for rows.Next() {
		var record CallbackRecord
		err := rows.Scan(
			&record.ID,
			&record.SessionID,
			&record.TaskID,
			&record.ToolName,
			&record.Status,
			&record.Line,
			&record.Sent,
			&record.Timestamp,
		)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	return records, rows.Err()
}

// GetRecentSessions retrieves the sessions with the most recent callbacks
func (s *SQLiteStorage) GetRecentSessions(limit int) ([]string, error) {
	if limit <= 0 {
		limit = 10
	}

	query := `
	SELECT session_id FROM callbacks
	GROUP BY session_id
	ORDER BY MAX(id) DESC
	LIMIT ?`

	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []string
	for rows.Next() {
		var sessionID string
		if err := rows.Scan(&sessionID); err != nil {
			return nil, err
		}
		sessions = append(sessions, sessionID)
	}

	return sessions, rows.Err()
}

// GetStats returns basic statistics about the callback log
func (s *SQLiteStorage) GetStats() (map[string]interface{}, error) {
	stats := map[string]interface{}{
		"debug_enabled": true,
		"storage_type":  "sqlite",
	}

	var total, failed int64
	err := s.db.QueryRow("SELECT COUNT(*), COALESCE(SUM(CASE WHEN sent = 0 THEN 1 ELSE 0 END), 0) FROM callbacks").Scan(&total, &failed)
	if err != nil {
		return nil, err
	}
	stats["total_callbacks"] = total
	stats["failed_callbacks"] = failed

	var tasks int64
	if err := s.db.QueryRow("SELECT COUNT(DISTINCT task_id) FROM callbacks").Scan(&tasks); err != nil {
		return nil, err
	}
	stats["total_tasks"] = tasks

	statusRows, err := s.db.Query(`
		SELECT status, COUNT(*)
		FROM callbacks
		GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer statusRows.Close()

	statusCounts := make(map[string]int64)
	for statusRows.Next() {
		var status string
		var count int64
		if err := statusRows.Scan(&status, &count); err != nil {
			return nil, err
		}
		statusCounts[status] = count
	}
	stats["statuses"] = statusCounts

	return stats, statusRows.Err()
}

// CleanupOldRecords removes records older than the specified duration
func (s *SQLiteStorage) CleanupOldRecords(maxAge time.Duration) error {
	cutoff := time.Now().Add(-maxAge)

	result, err := s.db.Exec(`DELETE FROM callbacks WHERE timestamp < ?`, cutoff)
	if err != nil {
		return err
	}

	if rowsAffected, _ := result.RowsAffected(); rowsAffected > 0 {
		s.logger.Printf("Cleaned up %d old callback records", rowsAffected)
	}
	return nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteStorage) IsEnabled() bool {
	return true
}
