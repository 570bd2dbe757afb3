package mcpc

import (
	"io"
	"sync"
)

type flusher interface {
	Flush() error
}

// SyncWriter serializes writes to a shared stream and flushes after each one.
// Hand the same SyncWriter to the host's stdio server so that host responses and
// callbacks never interleave inside a line.
type SyncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewSyncWriter wraps w
func NewSyncWriter(w io.Writer) *SyncWriter {
	return &SyncWriter{w: w}
}

// Write writes p in one call to the underlying writer, then flushes it if it buffers
func (s *SyncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.w.Write(p)
	if err != nil {
		return n, err
	}
	if f, ok := s.w.(flusher); ok {
		if err := f.Flush(); err != nil {
			return n, err
		}
	}
	return n, nil
}
