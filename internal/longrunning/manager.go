package longrunning

import (
	"context"
	"io"
	"log"
	"os"
	"sort"
	"sync"
	"time"
)

// Manager is the task registry. It owns every task record for the lifetime of the
// provider; records are removed only by CleanupTask.
type Manager struct {
	tasks map[string]*Task // Task ID -> Task
	mu    sync.RWMutex

	logger *log.Logger
}

// Option configures a Manager
type Option func(*Manager)

// WithLogger sets the logger used for lifecycle messages
func WithLogger(logger *log.Logger) Option {
	return func(m *Manager) {
		if logger == nil {
			logger = log.New(io.Discard, "", 0)
		}
		m.logger = logger
	}
}

// NewManager creates an empty task registry
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		tasks:  make(map[string]*Task),
		logger: log.New(os.Stderr, "mcpc-helpers: ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// StartTask registers a task with status running and launches work on its own
// goroutine. It returns without waiting for the work.
//
// A task ID that is already registered is overwritten: the previous record is
// dropped and its goroutine keeps running unobserved.
func (m *Manager) StartTask(id string, work Work, args ...any) {
	if work == nil {
		m.logger.Printf("Refusing to start task %s: nil work", id)
		return
	}

	stopCtx, stop := context.WithCancel(context.Background())
	task := &Task{
		id:        id,
		startTime: time.Now(),
		status:    StatusRunning,
		handle:    newHandle(),
		stopCtx:   stopCtx,
		stop:      stop,
		manager:   m,
	}

	m.mu.Lock()
	if prev, exists := m.tasks[id]; exists && prev.handle.Alive() {
		// TODO(vcto): decide whether duplicate IDs should be rejected instead of orphaning
		m.logger.Printf("Task %s replaced while still running; previous execution is orphaned", id)
	}
	m.tasks[id] = task
	m.mu.Unlock()

	go m.run(task, work, args)

	m.logger.Printf("Started task %s", id)
}

// run executes work and closes the handle when it returns.
// Errors and panics are logged, never recorded in the registry.
func (m *Manager) run(task *Task, work Work, args []any) {
	defer close(task.handle.done)
	defer func() {
		if r := recover(); r != nil {
			m.logger.Printf("Task %s panicked: %v", task.id, r)
		}
	}()

	if err := work.execute(task, args); err != nil {
		m.logger.Printf("Task %s returned error: %v", task.id, err)
	}
}

// CheckTask returns a snapshot of the task with IsRunning polled from its handle.
// The second value is false if no such task is registered.
func (m *Manager) CheckTask(id string) (TaskInfo, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	task, exists := m.tasks[id]
	if !exists {
		return TaskInfo{}, false
	}
	return task.info(), true
}

// StopTask requests a cooperative stop and returns whether the task was found.
// It flips the status to stopping and nothing else reaches the work. Task.Context
// is derived from that same flag, so its cancellation is a view of the stop request
// and not an interrupt: the goroutine is never signalled and keeps running until
// the work itself checks StopRequested or Context and returns.
func (m *Manager) StopTask(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, exists := m.tasks[id]
	if !exists {
		return false
	}
	task.status = StatusStopping
	task.stop()
	return true
}

// CleanupTask removes the task from the registry. It does not wait for the work
// to finish and is a no-op for unknown IDs.
func (m *Manager) CleanupTask(id string) {
	m.mu.Lock()
	_, exists := m.tasks[id]
	delete(m.tasks, id)
	m.mu.Unlock()

	if exists {
		m.logger.Printf("Cleaned up task %s", id)
	}
}

// StopAll requests a stop for every registered task and returns how many were signalled
func (m *Manager) StopAll() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, task := range m.tasks {
		task.status = StatusStopping
		task.stop()
	}
	return len(m.tasks)
}

// ActiveTaskCount returns the number of registered tasks, finished or not
func (m *Manager) ActiveTaskCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tasks)
}

// TaskIDs returns the registered task IDs in sorted order
func (m *Manager) TaskIDs() []string {
	m.mu.RLock()
	ids := make([]string, 0, len(m.tasks))
	for id := range m.tasks {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	sort.Strings(ids)
	return ids
}
