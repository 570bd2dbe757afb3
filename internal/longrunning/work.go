package longrunning

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrLoopClosed is returned when submitting to a loop whose task has finished
var ErrLoopClosed = errors.New("loop closed")

// Work is a unit of background work. It is implemented by SyncFunc and AsyncFunc only.
type Work interface {
	execute(t *Task, args []any) error
}

// SyncFunc runs to completion on the task goroutine.
// The returned error is logged by the manager and otherwise ignored.
type SyncFunc func(t *Task, args ...any) error

func (f SyncFunc) execute(t *Task, args []any) error {
	return f(t, args...)
}

// AsyncFunc is a suspending unit of work. It is invoked on a Loop private to its task
// and returns an awaitable; the task goroutine drives the loop until the awaitable
// yields. A nil channel means there is nothing to await. The awaitable may be
// unbuffered: loop callbacks can resolve it without blocking the loop.
type AsyncFunc func(loop *Loop, t *Task, args ...any) <-chan error

func (f AsyncFunc) execute(t *Task, args []any) error {
	loop := newLoop()
	defer loop.close()

	return loop.runUntilComplete(func() <-chan error {
		return f(loop, t, args...)
	})
}

// Loop is a single-task cooperative scheduler. Callbacks submitted to it run one at a
// time on the goroutine of the task that owns it. Loops are never shared between tasks.
type Loop struct {
	mu     sync.Mutex
	queue  []func()
	closed bool

	wake chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
}

func newLoop() *Loop {
	ctx, cancel := context.WithCancel(context.Background())
	return &Loop{
		wake:   make(chan struct{}, 1),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Submit queues fn to run on the loop goroutine
func (l *Loop) Submit(fn func()) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrLoopClosed
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return nil
}

// After queues fn to run on the loop goroutine once d has elapsed.
// It is dropped if the loop has closed by then.
func (l *Loop) After(d time.Duration, fn func()) {
	time.AfterFunc(d, func() {
		_ = l.Submit(fn)
	})
}

// Context is cancelled when the loop closes
func (l *Loop) Context() context.Context {
	return l.ctx
}

// runUntilComplete invokes start on the calling goroutine and then runs queued
// callbacks until the returned awaitable yields. Callbacks still queued at that
// point are discarded.
func (l *Loop) runUntilComplete(start func() <-chan error) error {
	awaitable := start()
	if awaitable == nil {
		return nil
	}

	// Received off the loop goroutine, which is busy running the callbacks that
	// resolve the awaitable.
	done := make(chan error, 1)
	go func() {
		done <- <-awaitable
	}()

	for {
		l.drain()

		select {
		case err := <-done:
			return err
		case <-l.wake:
		}
	}
}

// drain runs queued callbacks until the queue is empty
func (l *Loop) drain() {
	for {
		l.mu.Lock()
		if len(l.queue) == 0 {
			l.mu.Unlock()
			return
		}
		fn := l.queue[0]
		l.queue = l.queue[1:]
		l.mu.Unlock()

		fn()
	}
}

func (l *Loop) close() {
	l.mu.Lock()
	l.closed = true
	l.queue = nil
	l.mu.Unlock()
	l.cancel()
}
