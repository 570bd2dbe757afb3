// Package longrunning provides the background task registry used by MCPC tool providers.
//
// A Manager launches caller-supplied work on its own goroutine, tracks it by task ID
// and lets the caller inspect, advisory-stop and remove it. Work comes in two flavours:
//
//	// Runs to completion on the task goroutine
//	manager.StartTask("task-1", longrunning.SyncFunc(func(t *longrunning.Task, args ...any) error {
//	    for i := 0; i < 10; i++ {
//	        if t.StopRequested() {
//	            return nil
//	        }
//	        doStep(i)
//	    }
//	    return nil
//	}))
//
//	// Suspends cooperatively on a private Loop owned by the task
//	manager.StartTask("task-2", longrunning.AsyncFunc(func(loop *longrunning.Loop, t *longrunning.Task, args ...any) <-chan error {
//	    done := make(chan error, 1)
//	    loop.After(time.Second, func() { done <- nil })
//	    return done
//	}))
//
// The package handles:
// - Task registration, inspection and removal
// - One private cooperative loop per asynchronous task
// - Advisory stop requests (no preemption: work must poll StopRequested or watch Context)
// - Mapping MCP cancellation notifications onto stop requests
//
// The registry never records completion or failure. Callers observe completion through
// TaskInfo.IsRunning or through the notifications the work sends itself. Execution
// handles are detached: a task that never returns leaks its goroutine until exit.
package longrunning
