package longrunning

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	t.Cleanup(cancel)
	return ctx
}

func TestAsyncWork(t *testing.T) {
	t.Logf("Importance: Suspending work must complete without the caller driving any loop, and each task must get its own loop.")

	t.Run("async work runs to completion on its private loop", func(t *testing.T) {
		manager := newQuietManager()
		var (
			mu    sync.Mutex
			steps []int
		)

		manager.StartTask("async-1", AsyncFunc(func(loop *Loop, task *Task, args ...any) <-chan error {
			done := make(chan error, 1)
			for i := 1; i <= 3; i++ {
				step := i
				assert.NoError(t, loop.Submit(func() {
					mu.Lock()
					steps = append(steps, step)
					mu.Unlock()
					if step == 3 {
						done <- nil
					}
				}))
			}
			return done
		}))

		info, found := manager.CheckTask("async-1")
		require.True(t, found)
		require.NoError(t, info.Handle.Wait(testContext(t)))

		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, []int{1, 2, 3}, steps, "Callbacks run in submission order")
	})

	t.Run("timers resume the task on its own loop", func(t *testing.T) {
		manager := newQuietManager()
		ran := make(chan bool, 1)

		manager.StartTask("async-timer", AsyncFunc(func(loop *Loop, task *Task, args ...any) <-chan error {
			done := make(chan error, 1)
			loop.After(10*time.Millisecond, func() {
				ran <- true
				done <- nil
			})
			return done
		}))

		info, _ := manager.CheckTask("async-timer")
		require.NoError(t, info.Handle.Wait(testContext(t)))
		assert.True(t, <-ran)
	})

	t.Run("each task gets an isolated loop that closes when it finishes", func(t *testing.T) {
		manager := newQuietManager()
		loops := make(chan *Loop, 2)

		work := AsyncFunc(func(loop *Loop, task *Task, args ...any) <-chan error {
			loops <- loop
			return nil
		})
		manager.StartTask("iso-1", work)
		manager.StartTask("iso-2", work)

		first, second := <-loops, <-loops
		assert.NotSame(t, first, second)

		for _, id := range []string{"iso-1", "iso-2"} {
			info, _ := manager.CheckTask(id)
			require.NoError(t, info.Handle.Wait(testContext(t)))
		}

		assert.ErrorIs(t, first.Submit(func() {}), ErrLoopClosed)
		assert.Error(t, second.Context().Err(), "Loop context is cancelled on close")
	})

	t.Run("a blocked loop does not stall other tasks", func(t *testing.T) {
		manager := newQuietManager()
		release := make(chan struct{})

		manager.StartTask("stalled", AsyncFunc(func(loop *Loop, task *Task, args ...any) <-chan error {
			done := make(chan error, 1)
			_ = loop.Submit(func() {
				<-release
				done <- nil
			})
			return done
		}))
		manager.StartTask("free", AsyncFunc(func(loop *Loop, task *Task, args ...any) <-chan error {
			done := make(chan error, 1)
			_ = loop.Submit(func() { done <- nil })
			return done
		}))

		free, _ := manager.CheckTask("free")
		require.NoError(t, free.Handle.Wait(testContext(t)))

		stalled, _ := manager.CheckTask("stalled")
		assert.True(t, stalled.IsRunning)

		close(release)
		require.NoError(t, stalled.Handle.Wait(testContext(t)))
	})

	t.Run("awaitable error is surfaced to the runner only", func(t *testing.T) {
		loop := newLoop()
		defer loop.close()

		err := loop.runUntilComplete(func() <-chan error {
			done := make(chan error, 1)
			done <- errors.New("fetch failed")
			return done
		})
		assert.EqualError(t, err, "fetch failed")
	})

	t.Run("a loop callback can resolve an unbuffered awaitable", func(t *testing.T) {
		manager := newQuietManager()

		manager.StartTask("async-unbuffered", AsyncFunc(func(loop *Loop, task *Task, args ...any) <-chan error {
			done := make(chan error)
			assert.NoError(t, loop.Submit(func() {
				done <- nil
			}))
			return done
		}))

		info, found := manager.CheckTask("async-unbuffered")
		require.True(t, found)
		require.NoError(t, info.Handle.Wait(testContext(t)), "Task must finish once its awaitable resolves")

		info, _ = manager.CheckTask("async-unbuffered")
		assert.False(t, info.IsRunning)
	})

	t.Run("an unbuffered awaitable resolved from a timer completes the task", func(t *testing.T) {
		manager := newQuietManager()

		manager.StartTask("async-unbuffered-timer", AsyncFunc(func(loop *Loop, task *Task, args ...any) <-chan error {
			done := make(chan error)
			loop.After(time.Millisecond, func() {
				done <- errors.New("timed out")
			})
			return done
		}))

		info, found := manager.CheckTask("async-unbuffered-timer")
		require.True(t, found)
		require.NoError(t, info.Handle.Wait(testContext(t)))
	})
}
