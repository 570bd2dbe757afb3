package mcpc

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vcto/mcpc/internal/longrunning"
)

func quietOptions(w io.Writer) *Options {
	return &Options{
		Writer: w,
		Logger: log.New(io.Discard, "", 0),
	}
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) {
	return 0, errors.New("broken pipe")
}

type fakeRecorder struct {
	mu    sync.Mutex
	sent  []Message
	fails []Message
}

func (r *fakeRecorder) RecordCallback(msg Message, line []byte, sent bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sent {
		r.sent = append(r.sent, msg)
	} else {
		r.fails = append(r.fails, msg)
	}
}

func decodeLines(t *testing.T, out string) []Message {
	t.Helper()
	require.True(t, strings.HasSuffix(out, "\n"), "Every callback is newline terminated")

	var msgs []Message
	for _, line := range strings.Split(strings.TrimSuffix(out, "\n"), "\n") {
		msg, err := DecodeCallback([]byte(line))
		require.NoError(t, err, "line should be a complete callback: %q", line)
		msgs = append(msgs, msg)
	}
	return msgs
}

func TestNotifierSend(t *testing.T) {
	t.Logf("Importance: Send is the only way task state reaches the consumer; it must frame lines correctly and never propagate failures.")

	t.Run("writes one newline-terminated callback", func(t *testing.T) {
		var buf bytes.Buffer
		notifier := NewNotifier("demo", quietOptions(&buf))

		ok := notifier.Send(CreateMessage("calc", "sess-1", "task-1", "hello", StatusUpdate))
		require.True(t, ok)

		msgs := decodeLines(t, buf.String())
		require.Len(t, msgs, 1)
		assert.Equal(t, "task-1", msgs[0].TaskID)
		assert.Equal(t, "hello", msgs[0].Result)
	})

	t.Run("flushes buffered transports", func(t *testing.T) {
		var buf bytes.Buffer
		notifier := NewNotifier("demo", quietOptions(bufio.NewWriter(&buf)))

		require.True(t, notifier.Send(CreateMessage("calc", "s", "t", nil, StatusCreated)))
		assert.NotEmpty(t, buf.String(), "Callback should be visible without an explicit flush")
	})

	t.Run("transport errors are reported as false", func(t *testing.T) {
		recorder := &fakeRecorder{}
		opts := quietOptions(failingWriter{})
		opts.Recorder = recorder
		notifier := NewNotifier("demo", opts)

		assert.False(t, notifier.Send(CreateMessage("calc", "s", "t", nil, StatusUpdate)))
		assert.Len(t, recorder.fails, 1)
	})

	t.Run("invalid messages are reported as false", func(t *testing.T) {
		var buf bytes.Buffer
		notifier := NewNotifier("demo", quietOptions(&buf))

		assert.False(t, notifier.Send(CreateMessage("calc", "s", "t", nil, "bogus")))
		assert.False(t, notifier.Send(CreateMessage("calc", "s", "t", func() {}, StatusUpdate)))
		assert.Empty(t, buf.String(), "Nothing is written for a message that cannot be encoded")
	})

	t.Run("cancelled context skips the write", func(t *testing.T) {
		var buf bytes.Buffer
		notifier := NewNotifier("demo", quietOptions(&buf))
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		assert.False(t, notifier.SendContext(ctx, CreateMessage("calc", "s", "t", nil, StatusUpdate)))
		assert.Empty(t, buf.String())
	})

	t.Run("recorder sees successful sends", func(t *testing.T) {
		recorder := &fakeRecorder{}
		opts := quietOptions(io.Discard)
		opts.Recorder = recorder
		notifier := NewNotifier("demo", opts)

		notifier.Send(CreateMessage("calc", "s", "t", nil, StatusComplete))
		require.Len(t, recorder.sent, 1)
		assert.Equal(t, StatusComplete, recorder.sent[0].Status)
	})

	t.Run("protocol info names the provider", func(t *testing.T) {
		notifier := NewNotifier("weather-provider", quietOptions(io.Discard))
		assert.Equal(t, ProtocolInfo{Provider: "weather-provider"}, notifier.ProtocolInfo())
	})
}

func TestConcurrentSendsDoNotInterleave(t *testing.T) {
	t.Logf("Importance: Many tasks report at once over one byte stream; every line must arrive whole.")
	const tasks = 50
	const perTask = 20

	var buf bytes.Buffer
	helper := NewHelper("demo", quietOptions(&buf))

	payload := strings.Repeat("x", 4096)
	for i := 0; i < tasks; i++ {
		helper.StartTask(fmt.Sprintf("task-%d", i), longrunning.SyncFunc(func(task *longrunning.Task, args ...any) error {
			for j := 0; j < perTask; j++ {
				helper.Notify("bulk", "sess", task.ID(), map[string]any{"seq": j, "pad": payload}, StatusUpdate)
			}
			return nil
		}))
	}

	ctx := context.Background()
	for i := 0; i < tasks; i++ {
		info, found := helper.CheckTask(fmt.Sprintf("task-%d", i))
		require.True(t, found)
		require.NoError(t, info.Handle.Wait(ctx))
	}

	msgs := decodeLines(t, buf.String())
	assert.Len(t, msgs, tasks*perTask)

	perTaskCount := make(map[string]int)
	for _, msg := range msgs {
		perTaskCount[msg.TaskID]++
	}
	assert.Len(t, perTaskCount, tasks)
	for id, n := range perTaskCount {
		assert.Equal(t, perTask, n, id)
	}
}

func TestSyncWriter(t *testing.T) {
	t.Run("shared writer keeps host and callback lines whole", func(t *testing.T) {
		var buf bytes.Buffer
		shared := NewSyncWriter(bufio.NewWriterSize(&buf, 16))
		notifier := NewNotifier("demo", quietOptions(shared))

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(2)
			go func() {
				defer wg.Done()
				notifier.Send(CreateMessage("calc", "s", "t", nil, StatusUpdate))
			}()
			go func() {
				defer wg.Done()
				_, _ = shared.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{}}` + "\n"))
			}()
		}
		wg.Wait()

		lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
		require.Len(t, lines, 40)
		callbacks := 0
		for _, line := range lines {
			if _, err := DecodeCallback([]byte(line)); err == nil {
				callbacks++
			} else {
				assert.Equal(t, `{"jsonrpc":"2.0","id":1,"result":{}}`, line)
			}
		}
		assert.Equal(t, 20, callbacks)
	})

	t.Run("write errors are returned", func(t *testing.T) {
		_, err := NewSyncWriter(failingWriter{}).Write([]byte("x"))
		assert.Error(t, err)
	})
}
