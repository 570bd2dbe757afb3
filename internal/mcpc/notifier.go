package mcpc

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
)

// DefaultProgressRate is the default number of task_update messages per second a Reporter sends
const DefaultProgressRate = 10.0

// Recorder observes every send attempt. line is nil when encoding failed.
type Recorder interface {
	RecordCallback(msg Message, line []byte, sent bool)
}

// Options configures a Notifier or Helper. The zero value writes to stdout and logs to stderr.
type Options struct {
	// Writer is the transport. Defaults to a SyncWriter around os.Stdout.
	Writer io.Writer

	// Logger for send and task activity. Defaults to stderr with the mcpc-helpers prefix.
	Logger *log.Logger

	// Recorder, if set, sees every send attempt
	Recorder Recorder

	// ProgressRate limits task_update messages per Reporter, per second. Zero means
	// DefaultProgressRate, a negative value disables the limit.
	ProgressRate float64
}

// NewLogger returns the stderr logger used when Options.Logger is nil
func NewLogger() *log.Logger {
	return log.New(os.Stderr, "mcpc-helpers: ", log.LstdFlags)
}

func (o *Options) withDefaults() *Options {
	out := Options{}
	if o != nil {
		out = *o
	}
	if out.Writer == nil {
		out.Writer = NewSyncWriter(os.Stdout)
	}
	if out.Logger == nil {
		out.Logger = NewLogger()
	}
	if out.ProgressRate == 0 {
		out.ProgressRate = DefaultProgressRate
	}
	return &out
}

// Notifier writes status messages to the consumer as callback lines
type Notifier struct {
	providerName string

	mu sync.Mutex // held across write and flush
	w  io.Writer

	logger       *log.Logger
	recorder     Recorder
	progressRate float64
}

// NewNotifier creates a notifier for the named provider. opts may be nil.
func NewNotifier(providerName string, opts *Options) *Notifier {
	opts = opts.withDefaults()
	return &Notifier{
		providerName: providerName,
		w:            opts.Writer,
		logger:       opts.Logger,
		recorder:     opts.Recorder,
		progressRate: opts.ProgressRate,
	}
}

// Send writes msg as one newline-terminated callback line and flushes the transport.
// Delivery is best effort: failures are logged and reported as false.
func (n *Notifier) Send(msg Message) bool {
	line, err := EncodeCallback(msg)
	if err != nil {
		n.logger.Printf("Error sending callback: %v", err)
		n.record(msg, nil, false)
		return false
	}

	if err := n.writeLine(line); err != nil {
		n.logger.Printf("Error sending callback: %v", err)
		n.record(msg, line, false)
		return false
	}

	n.logger.Printf("Sent callback: %.100s...", line)
	n.record(msg, line, true)
	return true
}

// SendContext is Send that gives up before writing if ctx is already done
func (n *Notifier) SendContext(ctx context.Context, msg Message) bool {
	if err := ctx.Err(); err != nil {
		n.logger.Printf("Callback for task %s not sent: %v", msg.TaskID, err)
		return false
	}
	return n.Send(msg)
}

// ProtocolInfo returns the provider identity advertised to the consumer
func (n *Notifier) ProtocolInfo() ProtocolInfo {
	return ProtocolInfo{Provider: n.providerName}
}

// NewReporter creates a rate-limited progress reporter for one task
func (n *Notifier) NewReporter(toolName, sessionID, taskID string) *Reporter {
	return newReporter(n, toolName, sessionID, taskID, n.progressRate)
}

func (n *Notifier) writeLine(line []byte) error {
	buf := make([]byte, 0, len(line)+1)
	buf = append(buf, line...)
	buf = append(buf, '\n')

	n.mu.Lock()
	defer n.mu.Unlock()

	if _, err := n.w.Write(buf); err != nil {
		return fmt.Errorf("failed to write callback: %w", err)
	}
	if f, ok := n.w.(flusher); ok {
		if err := f.Flush(); err != nil {
			return fmt.Errorf("failed to flush callback: %w", err)
		}
	}
	return nil
}

func (n *Notifier) record(msg Message, line []byte, sent bool) {
	if n.recorder != nil {
		n.recorder.RecordCallback(msg, line, sent)
	}
}
