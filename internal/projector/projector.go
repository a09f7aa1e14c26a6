// Package projector turns the transport events of one assistant turn into
// render commands. A Turn owns every piece of per-turn state: the stream
// parser, the render machine and the pointer to the running tool block.
package projector

import (
	"log/slog"
	"time"

	"github.com/isaacphi/mcpchat/internal/events"
	"github.com/isaacphi/mcpchat/internal/render"
	"github.com/isaacphi/mcpchat/internal/stream"
)

const cancelledMessage = "cancelled"

type Options struct {
	TurnID        string
	CollapseDelay time.Duration
	Logger        *slog.Logger
	// OnViolation is called when an event breaks the transport protocol
	OnViolation func(reason string)
}

// Turn is the per-turn context. It is not safe for concurrent use; events
// must be handled in delivery order from a single goroutine.
type Turn struct {
	id          string
	parser      *stream.Parser
	machine     *render.Machine
	currentTool string
	done        bool
	violations  int
	response    string
	logger      *slog.Logger
	onViolation func(string)
}

func New(opts Options) *Turn {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Turn{
		id:     opts.TurnID,
		parser: stream.NewParser(),
		machine: render.NewMachine(opts.TurnID, render.MachineOptions{
			CollapseDelay: opts.CollapseDelay,
			Logger:        logger,
		}),
		logger:      logger.With("turn", opts.TurnID),
		onViolation: opts.OnViolation,
	}
}

func (t *Turn) ID() string {
	return t.id
}

// Start opens the turn and returns the commands showing it as pending
func (t *Turn) Start() []render.Command {
	return t.machine.Begin()
}

// Handle consumes one transport event and returns the resulting commands in
// order. Events arriving after a terminal event are logged and dropped.
func (t *Turn) Handle(ev events.Event) []render.Command {
	if t.done {
		t.logger.Debug("event after end of turn dropped", "type", ev.Type())
		return nil
	}

	switch e := ev.(type) {
	case *events.TextDeltaEvent:
		return t.project(t.parser.Feed(e.Text))

	case *events.ToolSelectionEvent:
		return t.machine.AddToolSelection(e.Label)

	case *events.ToolExecutionEvent:
		id, cmds := t.machine.StartTool(e.ToolName, e.ToolID, e.DisplayInput())
		t.currentTool = id
		return cmds

	case *events.ToolResultEvent:
		if t.currentTool == "" {
			t.violation("tool_result without a running tool")
			return nil
		}
		cmds := t.machine.FinishTool(t.currentTool, e.Content, e.IsError)
		t.currentTool = ""
		return cmds

	case *events.MessageCompleteEvent:
		cmds := t.project(t.parser.Close())
		cmds = append(cmds, t.machine.Complete()...)
		t.finish()
		return cmds

	case *events.ErrorEvent:
		msg := "unknown error"
		if e.Error != nil {
			msg = e.Error.Error()
		}
		t.logger.Warn("turn failed", "error", msg)
		cmds := t.machine.Fail(msg)
		t.finish()
		return cmds

	case *events.CancelEvent:
		cmds := t.machine.Fail(cancelledMessage)
		t.finish()
		return cmds

	default:
		t.violation("unexpected event type " + ev.Type().String())
		return nil
	}
}

// Cancel abandons the turn
func (t *Turn) Cancel() []render.Command {
	return t.Handle(&events.CancelEvent{})
}

func (t *Turn) project(segs []stream.Segment) []render.Command {
	var out []render.Command
	for _, seg := range segs {
		switch seg.Kind {
		case stream.SegmentPlainText:
			out = append(out, t.machine.AppendResponse(seg.Text)...)
		case stream.SegmentThinkingOpen:
			out = append(out, t.machine.OpenReasoning()...)
		case stream.SegmentThinkingChunk:
			out = append(out, t.machine.AppendReasoning(seg.Text)...)
		case stream.SegmentThinkingClose:
			// An implicit close recovers an unterminated span, which is
			// collapsed once shown.
			out = append(out, t.machine.CompleteReasoning(seg.Final)...)
		}
	}
	return out
}

func (t *Turn) violation(reason string) {
	t.violations++
	t.logger.Warn("protocol violation ignored", "reason", reason)
	if t.onViolation != nil {
		t.onViolation(reason)
	}
}

// finish releases the parser and tool pointer once the turn has ended
func (t *Turn) finish() {
	t.done = true
	t.response = t.parser.Response()
	t.parser = nil
	t.currentTool = ""
}

// Done reports whether a terminal event was handled
func (t *Turn) Done() bool {
	return t.done
}

func (t *Turn) State() render.TurnState {
	return t.machine.State()
}

// Response returns the plain text of the turn with thinking spans removed
func (t *Turn) Response() string {
	if t.parser != nil {
		return t.parser.Response()
	}
	return t.response
}

// Violations counts protocol violations seen during the turn
func (t *Turn) Violations() int {
	return t.violations
}

// Document returns the render state of the turn
func (t *Turn) Document() *render.Document {
	return t.machine.Document()
}
