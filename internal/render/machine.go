package render

import (
	"fmt"
	"log/slog"
	"time"
)

type MachineOptions struct {
	// CollapseDelay is the hint attached to block_collapsed commands
	CollapseDelay time.Duration
	Logger        *slog.Logger
}

// Machine is the render state machine of a single turn. Every method returns
// the commands describing the transition it made, already applied to the
// machine's own Document. Calls that arrive after the turn reached a terminal
// state are logged and produce no commands.
type Machine struct {
	turnID        string
	state         TurnState
	doc           *Document
	seq           int
	reasoningID   string
	responseID    string
	collapseDelay time.Duration
	logger        *slog.Logger
}

func NewMachine(turnID string, opts MachineOptions) *Machine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Machine{
		turnID:        turnID,
		state:         StateIdle,
		doc:           NewDocument(),
		collapseDelay: opts.CollapseDelay,
		logger:        logger.With("turn", turnID),
	}
}

func (m *Machine) State() TurnState {
	return m.state
}

// Document returns the machine's replica of the rendered turn
func (m *Machine) Document() *Document {
	return m.doc
}

// Begin moves Idle to AwaitingFirstContent
func (m *Machine) Begin() []Command {
	if m.state != StateIdle {
		m.logger.Warn("begin ignored", "state", m.state)
		return nil
	}
	m.state = StateAwaitingFirstContent
	var out []Command
	m.emit(&out, Command{Type: CmdTurnStarted})
	return out
}

// OpenReasoning starts a new reasoning block in front of the response block,
// or at the end when no response block exists yet. An already active
// reasoning block is reused.
func (m *Machine) OpenReasoning() []Command {
	if m.ignored("open reasoning") {
		return nil
	}
	var out []Command
	m.openReasoning(&out)
	m.markStreaming(&out)
	return out
}

// AppendReasoning appends text to the active reasoning block, opening one if needed
func (m *Machine) AppendReasoning(text string) []Command {
	if m.ignored("append reasoning") {
		return nil
	}
	var out []Command
	m.openReasoning(&out)
	m.markStreaming(&out)
	if text != "" {
		m.appendText(&out, m.reasoningID, text)
	}
	return out
}

// CompleteReasoning marks the active reasoning block complete and detaches it,
// so the next OpenReasoning starts a fresh block. With collapse set the block
// is also scheduled for auto-collapse.
func (m *Machine) CompleteReasoning(collapse bool) []Command {
	if m.ignored("complete reasoning") || m.reasoningID == "" {
		return nil
	}
	var out []Command
	id := m.reasoningID
	m.reasoningID = ""
	m.emit(&out, Command{Type: CmdBlockCompleted, BlockID: id})
	if collapse {
		m.emit(&out, Command{Type: CmdBlockCollapsed, BlockID: id, DelayMs: m.collapseDelay.Milliseconds()})
	}
	return out
}

// AppendResponse appends text to the response block, creating it at the end
// of the turn on first use
func (m *Machine) AppendResponse(text string) []Command {
	if m.ignored("append response") {
		return nil
	}
	var out []Command
	if m.responseID == "" {
		m.responseID = m.insert(&out, Block{Kind: KindResponse}, "")
	}
	m.markStreaming(&out)
	if text != "" {
		m.appendText(&out, m.responseID, text)
	}
	return out
}

// AddToolSelection inserts an informational block in front of the response block
func (m *Machine) AddToolSelection(label string) []Command {
	if m.ignored("tool selection") {
		return nil
	}
	var out []Command
	m.insert(&out, Block{Kind: KindToolSelection, Label: label, Complete: true}, m.responseID)
	return out
}

// StartTool appends a running tool execution block and returns its ID
func (m *Machine) StartTool(toolName, toolID, input string) (string, []Command) {
	if m.ignored("start tool") {
		return "", nil
	}
	var out []Command
	id := m.insert(&out, Block{
		Kind:     KindToolExecution,
		ToolName: toolName,
		ToolID:   toolID,
		Input:    input,
		Status:   ToolRunning,
	}, "")
	return id, out
}

// FinishTool attaches a result to a running tool block. Blocks that already
// hold a result are left untouched.
func (m *Machine) FinishTool(id, result string, failed bool) []Command {
	if m.ignored("finish tool") {
		return nil
	}
	b, ok := m.doc.Block(id)
	if !ok || b.Kind != KindToolExecution {
		m.logger.Warn("finish for unknown tool block", "block", id)
		return nil
	}
	if b.Status != ToolRunning {
		m.logger.Warn("tool block already finished", "block", id, "status", b.Status)
		return nil
	}
	status := ToolDone
	if failed {
		status = ToolError
	}
	var out []Command
	m.emit(&out, Command{Type: CmdToolFinished, BlockID: id, Result: result, Status: status})
	return out
}

// Complete marks every open text block complete and ends the turn. Tool
// blocks still running keep their status.
func (m *Machine) Complete() []Command {
	if m.ignored("complete") {
		return nil
	}
	var out []Command
	for _, b := range m.doc.Blocks() {
		if b.Complete || b.Kind == KindToolExecution {
			continue
		}
		m.emit(&out, Command{Type: CmdBlockCompleted, BlockID: b.ID})
	}
	m.reasoningID = ""
	m.state = StateCompleted
	m.emit(&out, Command{Type: CmdTurnCompleted})
	return out
}

// Fail replaces every block of the turn with a single error block
func (m *Machine) Fail(message string) []Command {
	if m.ignored("fail") {
		return nil
	}
	m.reasoningID = ""
	m.responseID = ""
	m.state = StateErrored
	var out []Command
	m.emit(&out, Command{Type: CmdTurnFailed, Block: &Block{
		ID:       m.nextID(),
		Kind:     KindError,
		Content:  message,
		Complete: true,
	}})
	return out
}

func (m *Machine) ignored(op string) bool {
	if m.state.Terminal() {
		m.logger.Debug("transition after terminal state ignored", "op", op, "state", m.state)
		return true
	}
	return false
}

func (m *Machine) openReasoning(out *[]Command) {
	if m.reasoningID != "" {
		return
	}
	m.reasoningID = m.insert(out, Block{Kind: KindReasoning}, m.responseID)
}

func (m *Machine) markStreaming(out *[]Command) {
	if m.state != StateStreaming {
		m.state = StateStreaming
		m.emit(out, Command{Type: CmdTurnStreaming})
	}
}

func (m *Machine) appendText(out *[]Command, id, text string) {
	b, _ := m.doc.Block(id)
	m.emit(out, Command{Type: CmdBlockUpdated, BlockID: id, Delta: text, Content: b.Content + text})
}

// insert adds b in front of the block with ID before, or at the end when
// before is empty, opening the container first if needed.
func (m *Machine) insert(out *[]Command, b Block, before string) string {
	if !m.doc.Open() {
		m.emit(out, Command{Type: CmdContainerOpened})
	}
	b.ID = m.nextID()
	m.emit(out, Command{Type: CmdBlockInserted, BlockID: b.ID, Block: &b, Before: before})
	return b.ID
}

func (m *Machine) nextID() string {
	m.seq++
	return fmt.Sprintf("b%d", m.seq)
}

func (m *Machine) emit(out *[]Command, cmd Command) {
	cmd.TurnID = m.turnID
	if err := m.doc.Apply(cmd); err != nil {
		m.logger.Error("render command rejected", "type", cmd.Type, "error", err)
		return
	}
	*out = append(*out, cmd)
}
