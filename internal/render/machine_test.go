package render

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder collects every command a machine emits and replays them into an
// independent document, the way a presentation layer would.
type recorder struct {
	t    *testing.T
	cmds []Command
	doc  *Document
}

func newRecorder(t *testing.T) *recorder {
	return &recorder{t: t, doc: NewDocument()}
}

func (r *recorder) add(cmds []Command) []Command {
	for _, c := range cmds {
		require.NoError(r.t, r.doc.Apply(c))
	}
	r.cmds = append(r.cmds, cmds...)
	return cmds
}

func kinds(blocks []Block) []BlockKind {
	out := make([]BlockKind, len(blocks))
	for i, b := range blocks {
		out[i] = b.Kind
	}
	return out
}

func types(cmds []Command) []CommandType {
	out := make([]CommandType, len(cmds))
	for i, c := range cmds {
		out[i] = c.Type
	}
	return out
}

func TestMachineLifecycle(t *testing.T) {
	m := NewMachine("t1", MachineOptions{})
	r := newRecorder(t)

	assert.Equal(t, StateIdle, m.State())
	r.add(m.Begin())
	assert.Equal(t, StateAwaitingFirstContent, m.State())
	assert.False(t, r.doc.Open(), "container is created lazily")

	cmds := r.add(m.AppendResponse("Hi"))
	assert.Equal(t, []CommandType{CmdContainerOpened, CmdBlockInserted, CmdTurnStreaming, CmdBlockUpdated}, types(cmds))
	assert.Equal(t, StateStreaming, m.State())

	cmds = r.add(m.AppendResponse(" there"))
	require.Len(t, cmds, 1)
	assert.Equal(t, " there", cmds[0].Delta)
	assert.Equal(t, "Hi there", cmds[0].Content)

	r.add(m.Complete())
	assert.Equal(t, StateCompleted, m.State())
	assert.Equal(t, StateCompleted, r.doc.State())

	blocks := r.doc.Blocks()
	require.Len(t, blocks, 1)
	assert.Equal(t, "Hi there", blocks[0].Content)
	assert.True(t, blocks[0].Complete)

	for _, c := range r.cmds {
		assert.Equal(t, "t1", c.TurnID)
	}
}

func TestMachineReasoningFirstTransitionsToStreaming(t *testing.T) {
	m := NewMachine("t", MachineOptions{})
	m.Begin()
	cmds := m.OpenReasoning()
	assert.Equal(t, []CommandType{CmdContainerOpened, CmdBlockInserted, CmdTurnStreaming}, types(cmds))
	assert.Equal(t, StateStreaming, m.State())
}

func TestMachineReasoningSplicedBeforeResponse(t *testing.T) {
	m := NewMachine("t", MachineOptions{})
	r := newRecorder(t)
	r.add(m.Begin())

	r.add(m.OpenReasoning())
	r.add(m.AppendReasoning("first"))
	r.add(m.CompleteReasoning(false))
	r.add(m.AppendResponse("answer"))

	cmds := r.add(m.OpenReasoning())
	var inserted Command
	for _, c := range cmds {
		if c.Type == CmdBlockInserted {
			inserted = c
		}
	}
	require.NotNil(t, inserted.Block)
	assert.NotEmpty(t, inserted.Before, "later reasoning is inserted before the response")

	r.add(m.AppendReasoning("second"))
	r.add(m.AppendResponse(" more"))
	r.add(m.Complete())

	blocks := r.doc.Blocks()
	assert.Equal(t, []BlockKind{KindReasoning, KindReasoning, KindResponse}, kinds(blocks))
	assert.Equal(t, "first", blocks[0].Content)
	assert.Equal(t, "second", blocks[1].Content)
	assert.Equal(t, "answer more", blocks[2].Content)
	for _, b := range blocks {
		assert.True(t, b.Complete)
	}
}

func TestMachineClosedReasoningNeverReopens(t *testing.T) {
	m := NewMachine("t", MachineOptions{})
	m.Begin()
	m.AppendReasoning("a")
	m.CompleteReasoning(false)
	m.AppendReasoning("b")

	blocks := m.Document().Blocks()
	require.Len(t, blocks, 2)
	assert.Equal(t, "a", blocks[0].Content)
	assert.True(t, blocks[0].Complete)
	assert.Equal(t, "b", blocks[1].Content)
	assert.False(t, blocks[1].Complete)
}

func TestMachineCollapse(t *testing.T) {
	m := NewMachine("t", MachineOptions{CollapseDelay: 1500 * time.Millisecond})
	m.Begin()
	m.AppendReasoning("x")

	cmds := m.CompleteReasoning(true)
	assert.Equal(t, []CommandType{CmdBlockCompleted, CmdBlockCollapsed}, types(cmds))
	assert.EqualValues(t, 1500, cmds[1].DelayMs)

	b := m.Document().Blocks()[0]
	assert.True(t, b.Collapsed)
	assert.Empty(t, m.CompleteReasoning(true), "nothing active to complete")
}

func TestMachineToolBlocks(t *testing.T) {
	m := NewMachine("t", MachineOptions{})
	r := newRecorder(t)
	r.add(m.Begin())
	r.add(m.AppendResponse("Let me check."))
	r.add(m.AddToolSelection("Selected tools: weather__forecast"))

	id, cmds := m.StartTool("weather__forecast", "call-1", `{"city":"Oslo"}`)
	r.add(cmds)
	assert.NotEmpty(t, id)

	r.add(m.FinishTool(id, "sunny", false))
	assert.Empty(t, r.add(m.FinishTool(id, "rain", true)), "finished tool blocks are immutable")

	r.add(m.Complete())

	blocks := r.doc.Blocks()
	assert.Equal(t, []BlockKind{KindToolSelection, KindResponse, KindToolExecution}, kinds(blocks))
	tool := blocks[2]
	require.NotNil(t, tool.Result)
	assert.Equal(t, "sunny", *tool.Result)
	assert.Equal(t, ToolDone, tool.Status)
	assert.Equal(t, `{"city":"Oslo"}`, tool.Input)
}

func TestMachineToolError(t *testing.T) {
	m := NewMachine("t", MachineOptions{})
	m.Begin()
	id, _ := m.StartTool("fs__read", "", "{}")
	cmds := m.FinishTool(id, "permission denied", true)
	require.Len(t, cmds, 1)
	assert.Equal(t, ToolError, cmds[0].Status)
}

func TestMachineCompleteLeavesRunningToolRunning(t *testing.T) {
	m := NewMachine("t", MachineOptions{})
	m.Begin()
	id, _ := m.StartTool("slow__op", "", "{}")
	m.Complete()

	assert.Equal(t, StateCompleted, m.State())
	b, ok := m.Document().Block(id)
	require.True(t, ok)
	assert.Equal(t, ToolRunning, b.Status)
}

func TestMachineFailReplacesBlocks(t *testing.T) {
	m := NewMachine("t", MachineOptions{})
	r := newRecorder(t)
	r.add(m.Begin())
	r.add(m.AppendReasoning("hmm"))
	r.add(m.AppendResponse("partial"))
	m.StartTool("x__y", "", "")

	cmds := r.add(m.Fail("upstream exploded"))
	require.Len(t, cmds, 1)
	assert.Equal(t, CmdTurnFailed, cmds[0].Type)

	blocks := m.Document().Blocks()
	require.Len(t, blocks, 1)
	assert.Equal(t, KindError, blocks[0].Kind)
	assert.Equal(t, "upstream exploded", blocks[0].Content)
	assert.Equal(t, StateErrored, m.State())
	assert.Equal(t, StateErrored, r.doc.State())
}

func TestMachineIgnoresTransitionsAfterTerminalState(t *testing.T) {
	for _, end := range []func(*Machine) []Command{
		func(m *Machine) []Command { return m.Complete() },
		func(m *Machine) []Command { return m.Fail("boom") },
	} {
		m := NewMachine("t", MachineOptions{})
		m.Begin()
		end(m)
		before := m.Document().Blocks()

		assert.Empty(t, m.AppendResponse("late"))
		assert.Empty(t, m.AppendReasoning("late"))
		assert.Empty(t, m.AddToolSelection("late"))
		_, cmds := m.StartTool("a__b", "", "")
		assert.Empty(t, cmds)
		assert.Empty(t, m.Complete())
		assert.Empty(t, m.Fail("again"))
		assert.Equal(t, before, m.Document().Blocks())
	}
}

func TestMachineFailFromIdle(t *testing.T) {
	m := NewMachine("t", MachineOptions{})
	cmds := m.Fail("no connection")
	require.Len(t, cmds, 1)
	assert.Equal(t, StateErrored, m.State())
}

func TestDocumentRejectsUnknownBlocks(t *testing.T) {
	d := NewDocument()
	assert.Error(t, d.Apply(Command{Type: CmdBlockUpdated, BlockID: "nope"}))
	assert.Error(t, d.Apply(Command{Type: CmdBlockInserted, Block: &Block{ID: "b1"}, Before: "nope"}))
	assert.Error(t, d.Apply(Command{Type: CmdBlockInserted}))
	assert.Error(t, d.Apply(Command{Type: "bogus"}))
}

func TestDocumentBlocksAreCopies(t *testing.T) {
	m := NewMachine("t", MachineOptions{})
	m.Begin()
	id, _ := m.StartTool("a__b", "", "")
	m.FinishTool(id, "ok", false)

	blocks := m.Document().Blocks()
	*blocks[0].Result = "mutated"
	blocks[0].ToolName = "mutated"

	b, _ := m.Document().Block(id)
	assert.Equal(t, "ok", *b.Result)
	assert.Equal(t, "a__b", b.ToolName)
}
