package render

// TurnState is the lifecycle of one assistant turn
type TurnState string

const (
	StateIdle                 TurnState = "idle"
	StateAwaitingFirstContent TurnState = "awaiting_first_content"
	StateStreaming            TurnState = "streaming"
	StateCompleted            TurnState = "completed"
	StateErrored              TurnState = "errored"
)

// Terminal reports whether no further transitions are accepted
func (s TurnState) Terminal() bool {
	return s == StateCompleted || s == StateErrored
}

// CommandType names a render command
type CommandType string

const (
	CmdTurnStarted     CommandType = "turn_started"
	CmdContainerOpened CommandType = "container_opened"
	CmdTurnStreaming   CommandType = "turn_streaming"
	CmdBlockInserted   CommandType = "block_inserted"
	CmdBlockUpdated    CommandType = "block_updated"
	CmdBlockCompleted  CommandType = "block_completed"
	CmdBlockCollapsed  CommandType = "block_collapsed"
	CmdToolFinished    CommandType = "tool_finished"
	CmdTurnCompleted   CommandType = "turn_completed"
	CmdTurnFailed      CommandType = "turn_failed"
)

// Command is one instruction for a presentation layer.
//
//   - block_inserted carries Block and, when non-empty, Before: the ID of the
//     block it must be placed in front of. Otherwise it is appended.
//   - block_updated carries the appended Delta and the full Content.
//   - block_collapsed carries a DelayMs hint for the auto-collapse.
//   - tool_finished carries Result and Status.
//   - turn_failed carries the single error Block replacing every other block.
type Command struct {
	Type    CommandType `json:"type"`
	TurnID  string      `json:"turn_id"`
	BlockID string      `json:"block_id,omitempty"`
	Block   *Block      `json:"block,omitempty"`
	Before  string      `json:"before,omitempty"`
	Delta   string      `json:"delta,omitempty"`
	Content string      `json:"content,omitempty"`
	Result  string      `json:"result,omitempty"`
	Status  ToolStatus  `json:"status,omitempty"`
	DelayMs int64       `json:"delay_ms,omitempty"`
}
