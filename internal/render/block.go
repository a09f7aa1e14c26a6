// Package render owns the visible state of one assistant turn. The Machine
// decides which blocks exist and in what order, and describes every change as
// a Command. A Document replays Commands, so any presentation layer that
// applies the same Commands converges on the same blocks.
package render

// BlockKind names the variant held by a Block
type BlockKind string

const (
	KindReasoning     BlockKind = "reasoning"
	KindToolSelection BlockKind = "tool_selection"
	KindToolExecution BlockKind = "tool_execution"
	KindResponse      BlockKind = "response"
	KindError         BlockKind = "error"
)

// ToolStatus is the lifecycle of a tool execution block
type ToolStatus string

const (
	ToolRunning ToolStatus = "running"
	ToolDone    ToolStatus = "done"
	ToolError   ToolStatus = "error"
)

// Block is one visible region of an assistant turn.
//
// Content holds the text of reasoning, response and error blocks.
// Label holds the text of a tool selection block.
// ToolName, ToolID, Input, Result and Status describe a tool execution block.
type Block struct {
	ID        string     `json:"id"`
	Kind      BlockKind  `json:"kind"`
	Content   string     `json:"content,omitempty"`
	Label     string     `json:"label,omitempty"`
	ToolName  string     `json:"tool_name,omitempty"`
	ToolID    string     `json:"tool_id,omitempty"`
	Input     string     `json:"input,omitempty"`
	Result    *string    `json:"result,omitempty"`
	Status    ToolStatus `json:"status,omitempty"`
	Complete  bool       `json:"complete"`
	Collapsed bool       `json:"collapsed,omitempty"`
}

func (b Block) clone() Block {
	if b.Result != nil {
		r := *b.Result
		b.Result = &r
	}
	return b
}
