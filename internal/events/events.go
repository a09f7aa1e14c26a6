package events

import (
	"encoding/json"
	"fmt"
)

// EventType defines the type of streaming event
type EventType int

const (
	EventTypeTextDelta EventType = iota
	EventTypeToolSelection
	EventTypeToolExecution
	EventTypeToolResult
	EventTypeMessageComplete
	EventTypeError
	EventTypeCancel
)

var eventNames = map[EventType]string{
	EventTypeTextDelta:       "text_delta",
	EventTypeToolSelection:   "tool_selection",
	EventTypeToolExecution:   "tool_execution",
	EventTypeToolResult:      "tool_result",
	EventTypeMessageComplete: "message_complete",
	EventTypeError:           "error",
	EventTypeCancel:          "cancel",
}

// String returns the wire name of the event type
func (t EventType) String() string {
	if name, ok := eventNames[t]; ok {
		return name
	}
	return fmt.Sprintf("event(%d)", int(t))
}

// Event is the interface for all streaming events
type Event interface {
	Type() EventType
}

// TextDeltaEvent is a raw fragment of model output, possibly containing
// partial <thinking> tags
type TextDeltaEvent struct {
	Text string
}

func (e TextDeltaEvent) Type() EventType {
	return EventTypeTextDelta
}

// ToolSelectionEvent announces which tools the model picked
type ToolSelectionEvent struct {
	Label string
}

func (e ToolSelectionEvent) Type() EventType {
	return EventTypeToolSelection
}

// ToolExecutionEvent marks the start of a tool call. Input holds the decoded
// arguments; RawInput holds the payload verbatim when it was not a JSON object.
type ToolExecutionEvent struct {
	ToolName string
	ToolID   string
	Input    map[string]any
	RawInput string
}

func (e ToolExecutionEvent) Type() EventType {
	return EventTypeToolExecution
}

// DisplayInput renders the arguments for humans
func (e ToolExecutionEvent) DisplayInput() string {
	if e.Input == nil {
		return e.RawInput
	}
	b, err := json.MarshalIndent(e.Input, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", e.Input)
	}
	return string(b)
}

// ToolResultEvent carries the output of the most recent tool call
type ToolResultEvent struct {
	ToolID  string
	Content string
	IsError bool
}

func (e ToolResultEvent) Type() EventType {
	return EventTypeToolResult
}

// MessageCompleteEvent ends a turn successfully
type MessageCompleteEvent struct {
	Content string
}

func (e MessageCompleteEvent) Type() EventType {
	return EventTypeMessageComplete
}

// ErrorEvent represents an error during processing
type ErrorEvent struct {
	Error error
}

func (e ErrorEvent) Type() EventType {
	return EventTypeError
}

// CancelEvent is raised locally when the user abandons a turn
type CancelEvent struct{}

func (e CancelEvent) Type() EventType {
	return EventTypeCancel
}

// IsTerminal reports whether ev ends a turn
func IsTerminal(ev Event) bool {
	switch ev.Type() {
	case EventTypeMessageComplete, EventTypeError, EventTypeCancel:
		return true
	}
	return false
}
