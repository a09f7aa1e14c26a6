package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

var ErrInvalidPayload = errors.New("invalid event payload")

// Decode parses one transport event keyed on its "type" field. Structured
// fields are read leniently: an input that is not a JSON object is kept raw,
// and content may be a string, a list of MCP content items or any JSON value.
func Decode(data []byte) (Event, error) {
	if !gjson.ValidBytes(data) {
		return nil, ErrInvalidPayload
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsObject() {
		return nil, ErrInvalidPayload
	}

	switch typ := doc.Get("type").String(); typ {
	case "text_delta":
		return &TextDeltaEvent{Text: doc.Get("text").String()}, nil

	case "tool_selection":
		label := doc.Get("text")
		if !label.Exists() {
			label = doc.Get("label")
		}
		return &ToolSelectionEvent{Label: label.String()}, nil

	case "tool_execution":
		ev := &ToolExecutionEvent{
			ToolName: doc.Get("tool_name").String(),
			ToolID:   doc.Get("tool_id").String(),
		}
		ev.Input, ev.RawInput = decodeInput(doc.Get("input"))
		return ev, nil

	case "tool_result":
		isErr := doc.Get("is_error")
		if !isErr.Exists() {
			isErr = doc.Get("isError")
		}
		return &ToolResultEvent{
			ToolID:  doc.Get("tool_id").String(),
			Content: ContentText(doc.Get("content")),
			IsError: isErr.Bool(),
		}, nil

	case "message_complete":
		return &MessageCompleteEvent{Content: doc.Get("content").String()}, nil

	case "error":
		msg := doc.Get("error")
		if !msg.Exists() {
			msg = doc.Get("message")
		}
		text := msg.String()
		if text == "" {
			text = "unknown error"
		}
		return &ErrorEvent{Error: errors.New(text)}, nil

	case "cancel":
		return &CancelEvent{}, nil

	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidPayload, typ)
	}
}

func decodeInput(v gjson.Result) (map[string]any, string) {
	if !v.Exists() || v.Type == gjson.Null {
		return map[string]any{}, ""
	}
	if v.Type == gjson.String {
		inner := gjson.Parse(v.Str)
		if gjson.Valid(v.Str) && inner.IsObject() {
			v = inner
		} else {
			return nil, v.Str
		}
	}
	if !v.IsObject() {
		return nil, v.Raw
	}
	var input map[string]any
	if err := json.Unmarshal([]byte(v.Raw), &input); err != nil {
		return nil, v.Raw
	}
	return input, ""
}

// ContentText flattens a tool result payload to display text. Text items of
// an MCP content list are joined by newlines; anything else is shown raw.
func ContentText(v gjson.Result) string {
	switch {
	case !v.Exists() || v.Type == gjson.Null:
		return ""
	case v.Type == gjson.String:
		return v.Str
	case v.IsArray():
		var parts []string
		v.ForEach(func(_, item gjson.Result) bool {
			if item.Get("type").String() == "text" {
				parts = append(parts, item.Get("text").String())
			} else if item.Type == gjson.String {
				parts = append(parts, item.Str)
			} else {
				parts = append(parts, item.Raw)
			}
			return true
		})
		return strings.Join(parts, "\n")
	case v.IsObject() && v.Get("content").IsArray():
		return ContentText(v.Get("content"))
	default:
		return v.Raw
	}
}

// Encode renders ev in the transport shape, stamped with the current time
func Encode(ev Event) ([]byte, error) {
	return EncodeAt(ev, time.Now())
}

func EncodeAt(ev Event, at time.Time) ([]byte, error) {
	out := []byte(`{}`)
	set := func(path string, value any) {
		if out == nil {
			return
		}
		var err error
		if out, err = sjson.SetBytes(out, path, value); err != nil {
			out = nil
		}
	}

	set("type", ev.Type().String())
	switch e := ev.(type) {
	case *TextDeltaEvent:
		set("text", e.Text)
	case *ToolSelectionEvent:
		set("text", e.Label)
	case *ToolExecutionEvent:
		set("tool_name", e.ToolName)
		if e.ToolID != "" {
			set("tool_id", e.ToolID)
		}
		if e.Input != nil {
			set("input", e.Input)
		} else {
			set("input", e.RawInput)
		}
	case *ToolResultEvent:
		if e.ToolID != "" {
			set("tool_id", e.ToolID)
		}
		set("content", e.Content)
		if e.IsError {
			set("is_error", true)
		}
	case *MessageCompleteEvent:
		if e.Content != "" {
			set("content", e.Content)
		}
	case *ErrorEvent:
		msg := "unknown error"
		if e.Error != nil {
			msg = e.Error.Error()
		}
		set("error", msg)
	case *CancelEvent:
	default:
		return nil, fmt.Errorf("cannot encode event %T", ev)
	}
	set("timestamp", at.UTC().Format(time.RFC3339Nano))

	if out == nil {
		return nil, fmt.Errorf("failed to encode %s event", ev.Type())
	}
	return out, nil
}
