package events

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Event
	}{
		{
			name: "text delta",
			in:   `{"type":"text_delta","text":"Hel","timestamp":"2024-01-01T00:00:00Z"}`,
			want: &TextDeltaEvent{Text: "Hel"},
		},
		{
			name: "tool selection",
			in:   `{"type":"tool_selection","text":"Selected tools: a__b"}`,
			want: &ToolSelectionEvent{Label: "Selected tools: a__b"},
		},
		{
			name: "tool execution with object input",
			in:   `{"type":"tool_execution","tool_name":"fs__read","tool_id":"t1","input":{"path":"/tmp","limit":3}}`,
			want: &ToolExecutionEvent{ToolName: "fs__read", ToolID: "t1", Input: map[string]any{"path": "/tmp", "limit": float64(3)}},
		},
		{
			name: "tool execution with json string input",
			in:   `{"type":"tool_execution","tool_name":"x","input":"{\"a\":1}"}`,
			want: &ToolExecutionEvent{ToolName: "x", Input: map[string]any{"a": float64(1)}},
		},
		{
			name: "tool execution with unparseable input",
			in:   `{"type":"tool_execution","tool_name":"x","input":"{not json"}`,
			want: &ToolExecutionEvent{ToolName: "x", RawInput: "{not json"},
		},
		{
			name: "tool execution with array input",
			in:   `{"type":"tool_execution","tool_name":"x","input":[1,2]}`,
			want: &ToolExecutionEvent{ToolName: "x", RawInput: "[1,2]"},
		},
		{
			name: "tool execution without input",
			in:   `{"type":"tool_execution","tool_name":"x"}`,
			want: &ToolExecutionEvent{ToolName: "x", Input: map[string]any{}},
		},
		{
			name: "tool result string",
			in:   `{"type":"tool_result","content":"42"}`,
			want: &ToolResultEvent{Content: "42"},
		},
		{
			name: "tool result content items",
			in:   `{"type":"tool_result","content":[{"type":"text","text":"a"},{"type":"image","data":"xx"},{"type":"text","text":"b"}],"is_error":true}`,
			want: &ToolResultEvent{Content: "a\n{\"type\":\"image\",\"data\":\"xx\"}\nb", IsError: true},
		},
		{
			name: "tool result wrapped response",
			in:   `{"type":"tool_result","content":{"content":[{"type":"text","text":"ok"}]},"isError":false}`,
			want: &ToolResultEvent{Content: "ok"},
		},
		{
			name: "tool result other json",
			in:   `{"type":"tool_result","content":{"temp":21}}`,
			want: &ToolResultEvent{Content: `{"temp":21}`},
		},
		{
			name: "message complete",
			in:   `{"type":"message_complete"}`,
			want: &MessageCompleteEvent{},
		},
		{
			name: "cancel",
			in:   `{"type":"cancel"}`,
			want: &CancelEvent{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.in))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeError(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"error","error":"throttled"}`))
	require.NoError(t, err)
	require.IsType(t, &ErrorEvent{}, ev)
	assert.EqualError(t, ev.(*ErrorEvent).Error, "throttled")

	ev, err = Decode([]byte(`{"type":"error","message":"alt field"}`))
	require.NoError(t, err)
	assert.EqualError(t, ev.(*ErrorEvent).Error, "alt field")

	ev, err = Decode([]byte(`{"type":"error"}`))
	require.NoError(t, err)
	assert.EqualError(t, ev.(*ErrorEvent).Error, "unknown error")
}

func TestDecodeInvalid(t *testing.T) {
	for _, in := range []string{``, `not json`, `[1,2]`, `{"type":"bogus"}`, `{}`} {
		_, err := Decode([]byte(in))
		assert.True(t, errors.Is(err, ErrInvalidPayload), in)
	}
}

func TestEncode(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	out, err := EncodeAt(&ToolExecutionEvent{ToolName: "fs__read", ToolID: "t1", Input: map[string]any{"path": "/tmp"}}, at)
	require.NoError(t, err)
	doc := gjson.ParseBytes(out)
	assert.Equal(t, "tool_execution", doc.Get("type").String())
	assert.Equal(t, "fs__read", doc.Get("tool_name").String())
	assert.Equal(t, "/tmp", doc.Get("input.path").String())
	assert.Equal(t, "2024-05-01T12:00:00Z", doc.Get("timestamp").String())

	out, err = EncodeAt(&ErrorEvent{Error: errors.New("boom")}, at)
	require.NoError(t, err)
	assert.Equal(t, "boom", gjson.GetBytes(out, "error").String())

	out, err = EncodeAt(&ToolResultEvent{Content: "x", IsError: true}, at)
	require.NoError(t, err)
	assert.True(t, gjson.GetBytes(out, "is_error").Bool())
}

func TestEncodeDecodeAgree(t *testing.T) {
	in := []Event{
		&TextDeltaEvent{Text: "a <thinking>"},
		&ToolSelectionEvent{Label: "Selected tools: x"},
		&ToolExecutionEvent{ToolName: "x", RawInput: "oops"},
		&MessageCompleteEvent{},
		&CancelEvent{},
	}
	for _, ev := range in {
		b, err := Encode(ev)
		require.NoError(t, err)
		got, err := Decode(b)
		require.NoError(t, err)
		assert.Equal(t, ev, got)
	}
}

func TestDisplayInput(t *testing.T) {
	assert.Equal(t, "{\n  \"a\": 1\n}", ToolExecutionEvent{Input: map[string]any{"a": 1}}.DisplayInput())
	assert.Equal(t, "raw", ToolExecutionEvent{RawInput: "raw"}.DisplayInput())
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, IsTerminal(&MessageCompleteEvent{}))
	assert.True(t, IsTerminal(&ErrorEvent{}))
	assert.True(t, IsTerminal(&CancelEvent{}))
	assert.False(t, IsTerminal(&TextDeltaEvent{}))
	assert.Equal(t, "tool_result", EventTypeToolResult.String())
}
