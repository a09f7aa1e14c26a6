package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/isaacphi/mcpchat/internal/domain"
	"github.com/isaacphi/mcpchat/internal/events"
	"github.com/isaacphi/mcpchat/internal/llm"
)

type emitFunc func(events.Event) bool

// SendMessageStream runs one turn in a goroutine. Events arrive in protocol
// order: text deltas, then for every tool round a tool_selection followed by
// tool_execution/tool_result pairs, and finally message_complete or error.
func (a *Agent) SendMessageStream(ctx context.Context, opts SendMessageOptions) AgentStream {
	eventsChan := make(chan events.Event)
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer close(eventsChan)

		emit := func(ev events.Event) bool {
			select {
			case eventsChan <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if err := a.run(ctx, opts, emit); err != nil {
			a.logger.Error("agent turn failed", "error", err)
			emit(&events.ErrorEvent{Error: err})
		}
	}()

	return AgentStream{Events: eventsChan, Done: done}
}

func (a *Agent) run(ctx context.Context, opts SendMessageOptions, emit emitFunc) error {
	var tools []domain.Tool
	if opts.UseTools && a.tools != nil {
		tools = a.tools.Tools()
	}
	byName := make(map[string]domain.Tool, len(tools))
	for _, t := range tools {
		byName[t.FullName] = t
	}
	llmTools := llm.ConvertTools(tools)

	msgs := llm.BuildMessages(a.systemPrompt(opts, len(tools) > 0), opts.History, opts.Content)
	var full strings.Builder

	for round := 0; ; round++ {
		offered := llmTools
		if round >= a.maxRounds {
			offered = nil
		}

		streamed := false
		stream := func(ctx context.Context, chunk []byte) error {
			if len(chunk) == 0 {
				return nil
			}
			streamed = true
			full.Write(chunk)
			if !emit(&events.TextDeltaEvent{Text: string(chunk)}) {
				return ctx.Err()
			}
			return nil
		}

		resp, err := a.model.GenerateContent(ctx, msgs,
			llm.CallOptions(opts.Temperature, opts.MaxTokens, offered, stream)...)
		if err != nil {
			return fmt.Errorf("streaming message failed: %w", err)
		}
		if resp == nil || len(resp.Choices) == 0 {
			return errors.New("no response choices returned")
		}

		text, calls := collect(resp.Choices)
		// Providers that do not stream deliver the whole text at the end
		if !streamed && text != "" {
			full.WriteString(text)
			if !emit(&events.TextDeltaEvent{Text: text}) {
				return ctx.Err()
			}
		}

		if len(calls) == 0 || len(offered) == 0 {
			if len(calls) > 0 {
				a.logger.Warn("tool round limit reached, ignoring tool calls", "calls", len(calls))
			}
			emit(&events.MessageCompleteEvent{Content: full.String()})
			return nil
		}

		if !emit(&events.ToolSelectionEvent{Label: selectionLabel(calls)}) {
			return ctx.Err()
		}
		msgs = append(msgs, aiMessage(text, calls))

		// Tools run one at a time so every tool_result answers the
		// tool_execution just before it.
		for _, call := range calls {
			response, ok := a.executeTool(ctx, call, byName, emit)
			if !ok {
				return ctx.Err()
			}
			msgs = append(msgs, llms.MessageContent{
				Role:  llms.ChatMessageTypeTool,
				Parts: []llms.ContentPart{response},
			})
		}
	}
}

func (a *Agent) executeTool(ctx context.Context, call llms.ToolCall, tools map[string]domain.Tool, emit emitFunc) (llms.ToolCallResponse, bool) {
	name := call.FunctionCall.Name
	raw := call.FunctionCall.Arguments

	args, parseErr := parseArguments(raw)
	execution := &events.ToolExecutionEvent{ToolName: name, ToolID: call.ID, Input: args}
	if parseErr != nil {
		execution.RawInput = raw
	}
	if !emit(execution) {
		return llms.ToolCallResponse{}, false
	}

	content, failed := a.callTool(ctx, name, args, parseErr, tools)
	if !emit(&events.ToolResultEvent{ToolID: call.ID, Content: content, IsError: failed}) {
		return llms.ToolCallResponse{}, false
	}

	return llms.ToolCallResponse{
		ToolCallID: call.ID,
		Name:       name,
		Content:    content,
	}, true
}

// callTool returns the text handed back to the model and whether it is an
// error report. Failures are reported to the model, never returned.
func (a *Agent) callTool(ctx context.Context, name string, args map[string]interface{}, parseErr error, tools map[string]domain.Tool) (string, bool) {
	tool, ok := tools[name]
	if !ok {
		return fmt.Sprintf("Error: tool %s not found", name), true
	}
	if parseErr != nil {
		return fmt.Sprintf("Error: %v", parseErr), true
	}
	if err := validateArguments(args, tool); err != nil {
		return fmt.Sprintf("Error: argument validation failed: %v", err), true
	}

	result, err := a.tools.CallTool(ctx, name, args)
	if err != nil {
		a.logger.Warn("tool call failed", "tool", name, "error", err)
		return fmt.Sprintf("Error: %v", err), true
	}
	return result.Content, result.IsError
}
