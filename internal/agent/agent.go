// Package agent runs the model and tool-calling loop of one chat turn and
// reports its progress as transport events.
package agent

import (
	"context"
	"log/slog"

	"github.com/tmc/langchaingo/llms"

	"github.com/isaacphi/mcpchat/internal/domain"
	"github.com/isaacphi/mcpchat/internal/events"
	"github.com/isaacphi/mcpchat/internal/mcp"
)

// toolGuidance is appended to the system prompt whenever tools are offered
const toolGuidance = `You have access to real tools. When a request needs one, call it directly instead of describing what you would do, wait for its result, and base your answer on that output. Only pass parameters that have actual values.`

// ToolCaller is the subset of the MCP manager the agent needs
type ToolCaller interface {
	Tools() []domain.Tool
	CallTool(ctx context.Context, fullName string, args map[string]interface{}) (mcp.ToolResult, error)
}

// Agent manages the interaction between the model and MCP tools
type Agent struct {
	model     llms.Model
	tools     ToolCaller
	maxRounds int
	logger    *slog.Logger
}

type Options struct {
	// MaxToolRounds bounds how many times tool results are fed back to the
	// model in one turn
	MaxToolRounds int
	Logger        *slog.Logger
}

// New creates an Agent. tools may be nil, in which case no tools are offered.
func New(model llms.Model, tools ToolCaller, opts Options) *Agent {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Agent{
		model:     model,
		tools:     tools,
		maxRounds: opts.MaxToolRounds,
		logger:    logger,
	}
}

type SendMessageOptions struct {
	Content      string
	History      []domain.Message
	SystemPrompt string
	UseTools     bool
	Temperature  float64
	MaxTokens    int
}

// AgentStream represents an ongoing turn. Events is closed after the
// terminal event; Done is closed once the agent goroutine has exited.
type AgentStream struct {
	Events <-chan events.Event
	Done   <-chan struct{}
}

func (a *Agent) systemPrompt(opts SendMessageOptions, withTools bool) string {
	if !withTools {
		return opts.SystemPrompt
	}
	if opts.SystemPrompt == "" {
		return toolGuidance
	}
	return opts.SystemPrompt + "\n\n" + toolGuidance
}
