// Package chat runs chat turns for one conversation at a time: it drives the
// agent, projects its events into render commands and keeps the history
// window sent back to the model.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/isaacphi/mcpchat/internal/agent"
	"github.com/isaacphi/mcpchat/internal/config"
	"github.com/isaacphi/mcpchat/internal/domain"
	"github.com/isaacphi/mcpchat/internal/events"
	"github.com/isaacphi/mcpchat/internal/llm"
	"github.com/isaacphi/mcpchat/internal/obs"
	"github.com/isaacphi/mcpchat/internal/projector"
	"github.com/isaacphi/mcpchat/internal/render"
)

var (
	ErrTurnInProgress = errors.New("a turn is already in progress")
	ErrCancelled      = errors.New("cancelled")
	ErrTurnTimeout    = errors.New("turn timed out")
)

// Streamer runs one agent turn
type Streamer interface {
	SendMessageStream(ctx context.Context, opts agent.SendMessageOptions) agent.AgentStream
}

// AgentFactory builds the streamer for the selected model preset
type AgentFactory func(ctx context.Context, preset config.ModelPreset) (Streamer, error)

// NewAgentFactory wires langchaingo models to the MCP tools
func NewAgentFactory(models llm.Factory, tools agent.ToolCaller, opts agent.Options) AgentFactory {
	return func(ctx context.Context, preset config.ModelPreset) (Streamer, error) {
		model, err := models(ctx, preset)
		if err != nil {
			return nil, err
		}
		return agent.New(model, tools, opts), nil
	}
}

// Sink receives render commands as they are produced. It is called from the
// goroutine running the turn.
type Sink func(cmds []render.Command)

type Options struct {
	ID           string
	Chat         config.Chat
	Presets      map[string]config.ModelPreset
	Model        string
	SystemPrompt string
	Agents       AgentFactory
	Metrics      *obs.Metrics
	Logger       *slog.Logger
}

type TurnRequest struct {
	Content  string
	UseTools bool
}

type TurnResult struct {
	TurnID   string           `json:"turn_id"`
	State    render.TurnState `json:"state"`
	Response string           `json:"response"`
	Error    string           `json:"error,omitempty"`
	Commands []render.Command `json:"commands"`
}

type Stats struct {
	Messages  int    `json:"total_messages"`
	Turns     int    `json:"turns"`
	Completed int    `json:"completed"`
	Failed    int    `json:"failed"`
	Cancelled int    `json:"cancelled"`
	Model     string `json:"model"`
	Busy      bool   `json:"busy"`
}

// Session is one conversation. At most one turn runs at a time.
type Session struct {
	id      string
	cfg     config.Chat
	presets map[string]config.ModelPreset
	agents  AgentFactory
	metrics *obs.Metrics
	logger  *slog.Logger

	mu           sync.Mutex
	model        string
	systemPrompt string
	history      []domain.Message
	cancel       context.CancelCauseFunc
	busy         bool
	stats        Stats
}

func NewSession(opts Options) *Session {
	if opts.ID == "" {
		opts.ID = uuid.NewString()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		id:           opts.ID,
		cfg:          opts.Chat,
		presets:      opts.Presets,
		agents:       opts.Agents,
		metrics:      opts.Metrics,
		logger:       logger.With("session", opts.ID),
		model:        opts.Model,
		systemPrompt: opts.SystemPrompt,
	}
}

func (s *Session) ID() string {
	return s.id
}

// Run executes one turn and blocks until it reaches a terminal state. The
// commands are streamed to sink and also returned in the result. Failures of
// the turn itself are reported through the result, not the error.
func (s *Session) Run(ctx context.Context, req TurnRequest, sink Sink) (TurnResult, error) {
	if strings.TrimSpace(req.Content) == "" {
		return TurnResult{}, domain.ValidationError{Field: "message", Message: "is required"}
	}

	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return TurnResult{}, ErrTurnInProgress
	}
	preset, ok := s.presets[s.model]
	if !ok {
		s.mu.Unlock()
		return TurnResult{}, domain.NotFoundError{Kind: "model", Key: s.model}
	}
	ctx, cancel := context.WithCancelCause(ctx)
	if s.cfg.TurnTimeout > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeoutCause(ctx, s.cfg.TurnTimeout, ErrTurnTimeout)
		defer cancelTimeout()
	}
	s.busy = true
	s.cancel = cancel
	history := s.contextWindow()
	systemPrompt := s.systemPrompt
	s.mu.Unlock()

	defer func() {
		cancel(nil)
		s.mu.Lock()
		s.busy = false
		s.cancel = nil
		s.mu.Unlock()
	}()

	turn := projector.New(projector.Options{
		TurnID:        uuid.NewString(),
		CollapseDelay: s.cfg.CollapseDelay,
		Logger:        s.logger,
		OnViolation: func(string) {
			s.metrics.ProtocolViolation(ctx)
		},
	})

	var all []render.Command
	deliver := func(cmds []render.Command) {
		if len(cmds) == 0 {
			return
		}
		all = append(all, cmds...)
		if sink != nil {
			sink(cmds)
		}
	}

	start := time.Now()
	deliver(turn.Start())

	streamer, err := s.agents(ctx, preset)
	if err != nil {
		deliver(turn.Handle(&events.ErrorEvent{Error: err}))
	} else {
		stream := streamer.SendMessageStream(ctx, agent.SendMessageOptions{
			Content:      req.Content,
			History:      history,
			SystemPrompt: systemPrompt,
			UseTools:     req.UseTools,
			Temperature:  preset.Temperature,
			MaxTokens:    preset.MaxTokens,
		})
		s.consume(ctx, turn, stream, deliver)
	}

	result := TurnResult{
		TurnID:   turn.ID(),
		State:    turn.State(),
		Response: turn.Response(),
		Commands: all,
	}
	outcome := obs.OutcomeCompleted
	if result.State == render.StateErrored {
		outcome = obs.OutcomeFailed
		result.Error = errorMessage(turn.Document())
		if result.Error == ErrCancelled.Error() {
			outcome = obs.OutcomeCancelled
		}
	}
	s.metrics.TurnFinished(context.WithoutCancel(ctx), outcome, time.Since(start))
	s.finishTurn(req.Content, result, outcome)

	s.logger.Info("turn finished", "turn", result.TurnID, "outcome", outcome, "duration", time.Since(start))
	return result, nil
}

// consume feeds agent events to the turn until it ends or the turn context
// is done.
func (s *Session) consume(ctx context.Context, turn *projector.Turn, stream agent.AgentStream, deliver func([]render.Command)) {
	for !turn.Done() {
		select {
		case ev, ok := <-stream.Events:
			if !ok {
				deliver(turn.Handle(&events.ErrorEvent{Error: errors.New("stream ended without a terminal event")}))
				return
			}
			// The agent reports its own cancellation as an error; the
			// cause decides what the user sees.
			if ev.Type() == events.EventTypeError && ctx.Err() != nil {
				deliver(s.interrupted(ctx, turn))
				return
			}
			deliver(turn.Handle(ev))
		case <-ctx.Done():
			deliver(s.interrupted(ctx, turn))
			return
		}
	}
}

func (s *Session) interrupted(ctx context.Context, turn *projector.Turn) []render.Command {
	cause := context.Cause(ctx)
	if errors.Is(cause, ErrTurnTimeout) {
		return turn.Handle(&events.ErrorEvent{Error: cause})
	}
	return turn.Cancel()
}

func errorMessage(doc *render.Document) string {
	for _, b := range doc.Blocks() {
		if b.Kind == render.KindError {
			return b.Content
		}
	}
	return ""
}

func (s *Session) finishTurn(content string, result TurnResult, outcome string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats.Turns++
	switch outcome {
	case obs.OutcomeCompleted:
		s.stats.Completed++
	case obs.OutcomeCancelled:
		s.stats.Cancelled++
	default:
		s.stats.Failed++
	}
	if result.State != render.StateCompleted {
		return
	}

	now := time.Now()
	s.history = append(s.history,
		domain.Message{Role: domain.RoleHuman, Content: content, Timestamp: now},
		domain.Message{Role: domain.RoleAssistant, Content: result.Response, Timestamp: now},
	)
	if s.cfg.HistoryMax > 0 && len(s.history) > s.cfg.HistoryMax {
		s.history = append([]domain.Message(nil), s.history[len(s.history)-s.cfg.HistoryKeep:]...)
	}
}

// contextWindow returns the trailing history sent to the model; s.mu held
func (s *Session) contextWindow() []domain.Message {
	n := s.cfg.HistoryContext
	if n > len(s.history) {
		n = len(s.history)
	}
	return append([]domain.Message(nil), s.history[len(s.history)-n:]...)
}

// Cancel aborts the running turn. It reports whether a turn was running.
func (s *Session) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil {
		return false
	}
	s.cancel(ErrCancelled)
	return true
}

func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

// Clear drops the conversation history
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = nil
}

func (s *Session) History() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Message(nil), s.history...)
}

func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := s.stats
	stats.Messages = len(s.history)
	stats.Model = s.model
	stats.Busy = s.busy
	return stats
}

func (s *Session) Model() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model
}

// Models lists the selectable preset names
func (s *Session) Models() []string {
	names := make([]string, 0, len(s.presets))
	for name := range s.presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetModel selects the preset used from the next turn on
func (s *Session) SetModel(name string) error {
	name = strings.ToLower(strings.TrimSpace(name))
	if _, ok := s.presets[name]; !ok {
		return domain.ValidationError{Field: "model", Message: fmt.Sprintf("unknown model %q", name)}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.model = name
	return nil
}

func (s *Session) SystemPrompt() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.systemPrompt
}

func (s *Session) SetSystemPrompt(prompt string) error {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return domain.ValidationError{Field: "system_prompt", Message: "cannot be empty"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.systemPrompt = prompt
	return nil
}
