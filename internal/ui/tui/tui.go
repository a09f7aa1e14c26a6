// Package tui is the interactive terminal chat. It runs turns on a chat
// session and replays their render commands into a transcript.
package tui

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/isaacphi/mcpchat/internal/chat"
	"github.com/isaacphi/mcpchat/internal/config"
	"github.com/isaacphi/mcpchat/internal/render"
	"github.com/isaacphi/mcpchat/internal/ui/tui/components/help"
	"github.com/isaacphi/mcpchat/internal/ui/tui/components/input"
	"github.com/isaacphi/mcpchat/internal/ui/tui/keymap"
	"github.com/isaacphi/mcpchat/internal/ui/tui/theme"
	"github.com/isaacphi/mcpchat/internal/ui/tui/transcript"
)

// Conversation is the part of a chat session the view drives
type Conversation interface {
	Run(ctx context.Context, req chat.TurnRequest, sink chat.Sink) (chat.TurnResult, error)
	Cancel() bool
	Clear()
	Model() string
}

type Options struct {
	Conversation Conversation
	KeyMap       config.KeyMap
	UseTools     bool
	Logger       *slog.Logger
}

type commandsMsg struct {
	cmds []render.Command
}

type turnDoneMsg struct {
	result chat.TurnResult
	err    error
}

type collapseMsg struct {
	blockID string
}

type Model struct {
	ctx      context.Context
	conv     Conversation
	useTools bool
	logger   *slog.Logger

	theme    *theme.Theme
	keys     keymap.KeyMap
	input    input.Model
	help     help.Model
	viewport viewport.Model
	spinner  spinner.Model

	entries       []transcript.Entry
	pending       map[string]bool
	showReasoning bool
	busy          bool
	status        string
	updates       chan tea.Msg

	width  int
	height int
	ready  bool
}

func New(ctx context.Context, opts Options) Model {
	thm := theme.DefaultTheme()
	keys := keymap.New(opts.KeyMap)
	keys.SetBusy(false)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = thm.SpinnerStyle

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return Model{
		ctx:      ctx,
		conv:     opts.Conversation,
		useTools: opts.UseTools,
		logger:   logger,
		theme:    thm,
		keys:     keys,
		input:    input.New(thm, keys.Send),
		help:     help.New(thm),
		spinner:  sp,
		pending:  make(map[string]bool),
		updates:  make(chan tea.Msg, 64),
	}
}

// Run starts the program and blocks until the user quits
func Run(ctx context.Context, opts Options) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(New(ctx, opts), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running chat TUI: %w", err)
	}
	return nil
}

func (m Model) Init() tea.Cmd {
	return nil
}

// listen waits for the next update from the running turn
func (m Model) listen() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-m.updates:
			return msg
		case <-m.ctx.Done():
			return nil
		}
	}
}

// send delivers a turn update unless the program is gone
func (m Model) send(msg tea.Msg) {
	select {
	case m.updates <- msg:
	case <-m.ctx.Done():
	}
}

func (m Model) startTurn(content string) (Model, tea.Cmd) {
	doc := render.NewDocument()
	m.entries = append(m.entries, transcript.Entry{User: content, Doc: doc})
	m.busy = true
	m.status = ""
	m.input.SetDisabled(true)
	m.keys.SetBusy(true)

	req := chat.TurnRequest{Content: content, UseTools: m.useTools}
	go func() {
		result, err := m.conv.Run(m.ctx, req, func(cmds []render.Command) {
			m.send(commandsMsg{cmds: cmds})
		})
		m.send(turnDoneMsg{result: result, err: err})
	}()

	m.refresh(true)
	return m, tea.Batch(m.listen(), m.spinner.Tick)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.input.SetWidth(msg.Width)
		m.help.SetWidth(msg.Width)
		m.layout()
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			if m.busy {
				m.conv.Cancel()
			}
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			m.layout()
			return m, nil
		case key.Matches(msg, m.keys.Cancel):
			m.conv.Cancel()
			return m, nil
		case key.Matches(msg, m.keys.ToggleReasoning):
			m.showReasoning = !m.showReasoning
			m.refresh(false)
			return m, nil
		case key.Matches(msg, m.keys.Clear):
			m.conv.Clear()
			m.entries = nil
			m.status = "conversation cleared"
			m.refresh(true)
			return m, nil
		case key.Matches(msg, m.keys.ScrollUp), key.Matches(msg, m.keys.ScrollDown):
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case input.SubmitMsg:
		return m.startTurn(msg.Value)

	case commandsMsg:
		cmds = append(cmds, m.apply(msg.cmds)...)
		cmds = append(cmds, m.listen())
		m.refresh(true)
		return m, tea.Batch(cmds...)

	case turnDoneMsg:
		m.busy = false
		m.input.SetDisabled(false)
		m.keys.SetBusy(false)
		if msg.err != nil {
			m.status = msg.err.Error()
		}
		m.refresh(true)
		return m, nil

	case collapseMsg:
		delete(m.pending, msg.blockID)
		m.refresh(false)
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// apply replays commands into the current turn's document. Collapses are
// held back for their delay so the reasoning stays readable for a moment.
func (m *Model) apply(cmds []render.Command) []tea.Cmd {
	if len(m.entries) == 0 {
		return nil
	}
	doc := m.entries[len(m.entries)-1].Doc

	var out []tea.Cmd
	for _, c := range cmds {
		if err := doc.Apply(c); err != nil {
			m.logger.Warn("render command rejected", "type", c.Type, "error", err)
			continue
		}
		if c.Type == render.CmdBlockCollapsed && c.DelayMs > 0 {
			id := c.BlockID
			m.pending[id] = true
			out = append(out, tea.Tick(time.Duration(c.DelayMs)*time.Millisecond, func(time.Time) tea.Msg {
				return collapseMsg{blockID: id}
			}))
		}
	}
	return out
}

func (m *Model) layout() {
	helpHeight := lipgloss.Height(m.help.View(m.keys))
	inputHeight := lipgloss.Height(m.input.View())
	height := m.height - 1 - inputHeight - helpHeight
	if height < 1 {
		height = 1
	}
	if !m.ready {
		m.viewport = viewport.New(m.width, height)
		m.ready = true
	} else {
		m.viewport.Width = m.width
		m.viewport.Height = height
	}
	m.refresh(true)
}

func (m *Model) refresh(follow bool) {
	if !m.ready {
		return
	}
	r := transcript.Renderer{
		Theme:         m.theme,
		Width:         m.width - 2,
		ShowReasoning: m.showReasoning,
		Pending:       m.pending,
	}
	m.viewport.SetContent(m.theme.DocStyle.Render(r.Render(m.entries)))
	if follow {
		m.viewport.GotoBottom()
	}
}

func (m Model) header() string {
	title := m.theme.HeaderStyle.Render("mcpchat · " + m.conv.Model())
	switch {
	case m.busy:
		return title + " " + m.spinner.View()
	case m.status != "":
		return title + " " + m.theme.FooterStyle.Render(m.status)
	}
	return title
}

func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}
	return lipgloss.JoinVertical(
		lipgloss.Left,
		m.header(),
		m.viewport.View(),
		m.input.View(),
		m.help.View(m.keys),
	)
}
