package input

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/isaacphi/mcpchat/internal/ui/tui/theme"
)

// SubmitMsg is emitted when a non-blank message is submitted
type SubmitMsg struct {
	Value string
}

// Model is the message input. While disabled it ignores keys and shows a
// waiting placeholder.
type Model struct {
	textInput textinput.Model
	submit    key.Binding
	theme     *theme.Theme
	width     int
	disabled  bool
}

func New(thm *theme.Theme, submit key.Binding) Model {
	ti := textinput.New()
	ti.Placeholder = "Type a message..."
	ti.Focus()
	ti.CharLimit = 4000
	ti.Width = 80

	return Model{
		textInput: ti,
		submit:    submit,
		theme:     thm,
		width:     80,
	}
}

func (m *Model) SetWidth(width int) {
	m.width = width
	m.textInput.Width = width - 4 // border and padding
}

// SetDisabled blocks input while a turn is running
func (m *Model) SetDisabled(disabled bool) {
	m.disabled = disabled
	if disabled {
		m.textInput.Blur()
		m.textInput.Placeholder = "Waiting for the assistant..."
		return
	}
	m.textInput.Placeholder = "Type a message..."
	m.textInput.Focus()
}

func (m Model) Disabled() bool {
	return m.disabled
}

func (m Model) Value() string {
	return m.textInput.Value()
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.disabled {
		return m, nil
	}

	if msg, ok := msg.(tea.KeyMsg); ok && key.Matches(msg, m.submit) {
		value := strings.TrimSpace(m.textInput.Value())
		if value == "" {
			return m, nil
		}
		m.textInput.Reset()
		return m, func() tea.Msg { return SubmitMsg{Value: value} }
	}

	var cmd tea.Cmd
	m.textInput, cmd = m.textInput.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	return m.theme.InputStyle.Width(m.width - 2).Render(m.textInput.View())
}
