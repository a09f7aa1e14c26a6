package help

import (
	"github.com/charmbracelet/bubbles/help"

	"github.com/isaacphi/mcpchat/internal/ui/tui/keymap"
	"github.com/isaacphi/mcpchat/internal/ui/tui/theme"
)

// Model renders the key hints footer
type Model struct {
	help    help.Model
	theme   *theme.Theme
	width   int
	ShowAll bool
}

func New(thm *theme.Theme) Model {
	return Model{
		help:  help.New(),
		theme: thm,
		width: 80,
	}
}

func (m *Model) SetWidth(width int) {
	m.width = width
	m.help.Width = width
}

func (m Model) View(keys keymap.KeyMap) string {
	m.help.ShowAll = m.ShowAll
	return m.theme.FooterStyle.Width(m.width).Render(m.help.View(keys))
}
