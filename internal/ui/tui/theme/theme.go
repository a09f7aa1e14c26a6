package theme

import (
	"github.com/charmbracelet/lipgloss"
)

// Theme defines the semantic colors and styles of the chat view
type Theme struct {
	Primary   lipgloss.AdaptiveColor
	Secondary lipgloss.AdaptiveColor
	Text      lipgloss.AdaptiveColor
	Subtle    lipgloss.AdaptiveColor
	Error     lipgloss.AdaptiveColor
	Success   lipgloss.AdaptiveColor
	Warning   lipgloss.AdaptiveColor

	DocStyle      lipgloss.Style
	HeaderStyle   lipgloss.Style
	InputStyle    lipgloss.Style
	FooterStyle   lipgloss.Style
	UserStyle     lipgloss.Style
	ResponseStyle lipgloss.Style
	// ReasoningStyle frames expanded reasoning; ReasoningHint renders the
	// collapsed one-liner.
	ReasoningStyle lipgloss.Style
	ReasoningHint  lipgloss.Style
	SelectionStyle lipgloss.Style
	ToolStyle      lipgloss.Style
	ToolRunning    lipgloss.Style
	ToolDone       lipgloss.Style
	ToolFailed     lipgloss.Style
	ErrorStyle     lipgloss.Style
	SpinnerStyle   lipgloss.Style
}

func DefaultTheme() *Theme {
	primary := lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	secondary := lipgloss.AdaptiveColor{Light: "#4B56FD", Dark: "#4B56FD"}
	text := lipgloss.AdaptiveColor{Light: "#1A1A1A", Dark: "#FFFFFF"}
	subtle := lipgloss.AdaptiveColor{Light: "#9B9B9B", Dark: "#5C5C5C"}
	errColor := lipgloss.AdaptiveColor{Light: "#FF0000", Dark: "#FF4136"}
	success := lipgloss.AdaptiveColor{Light: "#008000", Dark: "#2ECC40"}
	warning := lipgloss.AdaptiveColor{Light: "#FFA500", Dark: "#FF851B"}

	return &Theme{
		Primary:   primary,
		Secondary: secondary,
		Text:      text,
		Subtle:    subtle,
		Error:     errColor,
		Success:   success,
		Warning:   warning,

		DocStyle: lipgloss.NewStyle().Padding(0, 1),

		HeaderStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(primary).
			Padding(0, 1),

		InputStyle: lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(subtle).
			Padding(0, 1),

		FooterStyle: lipgloss.NewStyle().
			Foreground(subtle).
			Padding(0, 1),

		UserStyle: lipgloss.NewStyle().
			Foreground(primary).
			Bold(true),

		ResponseStyle: lipgloss.NewStyle().
			Foreground(text),

		ReasoningStyle: lipgloss.NewStyle().
			Foreground(subtle).
			Italic(true).
			BorderStyle(lipgloss.NormalBorder()).
			BorderLeft(true).
			BorderTop(false).
			BorderRight(false).
			BorderBottom(false).
			BorderForeground(subtle).
			PaddingLeft(1),

		ReasoningHint: lipgloss.NewStyle().
			Foreground(subtle).
			Italic(true),

		SelectionStyle: lipgloss.NewStyle().
			Foreground(secondary),

		ToolStyle: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(secondary).
			Padding(0, 1),

		ToolRunning: lipgloss.NewStyle().Foreground(warning),
		ToolDone:    lipgloss.NewStyle().Foreground(success),
		ToolFailed:  lipgloss.NewStyle().Foreground(errColor),

		ErrorStyle: lipgloss.NewStyle().
			Foreground(errColor).
			Bold(true),

		SpinnerStyle: lipgloss.NewStyle().Foreground(primary),
	}
}
