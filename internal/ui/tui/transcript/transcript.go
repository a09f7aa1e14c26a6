// Package transcript turns render documents into terminal text
package transcript

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"

	"github.com/isaacphi/mcpchat/internal/render"
	"github.com/isaacphi/mcpchat/internal/ui/tui/theme"
)

const maxToolText = 400

// Entry is one exchange: the user message and the assistant turn it started
type Entry struct {
	User string
	Doc  *render.Document
}

// Renderer draws entries at a fixed width
type Renderer struct {
	Theme *theme.Theme
	Width int
	// ShowReasoning expands every reasoning block, collapsed or not
	ShowReasoning bool
	// Pending holds reasoning blocks whose collapse has not fired yet
	Pending map[string]bool
}

func (r Renderer) Render(entries []Entry) string {
	parts := make([]string, 0, len(entries)*2)
	for _, e := range entries {
		parts = append(parts, r.Theme.UserStyle.Render("> ")+wrap(e.User, r.Width-2))
		if e.Doc != nil && e.Doc.Open() {
			parts = append(parts, r.Turn(e.Doc))
		}
	}
	return strings.Join(parts, "\n\n")
}

// Turn renders the blocks of one assistant turn in document order
func (r Renderer) Turn(doc *render.Document) string {
	var out []string
	for _, b := range doc.Blocks() {
		if s := r.block(b); s != "" {
			out = append(out, s)
		}
	}
	return strings.Join(out, "\n")
}

func (r Renderer) block(b render.Block) string {
	t := r.Theme
	switch b.Kind {
	case render.KindReasoning:
		if b.Collapsed && !r.ShowReasoning && !r.Pending[b.ID] {
			return t.ReasoningHint.Render(fmt.Sprintf("▸ Reasoning (%d chars)", utf8.RuneCountInString(b.Content)))
		}
		title := "▾ Reasoning"
		if !b.Complete {
			title = "▾ Reasoning…"
		}
		return t.ReasoningHint.Render(title) + "\n" + t.ReasoningStyle.Render(wrap(b.Content, r.Width-4))

	case render.KindToolSelection:
		return t.SelectionStyle.Render("⚙ " + b.Label)

	case render.KindToolExecution:
		status := t.ToolRunning.Render("running")
		switch b.Status {
		case render.ToolDone:
			status = t.ToolDone.Render("done")
		case render.ToolError:
			status = t.ToolFailed.Render("error")
		}
		lines := []string{lipgloss.NewStyle().Bold(true).Render(b.ToolName) + " " + status}
		if b.Input != "" {
			lines = append(lines, "input:  "+truncate(b.Input, maxToolText))
		}
		if b.Result != nil {
			lines = append(lines, "result: "+truncate(*b.Result, maxToolText))
		}
		return t.ToolStyle.Width(r.Width - 2).Render(strings.Join(lines, "\n"))

	case render.KindResponse:
		return t.ResponseStyle.Render(wrap(b.Content, r.Width))

	case render.KindError:
		return t.ErrorStyle.Render("✗ " + b.Content)
	}
	return ""
}

func wrap(s string, width int) string {
	if width <= 0 {
		return s
	}
	return lipgloss.NewStyle().Width(width).Render(s)
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "…"
}
