package main

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

var titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))

// replyRenderer formats agent replies for the terminal. The zero value
// prints replies unchanged.
type replyRenderer struct {
	md *glamour.TermRenderer
}

func newReplyRenderer(markdown bool, width int) replyRenderer {
	if !markdown {
		return replyRenderer{}
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return replyRenderer{}
	}
	return replyRenderer{md: r}
}

func (r replyRenderer) reply(content string) string {
	if r.md == nil {
		return content
	}
	rendered, err := r.md.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimRight(rendered, "\n")
}

func (r replyRenderer) title(s string) string {
	if r.md == nil {
		return s
	}
	return titleStyle.Render(s)
}
