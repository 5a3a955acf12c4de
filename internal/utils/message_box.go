package utils

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"golang.org/x/term"

	"github.com/maxkimambo/tasklens/internal/dag"
	"github.com/maxkimambo/tasklens/internal/errors"
)

// MessageType defines the type of message box to render.
type MessageType int

const (
	InfoMessage MessageType = iota
	SuccessMessage
	WarningMessage
	ErrorMessage
)

const (
	infoPrefix    = "ℹ"
	successPrefix = "✓"
	warningPrefix = "⚠"
	errorPrefix   = "✗"
)

const defaultWidth = 80

var palette = map[MessageType]lipgloss.Color{
	InfoMessage:    lipgloss.Color("86"),
	SuccessMessage: lipgloss.Color("42"),
	WarningMessage: lipgloss.Color("178"),
	ErrorMessage:   lipgloss.Color("196"),
}

// Box is a builder for creating formatted message boxes.
type Box struct {
	messageType MessageType
	title       string
	content     []string
	width       int
}

// NewBox creates a message box sized to the terminal on stdout.
func NewBox(messageType MessageType, title string) *Box {
	return &Box{
		messageType: messageType,
		title:       title,
		width:       TerminalWidth(os.Stdout) - 8,
	}
}

// WithWidth overrides the maximum box width.
func (b *Box) WithWidth(width int) *Box {
	b.width = width
	return b
}

// AddLine adds a line of text to the message box content.
func (b *Box) AddLine(text string) *Box {
	b.content = append(b.content, text)
	return b
}

// AddBullet adds a bulleted line to the message box content.
func (b *Box) AddBullet(text string) *Box {
	b.content = append(b.content, "• "+text)
	return b
}

// Render builds and returns the formatted message box as a string.
func (b *Box) Render() string {
	color, prefix := b.style()

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(color)
	lines := []string{titleStyle.Render(prefix + " " + b.title)}
	for _, l := range b.content {
		lines = append(lines, "  "+l)
	}

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(color).
		Padding(0, 1)
	if b.width > 10 {
		box = box.MaxWidth(b.width)
	}
	return box.Render(strings.Join(lines, "\n"))
}

func (b *Box) style() (lipgloss.Color, string) {
	switch b.messageType {
	case SuccessMessage:
		return palette[SuccessMessage], successPrefix
	case WarningMessage:
		return palette[WarningMessage], warningPrefix
	case ErrorMessage:
		return palette[ErrorMessage], errorPrefix
	default:
		return palette[InfoMessage], infoPrefix
	}
}

func render(t MessageType, title string, lines []string) string {
	box := NewBox(t, title)
	for _, line := range lines {
		box.AddLine(line)
	}
	return box.Render()
}

// Warning renders a warning box with one line per entry.
func Warning(title string, lines ...string) string { return render(WarningMessage, title, lines) }

// CycleWarning lists dependency links ignored while deriving tree states.
func CycleWarning(cycles []dag.Edge) string {
	lines := make([]string, 0, len(cycles))
	for _, e := range cycles {
		lines = append(lines, fmt.Sprintf("%s -> %s", e.From, e.To))
	}
	return Warning("Dependency cycles ignored", lines...)
}

// ErrorBox renders err with its troubleshooting steps when it carries them.
func ErrorBox(err error) string {
	box := NewBox(ErrorMessage, "Command failed")
	te, ok := errors.AsTrackerError(err)
	if !ok {
		return box.AddLine(err.Error()).Render()
	}
	box.AddLine(te.Message)
	if te.OriginalError != nil {
		box.AddLine("Cause: " + te.OriginalError.Error())
	}
	if errors.ShouldDisplayTroubleshooting(err) {
		for _, step := range te.Troubleshooting {
			box.AddBullet(step)
		}
	}
	return box.Render()
}

// StateBox summarises derived tree states, coloured by the worst state.
func StateBox(stats dag.TreeStats) string {
	t := SuccessMessage
	switch {
	case stats.Errored > 0:
		t = ErrorMessage
	case stats.Running+stats.Descendant > 0:
		t = InfoMessage
	case stats.IgnoredLinks > 0:
		t = WarningMessage
	}
	return NewBox(t, "Task tree").
		AddBullet(fmt.Sprintf("%d tasks", stats.TotalNodes)).
		AddBullet(fmt.Sprintf("%d running", stats.Running+stats.Descendant)).
		AddBullet(fmt.Sprintf("%d succeeded", stats.Succeeded)).
		AddBullet(fmt.Sprintf("%d failed", stats.Errored)).
		AddBullet(fmt.Sprintf("%d cyclic links ignored", stats.IgnoredLinks)).
		Render()
}

// TerminalWidth returns the width of f when it is a terminal, or 80.
func TerminalWidth(f *os.File) int {
	if !isatty.IsTerminal(f.Fd()) {
		return defaultWidth
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		return defaultWidth
	}
	return width
}
