package shell

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"

	"mathtutor/internal/pipeline"
	"mathtutor/pkg/tutortypes"
)

// Renderer turns conversation messages and status events into terminal text.
type Renderer struct {
	markdown *glamour.TermRenderer
	plain    bool

	userStyle   lipgloss.Style
	statusStyle lipgloss.Style
	noticeStyle lipgloss.Style
	errorStyle  lipgloss.Style
}

// NewRenderer creates a renderer wrapping markdown at width columns. Plain output carries
// no ANSI escapes and is what tests and pipes see.
func NewRenderer(width int, plain bool) (*Renderer, error) {
	if width <= 0 {
		width = 80
	}

	opts := []glamour.TermRendererOption{glamour.WithWordWrap(width)}
	if plain {
		opts = append(opts, glamour.WithStandardStyle("notty"), glamour.WithColorProfile(termenv.Ascii))
	} else {
		opts = append(opts, glamour.WithAutoStyle(), glamour.WithColorProfile(termenv.EnvColorProfile()))
	}

	md, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create markdown renderer: %w", err)
	}

	return &Renderer{
		markdown:    md,
		plain:       plain,
		userStyle:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		statusStyle: lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("240")),
		noticeStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		errorStyle:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
	}, nil
}

// Message renders one conversation entry. Model replies go through the markdown renderer;
// if that fails the raw text is shown.
func (r *Renderer) Message(msg tutortypes.Message) string {
	if msg.Sender == tutortypes.SenderUser {
		return r.style(r.userStyle, "you: ") + msg.Contents + "\n"
	}
	if isNotice(msg.Contents) {
		return r.style(r.noticeStyle, msg.Contents) + "\n"
	}

	out, err := r.markdown.Render(msg.Contents)
	if err != nil {
		return msg.Contents + "\n"
	}
	if r.plain {
		out = ansi.Strip(out)
	}
	return strings.TrimRight(out, "\n") + "\n"
}

// Status renders the status line for ev, or "" for idle.
func (r *Renderer) Status(ev pipeline.StatusEvent) string {
	var label string
	switch ev.Status {
	case tutortypes.StatusPlanning:
		label = "planning"
	case tutortypes.StatusWriting:
		label = "writing"
	case tutortypes.StatusChecking:
		label = "checking"
	default:
		return ""
	}
	if ev.Attempt > 0 {
		label = fmt.Sprintf("%s (retry %d)", label, ev.Attempt)
	}
	return r.style(r.statusStyle, "… "+label) + "\n"
}

// Error renders an error line.
func (r *Renderer) Error(err error) string {
	return r.style(r.errorStyle, "error: "+err.Error()) + "\n"
}

// Info renders a plain informational line.
func (r *Renderer) Info(text string) string {
	return r.style(r.statusStyle, text) + "\n"
}

func (r *Renderer) style(s lipgloss.Style, text string) string {
	if r.plain {
		return text
	}
	return s.Render(text)
}

func isNotice(contents string) bool {
	switch {
	case contents == pipeline.ApologyMessage, contents == pipeline.GenericFailureMessage:
		return true
	case strings.HasPrefix(contents, "The tutor is busy right now."):
		return true
	}
	return false
}
