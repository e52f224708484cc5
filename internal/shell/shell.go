// Package shell provides the interactive tutoring shell. Lines starting with a backslash
// are shell commands; everything else is sent to the tutor as a student message.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/chzyer/readline"

	"mathtutor/internal/conversation"
	"mathtutor/internal/logger"
	"mathtutor/internal/pipeline"
	"mathtutor/pkg/tutortypes"
)

// Prompt is shown before every input line.
const Prompt = "tutor> "

// LineReader is the subset of *readline.Instance the shell needs.
type LineReader interface {
	Readline() (string, error)
	Close() error
}

// Shell routes input lines to shell commands or tutoring turns.
type Shell struct {
	orch     *pipeline.Orchestrator
	renderer *Renderer
	out      io.Writer
	logger   *log.Logger

	// copyText writes to the system clipboard; replaced in tests.
	copyText func(string) error
}

// New creates a shell that writes to out.
func New(orch *pipeline.Orchestrator, renderer *Renderer, out io.Writer) *Shell {
	return &Shell{
		orch:     orch,
		renderer: renderer,
		out:      out,
		logger:   logger.NewStyledLogger("Shell"),
		copyText: writeClipboard,
	}
}

// NewReadline creates a line editor with command completion and optional persistent history.
func NewReadline(historyFile string) (*readline.Instance, error) {
	return readline.NewEx(&readline.Config{
		Prompt:          Prompt,
		HistoryFile:     historyFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "\\exit",
		AutoComplete: readline.NewPrefixCompleter(
			readline.PcItem(`\help`),
			readline.PcItem(`\history`),
			readline.PcItem(`\reset`),
			readline.PcItem(`\copy`),
			readline.PcItem(`\export`, readline.PcItem(conversation.FormatJSON), readline.PcItem(conversation.FormatYAML)),
			readline.PcItem(`\exit`),
		),
	})
}

// Run reads lines until \exit, EOF or ctx is cancelled.
func (s *Shell) Run(ctx context.Context, rl LineReader) error {
	defer func() { _ = rl.Close() }()

	s.printf("%s", s.renderer.Info(`Math tutor. Type \help for commands, \exit to quit.`))
	s.printHistory()

	for {
		if ctx.Err() != nil {
			return nil
		}

		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				return nil
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}

		if quit := s.Handle(ctx, line); quit {
			return nil
		}
	}
}

// Handle processes one input line and reports whether the shell should exit.
func (s *Shell) Handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if !strings.HasPrefix(line, `\`) {
		s.ask(ctx, line)
		return false
	}

	fields := strings.Fields(line)
	switch fields[0] {
	case `\exit`, `\quit`:
		return true
	case `\help`:
		s.printf("%s", s.renderer.Info(helpText))
	case `\history`:
		s.printHistory()
	case `\reset`:
		if s.orch.Busy() {
			s.printf("%s", s.renderer.Error(pipeline.ErrTurnInProgress))
			return false
		}
		s.orch.Store().Reset(ctx)
		s.printf("%s", s.renderer.Info("Conversation cleared."))
	case `\export`:
		format := conversation.FormatJSON
		if len(fields) > 1 {
			format = fields[1]
		}
		if err := conversation.Export(s.out, s.orch.Store().Snapshot(), format); err != nil {
			s.printf("%s", s.renderer.Error(err))
		}
	case `\copy`:
		s.copyLastReply()
	default:
		s.printf("%s", s.renderer.Error(fmt.Errorf("unknown command %s", fields[0])))
	}
	return false
}

// ask runs a turn while printing status transitions, then prints the tutor's reply.
func (s *Shell) ask(ctx context.Context, text string) {
	events, unsubscribe := s.orch.Subscribe()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for ev := range events {
			if line := s.renderer.Status(ev); line != "" {
				s.printf("%s", line)
			}
		}
	}()

	outcome, err := s.orch.Submit(ctx, text)
	unsubscribe()
	wg.Wait()

	if err != nil {
		s.printf("%s", s.renderer.Error(err))
		return
	}
	s.logger.Debug("Turn complete", "turn", outcome.TurnID, "outcome", outcome.Outcome)

	msgs := s.orch.Store().Messages()
	if len(msgs) > 0 {
		s.printf("%s", s.renderer.Message(msgs[len(msgs)-1]))
	}
}

// copyLastReply puts the most recent tutor message on the clipboard.
func (s *Shell) copyLastReply() {
	msgs := s.orch.Store().Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Sender != tutortypes.SenderModel {
			continue
		}
		if err := s.copyText(msgs[i].Contents); err != nil {
			s.printf("%s", s.renderer.Error(fmt.Errorf("copy failed: %w", err)))
			return
		}
		s.printf("%s", s.renderer.Info(fmt.Sprintf("Copied %d characters to clipboard.", len(msgs[i].Contents))))
		return
	}
	s.printf("%s", s.renderer.Info("Nothing to copy yet."))
}

func (s *Shell) printHistory() {
	for _, msg := range s.orch.Store().Messages() {
		s.printf("%s", s.renderer.Message(msg))
	}
}

func (s *Shell) printf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(s.out, format, args...)
}

const helpText = `Commands:
  \help            show this help
  \history         print the conversation so far
  \reset           clear the conversation
  \copy            copy the last tutor reply to the clipboard
  \export [format] print the conversation as json or yaml
  \exit            leave the shell
Anything else is sent to the tutor.`
