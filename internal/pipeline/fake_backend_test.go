package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"mathtutor/pkg/tutortypes"
)

// reply is one scripted backend answer.
type reply struct {
	text string
	err  error
}

// call records a single Generate invocation.
type call struct {
	stage  string
	prompt string
	effort tutortypes.ReasoningEffort
}

// scriptedBackend answers Generate calls from a fixed script, in order.
type scriptedBackend struct {
	mu      sync.Mutex
	script  []reply
	calls   []call
	onCall  func(c call)
	blockCh chan struct{}
}

func newScriptedBackend(script ...reply) *scriptedBackend {
	return &scriptedBackend{script: script}
}

func (b *scriptedBackend) Name() string { return "scripted" }

func (b *scriptedBackend) Generate(ctx context.Context, prompt string, effort tutortypes.ReasoningEffort) (string, error) {
	c := call{stage: stageOf(prompt), prompt: prompt, effort: effort}

	b.mu.Lock()
	b.calls = append(b.calls, c)
	idx := len(b.calls) - 1
	onCall, block := b.onCall, b.blockCh
	b.mu.Unlock()

	if onCall != nil {
		onCall(c)
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	if idx >= len(b.script) {
		return "", fmt.Errorf("unexpected call %d (%s)", idx, c.stage)
	}
	return b.script[idx].text, b.script[idx].err
}

func (b *scriptedBackend) Calls() []call {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]call, len(b.calls))
	copy(out, b.calls)
	return out
}

func (b *scriptedBackend) stages() []string {
	var out []string
	for _, c := range b.Calls() {
		out = append(out, c.stage)
	}
	return out
}

func stageOf(prompt string) string {
	switch {
	case strings.Contains(prompt, "Educational Strategist"):
		return "plan"
	case strings.Contains(prompt, "Math Tutor"):
		return "respond"
	case strings.Contains(prompt, "Quality Auditor"):
		return "audit"
	default:
		return "unknown"
	}
}

// triple scripts one full attempt.
func triple(plan, output, verdict string) []reply {
	return []reply{{text: plan}, {text: output}, {text: verdict}}
}

func script(parts ...[]reply) []reply {
	var out []reply
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
