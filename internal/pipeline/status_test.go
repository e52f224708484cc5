package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mathtutor/pkg/tutortypes"
)

func drain(ch <-chan StatusEvent) []tutortypes.Status {
	var out []tutortypes.Status
	for {
		select {
		case ev := <-ch:
			out = append(out, ev.Status)
		default:
			return out
		}
	}
}

func TestSubscribe_ReceivesTransitions(t *testing.T) {
	backend := newScriptedBackend(script(
		triple(planText, "draft", failVerdict("spoiler")),
		triple(planText, "reply", passVerdict),
	)...)
	orch, _, _ := newTestOrchestrator(t, backend, Options{})

	events, cancel := orch.Subscribe()
	defer cancel()

	_, err := orch.RunTurn(context.Background(), "solve")
	require.NoError(t, err)

	assert.Equal(t, []tutortypes.Status{
		tutortypes.StatusIdle,
		tutortypes.StatusPlanning, tutortypes.StatusWriting, tutortypes.StatusChecking,
		tutortypes.StatusPlanning, tutortypes.StatusWriting, tutortypes.StatusChecking,
		tutortypes.StatusIdle,
	}, drain(events))
	assert.Equal(t, tutortypes.StatusIdle, orch.Status().Status)
}

func TestSubscribe_IdleAfterError(t *testing.T) {
	backend := newScriptedBackend()
	orch, _, _ := newTestOrchestrator(t, backend, Options{})

	events, cancel := orch.Subscribe()
	defer cancel()

	_, err := orch.RunTurn(context.Background(), "solve")
	require.Error(t, err)

	got := drain(events)
	require.NotEmpty(t, got)
	assert.Equal(t, tutortypes.StatusIdle, got[len(got)-1])
}

func TestSubscribe_SlowSubscriberDoesNotBlock(t *testing.T) {
	var parts [][]reply
	for turn := 0; turn < 2; turn++ {
		for i := 0; i <= MaxAttempt; i++ {
			parts = append(parts, triple(planText, "draft", failVerdict("nope")))
		}
	}
	backend := newScriptedBackend(script(parts...)...)
	orch, _, _ := newTestOrchestrator(t, backend, Options{})

	// Never read: two exhausted turns publish more events than the buffer holds.
	_, cancel := orch.Subscribe()
	defer cancel()

	for turn := 0; turn < 2; turn++ {
		outcome, err := orch.RunTurn(context.Background(), "solve")
		require.NoError(t, err)
		assert.Equal(t, OutcomeExhausted, outcome.Outcome)
	}
}

func TestSubscribe_CancelClosesChannel(t *testing.T) {
	orch, _, _ := newTestOrchestrator(t, newScriptedBackend(), Options{})
	events, cancel := orch.Subscribe()
	cancel()
	cancel()

	<-events // initial status
	_, open := <-events
	assert.False(t, open)
}
