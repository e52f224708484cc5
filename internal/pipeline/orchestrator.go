// Package pipeline drives a tutoring turn through its three stages: a strategist plans,
// a tutor writes the reply and an auditor checks it against the plan. Failed audits are
// retried with the auditor's notes; throttling records a cool-down on the conversation.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"mathtutor/internal/conversation"
	"mathtutor/internal/logger"
	"mathtutor/internal/prompts"
	"mathtutor/internal/services"
	"mathtutor/pkg/tutortypes"
)

// MaxAttempt is the highest zero-based attempt number; a turn makes at most MaxAttempt+1 attempts.
const MaxAttempt = 3

// User-visible texts appended by the orchestrator.
const (
	ApologyMessage        = "I'm having trouble processing this math right now. Please try rephrasing."
	GenericFailureMessage = "Something went wrong while contacting the tutor. Please try again."
)

const (
	fallbackNotes       = "General failure"
	invalidVerdictNotes = "Auditor returned invalid JSON."
	statusBuffer        = 16
)

// ErrTurnInProgress is returned when a turn is requested while another is still running.
var ErrTurnInProgress = errors.New("a tutoring turn is already in progress")

// Outcome is the terminal state of a turn.
type Outcome string

// Turn outcomes.
const (
	OutcomeSucceeded   Outcome = "succeeded"
	OutcomeExhausted   Outcome = "exhausted"
	OutcomeRateLimited Outcome = "rate_limited"
	OutcomeFailed      Outcome = "failed"
	OutcomeCanceled    Outcome = "canceled"
)

// TurnOutcome summarizes a completed turn.
type TurnOutcome struct {
	TurnID   string
	Outcome  Outcome
	Attempts int
	// Reply is the message appended for the model, whatever the outcome.
	Reply string
}

// StatusEvent is published on every stage transition.
type StatusEvent struct {
	TurnID  string            `json:"turnId,omitempty"`
	Status  tutortypes.Status `json:"status"`
	Attempt int               `json:"attempt"`
}

// Options tunes the orchestrator.
type Options struct {
	// FailOpen accepts the tutor's reply when the auditor's verdict cannot be parsed.
	// The default rejects it and retries.
	FailOpen bool
	// Effort is the reasoning hint sent with every stage. Empty means medium.
	Effort tutortypes.ReasoningEffort
	Clock  Clock
}

// Orchestrator runs tutoring turns against a backend and records them in a store.
type Orchestrator struct {
	// Language model used for all three stages
	backend tutortypes.Backend
	// Conversation the turns read from and append to
	store *conversation.Store
	// Cool-down bookkeeping
	guard *Guard
	opts  Options
	// Custom styled logger for turn processing
	logger *log.Logger

	busyMu sync.Mutex
	busy   bool

	subMu       sync.Mutex
	subscribers map[int]chan StatusEvent
	nextSubID   int
	lastStatus  StatusEvent
}

// NewOrchestrator wires a backend to a store.
func NewOrchestrator(backend tutortypes.Backend, store *conversation.Store, opts Options) *Orchestrator {
	if opts.Effort == tutortypes.EffortUnspecified {
		opts.Effort = tutortypes.EffortMedium
	}
	return &Orchestrator{
		backend:     backend,
		store:       store,
		guard:       NewGuard(store, opts.Clock),
		opts:        opts,
		logger:      logger.NewStyledLogger("Pipeline"),
		subscribers: make(map[int]chan StatusEvent),
		lastStatus:  StatusEvent{Status: tutortypes.StatusIdle},
	}
}

// Guard exposes the cool-down guard for presentation layers.
func (o *Orchestrator) Guard() *Guard {
	return o.guard
}

// Store returns the conversation store the orchestrator appends to.
func (o *Orchestrator) Store() *conversation.Store {
	return o.store
}

// SendUserMessage runs a turn and absorbs its errors. Backend failures are logged and
// answered with GenericFailureMessage; a rejected concurrent turn appends nothing.
func (o *Orchestrator) SendUserMessage(ctx context.Context, text string) {
	outcome, err := o.Submit(ctx, text)
	if err != nil {
		o.logger.Warn("Dropped message, turn already in progress")
		return
	}
	o.logger.Debug("Turn finished", "turn", outcome.TurnID, "outcome", outcome.Outcome, "attempts", outcome.Attempts)
}

// Submit runs a turn like SendUserMessage but reports the outcome. A backend failure
// becomes OutcomeFailed, a cancelled ctx OutcomeCanceled; both append GenericFailureMessage. The only error returned is
// ErrTurnInProgress.
func (o *Orchestrator) Submit(ctx context.Context, text string) (TurnOutcome, error) {
	outcome, err := o.RunTurn(ctx, text)
	if errors.Is(err, ErrTurnInProgress) {
		return outcome, err
	}
	if err != nil {
		outcome.Outcome = OutcomeFailed
		if ctx.Err() != nil {
			o.logger.Info("Turn canceled by caller", "turn", outcome.TurnID, "error", ctx.Err())
			outcome.Outcome = OutcomeCanceled
		} else {
			o.logger.Error("Turn failed", "turn", outcome.TurnID, "error", err)
		}
		// The turn still needs a terminal message, even when the caller has gone away.
		outcome.Reply = GenericFailureMessage
		o.store.Append(context.WithoutCancel(ctx), tutortypes.ModelMessage(GenericFailureMessage))
	}
	return outcome, nil
}

// RunTurn appends the user's message, then plans, writes and audits a reply until the audit
// passes or the attempts run out. Throttling ends the turn with a wait message and a nil
// error. Any other backend error is returned; messages appended so far are kept.
func (o *Orchestrator) RunTurn(ctx context.Context, text string) (TurnOutcome, error) {
	if !o.acquire() {
		return TurnOutcome{}, ErrTurnInProgress
	}
	defer o.release()

	result := TurnOutcome{TurnID: uuid.NewString()}
	defer o.publish(StatusEvent{TurnID: result.TurnID, Status: tutortypes.StatusIdle})

	o.store.Append(ctx, tutortypes.UserMessage(text))
	o.logger.Info("Turn started", "turn", result.TurnID)

	if remaining := o.guard.Remaining(); remaining > 0 {
		o.logger.Info("Cool-down active, skipping backend", "turn", result.TurnID, "remaining", remaining)
		result.Outcome = OutcomeRateLimited
		result.Reply = WaitMessage(remaining)
		o.store.Append(ctx, tutortypes.ModelMessage(result.Reply))
		return result, nil
	}

	notes := ""
	for attempt := 0; ; attempt++ {
		if attempt > MaxAttempt {
			o.logger.Warn("Audit never passed, giving up", "turn", result.TurnID, "attempts", attempt)
			result.Outcome = OutcomeExhausted
			result.Reply = ApologyMessage
			o.store.Append(ctx, tutortypes.ModelMessage(result.Reply))
			return result, nil
		}
		result.Attempts = attempt + 1

		output, verdict, err := o.attempt(ctx, result.TurnID, attempt, notes)
		if err != nil {
			if rl, ok := services.AsRateLimited(err); ok {
				o.guard.OnThrottled(ctx, rl.RetryAfter)
				result.Outcome = OutcomeRateLimited
				result.Reply = WaitMessage(rl.RetryAfter)
				o.store.Append(ctx, tutortypes.ModelMessage(result.Reply))
				return result, nil
			}
			return result, err
		}

		if verdict.Succeeds {
			o.logger.Info("Audit passed", "turn", result.TurnID, "attempt", attempt)
			result.Outcome = OutcomeSucceeded
			result.Reply = output
			o.store.Append(ctx, tutortypes.ModelMessage(output))
			return result, nil
		}

		notes = verdict.Notes
		if notes == "" {
			notes = fallbackNotes
		}
		o.logger.Info("Audit failed, retrying", "turn", result.TurnID, "attempt", attempt, "notes", notes)
	}
}

// attempt runs one plan/respond/audit triple.
func (o *Orchestrator) attempt(ctx context.Context, turnID string, attempt int, notes string) (string, tutortypes.AuditVerdict, error) {
	o.publish(StatusEvent{TurnID: turnID, Status: tutortypes.StatusPlanning, Attempt: attempt})
	plan, err := o.generate(ctx, turnID, "plan", prompts.PlanPrompt(o.store.Messages(), notes))
	if err != nil {
		return "", tutortypes.AuditVerdict{}, err
	}

	o.publish(StatusEvent{TurnID: turnID, Status: tutortypes.StatusWriting, Attempt: attempt})
	output, err := o.generate(ctx, turnID, "respond", prompts.ResponsePrompt(plan))
	if err != nil {
		return "", tutortypes.AuditVerdict{}, err
	}

	o.publish(StatusEvent{TurnID: turnID, Status: tutortypes.StatusChecking, Attempt: attempt})
	raw, err := o.generate(ctx, turnID, "audit", prompts.AuditPrompt(output, plan))
	if err != nil {
		return "", tutortypes.AuditVerdict{}, err
	}

	verdict, err := prompts.ParseVerdict(raw)
	if err != nil {
		verdict = o.defaultVerdict()
		o.logger.Warn("Unparsable audit verdict, using default", "turn", turnID, "attempt", attempt, "succeeds", verdict.Succeeds, "error", err)
	}
	return output, verdict, nil
}

func (o *Orchestrator) generate(ctx context.Context, turnID, stage, prompt string) (string, error) {
	o.logger.Debug("Calling backend", "turn", turnID, "stage", stage, "backend", o.backend.Name())
	out, err := o.backend.Generate(ctx, prompt, o.opts.Effort)
	if err != nil {
		return "", fmt.Errorf("%s stage: %w", stage, err)
	}
	return out, nil
}

func (o *Orchestrator) defaultVerdict() tutortypes.AuditVerdict {
	return tutortypes.AuditVerdict{Succeeds: o.opts.FailOpen, Notes: invalidVerdictNotes}
}

func (o *Orchestrator) acquire() bool {
	o.busyMu.Lock()
	defer o.busyMu.Unlock()
	if o.busy {
		return false
	}
	o.busy = true
	return true
}

func (o *Orchestrator) release() {
	o.busyMu.Lock()
	o.busy = false
	o.busyMu.Unlock()
}

// Busy reports whether a turn is currently running.
func (o *Orchestrator) Busy() bool {
	o.busyMu.Lock()
	defer o.busyMu.Unlock()
	return o.busy
}
