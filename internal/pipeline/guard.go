package pipeline

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/charmbracelet/log"

	"mathtutor/internal/conversation"
	"mathtutor/internal/logger"
)

// Clock returns the current time. Tests substitute a fixed or stepping clock.
type Clock func() time.Time

// Guard records provider throttling as a cool-down deadline on the conversation.
// It is advisory: callers consult IsLimited, nothing blocks on it.
type Guard struct {
	store  *conversation.Store
	now    Clock
	logger *log.Logger
}

// NewGuard creates a guard that stores its deadline in store. A nil clock uses time.Now.
func NewGuard(store *conversation.Store, now Clock) *Guard {
	if now == nil {
		now = time.Now
	}
	return &Guard{
		store:  store,
		now:    now,
		logger: logger.NewStyledLogger("Guard"),
	}
}

// OnThrottled sets the deadline to now + retryAfter, persists it and returns it.
func (g *Guard) OnThrottled(ctx context.Context, retryAfter time.Duration) time.Time {
	if retryAfter < 0 {
		retryAfter = 0
	}
	deadline := g.now().Add(retryAfter)
	g.store.SetRateLimitedUntil(ctx, deadline)
	g.logger.Warn("Cool-down recorded", "retry_after", retryAfter, "until", deadline.Format(time.RFC3339))
	return deadline
}

// IsLimited reports whether the stored deadline is still in the future.
func (g *Guard) IsLimited() bool {
	return g.Remaining() > 0
}

// Remaining returns how long the cool-down still lasts, zero when none is active.
func (g *Guard) Remaining() time.Duration {
	deadline := g.store.RateLimitedUntil()
	if deadline.IsZero() {
		return 0
	}
	if d := deadline.Sub(g.now()); d > 0 {
		return d
	}
	return 0
}

// WaitMessage is the text appended to the conversation when a turn is throttled.
// The wait is rounded up to whole seconds, never below one.
func WaitMessage(wait time.Duration) string {
	secs := int(math.Ceil(wait.Seconds()))
	if secs <= 1 {
		return "The tutor is busy right now. Please wait about 1 second and try again."
	}
	return fmt.Sprintf("The tutor is busy right now. Please wait about %d seconds and try again.", secs)
}
