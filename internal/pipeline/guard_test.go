package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"mathtutor/internal/conversation"
)

func TestGuard_OnThrottled(t *testing.T) {
	now := fixedNow
	store := conversation.NewStore(nil)
	guard := NewGuard(store, func() time.Time { return now })

	assert.False(t, guard.IsLimited())
	assert.Zero(t, guard.Remaining())

	deadline := guard.OnThrottled(context.Background(), 30*time.Second)
	assert.True(t, fixedNow.Add(30*time.Second).Equal(deadline))
	assert.True(t, deadline.Equal(store.RateLimitedUntil()))
	assert.True(t, guard.IsLimited())
	assert.Equal(t, 30*time.Second, guard.Remaining())

	now = now.Add(29 * time.Second)
	assert.True(t, guard.IsLimited())
	assert.Equal(t, time.Second, guard.Remaining())

	now = now.Add(time.Second)
	assert.False(t, guard.IsLimited())
	assert.Zero(t, guard.Remaining())
}

func TestGuard_NegativeRetryAfter(t *testing.T) {
	store := conversation.NewStore(nil)
	guard := NewGuard(store, fixedClock)

	deadline := guard.OnThrottled(context.Background(), -5*time.Second)
	assert.True(t, fixedNow.Equal(deadline))
	assert.False(t, guard.IsLimited())
}

func TestWaitMessage(t *testing.T) {
	tests := []struct {
		wait time.Duration
		want string
	}{
		{60 * time.Second, "about 60 seconds"},
		{1500 * time.Millisecond, "about 2 seconds"},
		{0, "about 1 second and"},
		{300 * time.Millisecond, "about 1 second and"},
		{1001 * time.Millisecond, "about 2 seconds"},
	}
	for _, tt := range tests {
		assert.Contains(t, WaitMessage(tt.wait), tt.want)
	}
	assert.NotContains(t, WaitMessage(time.Second), "seconds")
	assert.Equal(t, "The tutor is busy right now. Please wait about 5 seconds and try again.", WaitMessage(5*time.Second))
}
