// Package tutortypes defines the core types shared across the tutor: conversation messages,
// reasoning effort levels, audit verdicts and the status labels emitted during a turn.
package tutortypes

import (
	"fmt"
	"strings"
	"time"
)

// Sender identifies who authored a message.
type Sender string

// Message senders.
const (
	SenderUser  Sender = "user"
	SenderModel Sender = "model"
)

// Message represents a single entry in the conversation history.
// Messages are values; once appended to a conversation they are never modified.
type Message struct {
	Sender   Sender `json:"sender" yaml:"sender"`
	Contents string `json:"contents" yaml:"contents"`
}

// UserMessage builds a message authored by the student.
func UserMessage(contents string) Message {
	return Message{Sender: SenderUser, Contents: contents}
}

// ModelMessage builds a message authored by the tutor.
func ModelMessage(contents string) Message {
	return Message{Sender: SenderModel, Contents: contents}
}

// Conversation is the complete tutoring state that survives process restarts.
// A zero RateLimitedUntil means no cool-down has ever been recorded.
type Conversation struct {
	Messages         []Message `json:"messages"`
	RateLimitedUntil time.Time `json:"-"`
}

// Clone returns a deep copy of the conversation.
func (c Conversation) Clone() Conversation {
	msgs := make([]Message, len(c.Messages))
	copy(msgs, c.Messages)
	return Conversation{Messages: msgs, RateLimitedUntil: c.RateLimitedUntil}
}

// IsEmpty reports whether the conversation holds no messages and no cool-down.
func (c Conversation) IsEmpty() bool {
	return len(c.Messages) == 0 && c.RateLimitedUntil.IsZero()
}

// ReasoningEffort is the closed set of reasoning hints accepted by backends.
type ReasoningEffort string

// Reasoning effort levels. EffortUnspecified means no hint is sent at all.
const (
	EffortUnspecified ReasoningEffort = ""
	EffortNone        ReasoningEffort = "none"
	EffortDefault     ReasoningEffort = "default"
	EffortLow         ReasoningEffort = "low"
	EffortMedium      ReasoningEffort = "medium"
	EffortHigh        ReasoningEffort = "high"
)

// ParseReasoningEffort converts a string into a ReasoningEffort.
// Empty strings, "unspecified" and "null" map to EffortUnspecified.
func ParseReasoningEffort(s string) (ReasoningEffort, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "unspecified", "null":
		return EffortUnspecified, nil
	case "none":
		return EffortNone, nil
	case "default":
		return EffortDefault, nil
	case "low":
		return EffortLow, nil
	case "medium":
		return EffortMedium, nil
	case "high":
		return EffortHigh, nil
	default:
		return EffortUnspecified, fmt.Errorf("unknown reasoning effort %q", s)
	}
}

// IsValid reports whether e is one of the known effort levels.
func (e ReasoningEffort) IsValid() bool {
	switch e {
	case EffortUnspecified, EffortNone, EffortDefault, EffortLow, EffortMedium, EffortHigh:
		return true
	}
	return false
}

// String returns the wire form of the effort, "unspecified" for the empty value.
func (e ReasoningEffort) String() string {
	if e == EffortUnspecified {
		return "unspecified"
	}
	return string(e)
}

// AuditVerdict is the structured result of the audit stage.
type AuditVerdict struct {
	Succeeds bool   `json:"succeeds"`
	Notes    string `json:"notes,omitempty"`
}

// Status is a human-readable phase label for presentation layers.
type Status string

// Turn status labels.
const (
	StatusIdle     Status = "idle"
	StatusPlanning Status = "planning"
	StatusWriting  Status = "writing"
	StatusChecking Status = "checking"
)
