// Package conversation owns the tutoring conversation: ordered messages plus the
// rate-limit deadline, persisted best-effort through a pluggable Persister.
package conversation

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"mathtutor/internal/logger"
	"mathtutor/pkg/tutortypes"
)

// Store holds the in-memory conversation and mirrors every change to its Persister.
// Persistence failures are logged and never returned; loading corrupt data yields an
// empty conversation.
type Store struct {
	mu   sync.RWMutex
	conv tutortypes.Conversation

	saveMu    sync.Mutex
	persister tutortypes.Persister
	log       *log.Logger
}

// NewStore creates an empty store backed by persister. A nil persister keeps state in memory only.
func NewStore(persister tutortypes.Persister) *Store {
	if persister == nil {
		persister = NewMemoryPersister()
	}
	return &Store{
		conv:      tutortypes.Conversation{Messages: []tutortypes.Message{}},
		persister: persister,
		log:       logger.NewStyledLogger("Store"),
	}
}

// Load replaces the in-memory conversation with the persisted one and returns a copy.
// Absent or unreadable data degrades to an empty conversation.
func (s *Store) Load(ctx context.Context) tutortypes.Conversation {
	conv := tutortypes.Conversation{Messages: []tutortypes.Message{}}

	data, err := s.persister.Load(ctx)
	switch {
	case err != nil:
		s.log.Warn("Failed to read persisted conversation, starting empty", "error", err)
	case len(data) == 0:
		s.log.Debug("No persisted conversation")
	default:
		decoded, decodeErr := Decode(data)
		if decodeErr != nil {
			s.log.Warn("Persisted conversation is corrupt, starting empty", "error", decodeErr)
		} else {
			conv = decoded
		}
	}

	s.mu.Lock()
	s.conv = conv
	s.mu.Unlock()

	s.log.Debug("Conversation loaded", "messages", len(conv.Messages))
	return conv.Clone()
}

// Save writes the current conversation. Failures are logged only.
// Cancellation of ctx is ignored so the persisted copy never falls behind memory.
func (s *Store) Save(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)

	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	data, err := Encode(s.Snapshot())
	if err != nil {
		s.log.Error("Failed to encode conversation", "error", err)
		return
	}
	if err := s.persister.Save(ctx, data); err != nil {
		s.log.Warn("Failed to persist conversation", "error", err)
	}
}

// Reset clears messages and the cool-down, and removes persisted state.
func (s *Store) Reset(ctx context.Context) {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	s.conv = tutortypes.Conversation{Messages: []tutortypes.Message{}}
	s.mu.Unlock()

	if err := s.persister.Clear(context.WithoutCancel(ctx)); err != nil {
		s.log.Warn("Failed to clear persisted conversation", "error", err)
	}
	s.log.Debug("Conversation reset")
}

// Append adds msg to the end of the conversation and persists the result.
func (s *Store) Append(ctx context.Context, msg tutortypes.Message) {
	s.mu.Lock()
	s.conv.Messages = append(s.conv.Messages, msg)
	count := len(s.conv.Messages)
	s.mu.Unlock()

	s.log.Debug("Message appended", "sender", msg.Sender, "messages", count)
	s.Save(ctx)
}

// Messages returns a copy of the ordered message history.
func (s *Store) Messages() []tutortypes.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := make([]tutortypes.Message, len(s.conv.Messages))
	copy(msgs, s.conv.Messages)
	return msgs
}

// RateLimitedUntil returns the stored cool-down deadline, zero when none was recorded.
func (s *Store) RateLimitedUntil() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conv.RateLimitedUntil
}

// SetRateLimitedUntil overwrites the cool-down deadline and persists it.
func (s *Store) SetRateLimitedUntil(ctx context.Context, deadline time.Time) {
	s.mu.Lock()
	s.conv.RateLimitedUntil = deadline
	s.mu.Unlock()

	s.Save(ctx)
}

// Snapshot returns a deep copy of the whole conversation.
func (s *Store) Snapshot() tutortypes.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conv.Clone()
}
