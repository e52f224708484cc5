package conversation

import (
	"encoding/json"
	"fmt"
	"time"

	"mathtutor/pkg/tutortypes"
)

// StorageKey is the single fixed key the conversation is persisted under.
const StorageKey = "tutor.conversation"

// persistedConversation is the on-disk layout. RateLimitedUntil is epoch milliseconds, 0 when unset.
type persistedConversation struct {
	Messages         []tutortypes.Message `json:"messages"`
	RateLimitedUntil int64                `json:"rateLimitedUntil"`
}

// Encode serializes a conversation into the persisted layout.
func Encode(conv tutortypes.Conversation) ([]byte, error) {
	p := persistedConversation{
		Messages: conv.Messages,
	}
	if p.Messages == nil {
		p.Messages = []tutortypes.Message{}
	}
	if !conv.RateLimitedUntil.IsZero() {
		p.RateLimitedUntil = conv.RateLimitedUntil.UnixMilli()
	}
	return json.Marshal(p)
}

// Decode parses the persisted layout. Unknown senders are treated as corruption.
func Decode(data []byte) (tutortypes.Conversation, error) {
	var p persistedConversation
	if err := json.Unmarshal(data, &p); err != nil {
		return tutortypes.Conversation{}, fmt.Errorf("failed to parse conversation: %w", err)
	}

	conv := tutortypes.Conversation{Messages: make([]tutortypes.Message, 0, len(p.Messages))}
	for i, msg := range p.Messages {
		if msg.Sender != tutortypes.SenderUser && msg.Sender != tutortypes.SenderModel {
			return tutortypes.Conversation{}, fmt.Errorf("message %d has unknown sender %q", i, msg.Sender)
		}
		conv.Messages = append(conv.Messages, msg)
	}
	if p.RateLimitedUntil > 0 {
		conv.RateLimitedUntil = time.UnixMilli(p.RateLimitedUntil)
	}
	return conv, nil
}
