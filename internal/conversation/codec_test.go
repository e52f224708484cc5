package conversation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mathtutor/pkg/tutortypes"
)

func TestEncode_Layout(t *testing.T) {
	conv := tutortypes.Conversation{
		Messages: []tutortypes.Message{
			tutortypes.UserMessage(`solve $2x+3=7$`),
			tutortypes.ModelMessage("Let's try a similar one."),
		},
		RateLimitedUntil: time.UnixMilli(1700000000123),
	}

	data, err := Encode(conv)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"messages": [
			{"sender": "user", "contents": "solve $2x+3=7$"},
			{"sender": "model", "contents": "Let's try a similar one."}
		],
		"rateLimitedUntil": 1700000000123
	}`, string(data))
}

func TestEncode_EmptyConversation(t *testing.T) {
	data, err := Encode(tutortypes.Conversation{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"messages": [], "rateLimitedUntil": 0}`, string(data))
}

func TestDecode_RoundTrip(t *testing.T) {
	original := tutortypes.Conversation{
		Messages: []tutortypes.Message{
			tutortypes.UserMessage(`what is \frac{1}{2} + \frac{1}{3}?`),
			tutortypes.ModelMessage("$$\\frac{5}{6}$$"),
		},
		RateLimitedUntil: time.UnixMilli(1700000000000),
	}

	data, err := Encode(original)
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, original.Messages, decoded.Messages)
	assert.True(t, original.RateLimitedUntil.Equal(decoded.RateLimitedUntil))
}

func TestDecode_ZeroDeadline(t *testing.T) {
	decoded, err := Decode([]byte(`{"messages":[],"rateLimitedUntil":0}`))
	require.NoError(t, err)
	assert.True(t, decoded.RateLimitedUntil.IsZero())
	assert.True(t, decoded.IsEmpty())
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `not json at all`},
		{"truncated", `{"messages":[{"sender":"user"`},
		{"unknown sender", `{"messages":[{"sender":"parent","contents":"hi"}]}`},
		{"wrong type", `{"messages":"hello"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}
