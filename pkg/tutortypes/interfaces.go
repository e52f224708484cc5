package tutortypes

import "context"

// Backend is the opaque text-generation service used by every pipeline stage.
// Implementations return the raw text payload, or an empty string when the backend
// supplied no content. Throttling and other failures are reported as errors.
type Backend interface {
	Name() string
	Generate(ctx context.Context, prompt string, effort ReasoningEffort) (string, error)
}

// Persister is the durable storage capability behind the conversation store.
// Load returns (nil, nil) when nothing has been persisted yet.
type Persister interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
	Clear(ctx context.Context) error
}
