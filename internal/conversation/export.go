package conversation

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"mathtutor/pkg/tutortypes"
)

// Export formats.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// exportDocument is the human-facing export layout. Unlike the persisted layout it
// renders the cool-down as an RFC 3339 timestamp.
type exportDocument struct {
	Messages         []tutortypes.Message `json:"messages" yaml:"messages"`
	RateLimitedUntil string               `json:"rateLimitedUntil,omitempty" yaml:"rateLimitedUntil,omitempty"`
}

// Export writes conv to w in the requested format ("json" or "yaml").
func Export(w io.Writer, conv tutortypes.Conversation, format string) error {
	doc := exportDocument{Messages: conv.Messages}
	if doc.Messages == nil {
		doc.Messages = []tutortypes.Message{}
	}
	if !conv.RateLimitedUntil.IsZero() {
		doc.RateLimitedUntil = conv.RateLimitedUntil.UTC().Format(time.RFC3339)
	}

	switch strings.ToLower(format) {
	case "", FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("failed to encode json: %w", err)
		}
		return nil
	case FormatYAML, "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
}
