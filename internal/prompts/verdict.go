package prompts

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"mathtutor/pkg/tutortypes"
)

// ErrMalformedVerdict is returned when the auditor's reply is not a usable verdict.
var ErrMalformedVerdict = errors.New("malformed audit verdict")

type rawVerdict struct {
	Succeeds *bool  `json:"succeeds"`
	Notes    string `json:"notes"`
}

// ParseVerdict decodes the auditor's raw reply. Surrounding whitespace and a single
// ```json fence are tolerated; anything else that is not a JSON object with a boolean
// "succeeds" field yields ErrMalformedVerdict.
func ParseVerdict(raw string) (tutortypes.AuditVerdict, error) {
	body := stripCodeFence(strings.TrimSpace(raw))
	if body == "" {
		return tutortypes.AuditVerdict{}, fmt.Errorf("%w: empty reply", ErrMalformedVerdict)
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(body)))
	var v rawVerdict
	if err := dec.Decode(&v); err != nil {
		return tutortypes.AuditVerdict{}, fmt.Errorf("%w: %v", ErrMalformedVerdict, err)
	}
	if dec.More() {
		return tutortypes.AuditVerdict{}, fmt.Errorf("%w: trailing data after JSON object", ErrMalformedVerdict)
	}
	if v.Succeeds == nil {
		return tutortypes.AuditVerdict{}, fmt.Errorf("%w: missing succeeds field", ErrMalformedVerdict)
	}

	return tutortypes.AuditVerdict{Succeeds: *v.Succeeds, Notes: v.Notes}, nil
}

func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") || !strings.HasSuffix(s, "```") || len(s) < 6 {
		return s
	}
	inner := strings.TrimSuffix(strings.TrimPrefix(s, "```"), "```")
	// Drop an optional language tag on the opening fence line.
	if idx := strings.IndexByte(inner, '\n'); idx >= 0 {
		tag := strings.TrimSpace(inner[:idx])
		if tag == "" || tag == "json" || tag == "JSON" {
			inner = inner[idx+1:]
		}
	}
	return strings.TrimSpace(inner)
}
