package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// DefaultRetryAfter is used when a throttled response carries no usable retry hint.
const DefaultRetryAfter = 60 * time.Second

// MaxRetryAfter caps retry hints so huge values cannot overflow into negative durations.
const MaxRetryAfter = 24 * time.Hour

// RateLimitedError is returned by every backend when the provider signals throttling.
// It is distinct from BackendError so callers can record a cool-down instead of failing.
type RateLimitedError struct {
	Provider   string
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("%s: rate limited, retry after %s", e.Provider, e.RetryAfter)
}

// BackendError is any non-throttling failure response. Body holds the raw error payload.
type BackendError struct {
	Provider   string
	StatusCode int
	Body       string
	Err        error
}

func (e *BackendError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: backend error %d: %s", e.Provider, e.StatusCode, e.Body)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: backend error: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("%s: backend error: %s", e.Provider, e.Body)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// AsRateLimited unwraps err into a RateLimitedError if it is one.
func AsRateLimited(err error) (*RateLimitedError, bool) {
	var rl *RateLimitedError
	if errors.As(err, &rl) {
		return rl, true
	}
	return nil, false
}

// ParseRetryAfter converts a retry hint into a duration.
// Accepted forms: numbers of seconds (int, float, json.Number), stringified numbers,
// Go duration strings such as "30s", and HTTP dates. Anything else yields DefaultRetryAfter.
func ParseRetryAfter(hint interface{}) time.Duration {
	switch v := hint.(type) {
	case nil:
		return DefaultRetryAfter
	case time.Duration:
		if v < 0 {
			return DefaultRetryAfter
		}
		return capRetryAfter(v)
	case int:
		return secondsOrDefault(float64(v))
	case int64:
		return secondsOrDefault(float64(v))
	case float64:
		return secondsOrDefault(v)
	case json.Number:
		return ParseRetryAfter(v.String())
	case string:
		return parseRetryAfterString(v)
	default:
		return DefaultRetryAfter
	}
}

func parseRetryAfterString(s string) time.Duration {
	s = strings.Trim(strings.TrimSpace(s), `"`)
	if s == "" {
		return DefaultRetryAfter
	}
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return secondsOrDefault(secs)
	}
	if d, err := time.ParseDuration(s); err == nil && d >= 0 {
		return capRetryAfter(d)
	}
	if at, err := http.ParseTime(s); err == nil {
		if d := time.Until(at); d > 0 {
			return capRetryAfter(d.Round(time.Second))
		}
		return 0
	}
	return DefaultRetryAfter
}

func secondsOrDefault(secs float64) time.Duration {
	if secs < 0 || math.IsNaN(secs) || math.IsInf(secs, 0) {
		return DefaultRetryAfter
	}
	if secs >= MaxRetryAfter.Seconds() {
		return MaxRetryAfter
	}
	return time.Duration(secs * float64(time.Second))
}

func capRetryAfter(d time.Duration) time.Duration {
	if d > MaxRetryAfter {
		return MaxRetryAfter
	}
	return d
}

// retryAfterFromHeader reads Retry-After from a response header set.
func retryAfterFromHeader(h http.Header) time.Duration {
	if h == nil {
		return DefaultRetryAfter
	}
	value := h.Get("Retry-After")
	if value == "" {
		return DefaultRetryAfter
	}
	return ParseRetryAfter(value)
}
