package traffic

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedResponse is wrapped by every error returned for a backend
// response that lacks the aggregations.events.buckets shape.
var ErrMalformedResponse = errors.New("malformed search response")

// UpstreamError is the top-level error object reported by the search backend.
// Its presence makes the whole batch fail before any bucket is scored.
type UpstreamError struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

func (e *UpstreamError) Error() string {
	switch {
	case e.Type == "":
		return "upstream error: " + e.Reason
	case e.Reason == "":
		return "upstream error: " + e.Type
	default:
		return fmt.Sprintf("upstream error: %s: %s", e.Type, e.Reason)
	}
}

// UnmarshalJSON accepts both the object form {"type","reason"} and the bare
// string form some backends return for request-level failures.
func (e *UpstreamError) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		e.Reason = s
		return nil
	}
	type plain UpstreamError
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*e = UpstreamError(p)
	return nil
}

// ConfigError reports a ProcessingConfig constraint violation. It is only
// returned by NewProcessingConfig; values are never silently corrected.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func configErrorf(field, format string, args ...any) *ConfigError {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// InvariantError means the engine produced inconsistent output, such as a
// score/status mismatch or stats that do not add up. It indicates a bug and
// must not be swallowed.
type InvariantError struct {
	What string
}

func (e *InvariantError) Error() string {
	return "invariant violated: " + e.What
}

func invariantf(format string, args ...any) *InvariantError {
	return &InvariantError{What: fmt.Sprintf(format, args...)}
}
