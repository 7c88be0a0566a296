package ai

import "fmt"

// ConfigError reports invalid or missing configuration (unknown provider,
// bad wire API value, unmappable model family). It is always raised before
// any network activity.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return "config error: " + e.Message
}

// NewConfigError formats a ConfigError.
func NewConfigError(format string, args ...any) *ConfigError {
	return &ConfigError{Message: fmt.Sprintf(format, args...)}
}

// AuthError reports a missing or unusable credential. Like ConfigError it is
// raised before the request is sent, never as a mid-stream failure.
type AuthError struct {
	EnvKey string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error: credential environment variable %q is not set", e.EnvKey)
}

// TransportError wraps a connection-level failure: dial errors, resets,
// timeouts, unreadable bodies.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "transport error: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ProtocolError reports malformed framing or an unexpected payload shape:
// unparseable SSE data, a connection closed mid-event, or a replay that is
// missing a required thought signature.
type ProtocolError struct {
	Message string
}

func (e *ProtocolError) Error() string {
	return "protocol error: " + e.Message
}

// NewProtocolError formats a ProtocolError.
func NewProtocolError(format string, args ...any) *ProtocolError {
	return &ProtocolError{Message: fmt.Sprintf(format, args...)}
}

// ResponseTooLargeError reports that accumulated streaming output exceeded
// the configured cap. Limit is the cap in bytes.
type ResponseTooLargeError struct {
	Limit int
}

func (e *ResponseTooLargeError) Error() string {
	return fmt.Sprintf("response too large: accumulated output exceeded %d bytes", e.Limit)
}

// UpstreamError reports a non-2xx provider response. Body holds the raw
// (possibly truncated) response body for diagnosis. Code carries a
// provider-independent classification for non-HTTP upstream failures such as
// context window exhaustion.
type UpstreamError struct {
	StatusCode int
	Body       string
	Code       string
}

func (e *UpstreamError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("upstream error (%s): %s", e.Code, e.Body)
	}
	return fmt.Sprintf("upstream error: status %d: %s", e.StatusCode, e.Body)
}

// Retryable reports whether the orchestrator may reasonably retry the turn:
// rate limits and server-side failures are retryable, other client errors
// are not. The dispatcher itself never retries.
func (e *UpstreamError) Retryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// CodeContextWindowExceeded marks an UpstreamError caused by the
// conversation exceeding the model's context window.
const CodeContextWindowExceeded = "context_window_exceeded"
