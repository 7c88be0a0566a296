package utils

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// maxSSELineSize is the maximum size of a single SSE line (1 MB). The
// default bufio.Scanner limit is 64 KiB, which is too small for large events
// such as tool-call arguments or long completions. If a line exceeds this
// limit the scanner returns a wrapped bufio.ErrTooLong via the Next() error
// path.
const maxSSELineSize = 1 * 1024 * 1024

// ErrTruncatedEvent is returned by SSEScanner.Next when the underlying
// stream ends while data lines are buffered but the blank-line event
// terminator was never seen, i.e. the connection closed mid-event.
var ErrTruncatedEvent = errors.New("stream closed mid-event")

// SSEEvent is one parsed server-sent event: an optional event name and the
// joined data payload.
type SSEEvent struct {
	Event string
	Data  string
}

// SSEScanner reads server-sent events from an io.Reader. It buffers until a
// full event boundary (blank line) is seen, so decoding behaves identically
// regardless of how the input is chunked by the network. It handles
// multi-line data fields, event name fields, comments, and the [DONE]
// sentinel used by OpenAI-compatible APIs.
type SSEScanner struct {
	scanner *bufio.Scanner
}

// NewSSEScanner creates an SSEScanner over the given reader. Individual SSE
// lines up to maxSSELineSize (1 MB) are supported.
func NewSSEScanner(reader io.Reader) *SSEScanner {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), maxSSELineSize)
	return &SSEScanner{scanner: scanner}
}

// Next returns the next complete SSE event.
//
// Multiple consecutive "data:" lines are joined with newlines into a single
// payload. Comment lines (starting with ':') and unknown fields (id:,
// retry:) are skipped. Returns io.EOF on clean end of stream and when the
// [DONE] sentinel is encountered; returns ErrTruncatedEvent when the stream
// ends with a partially buffered event.
func (sseScanner *SSEScanner) Next() (SSEEvent, error) {
	var eventName string
	var dataLines []string

	for sseScanner.scanner.Scan() {
		line := sseScanner.scanner.Text()
		line = strings.TrimSuffix(line, "\r")

		// Empty line terminates an event; flush accumulated data lines
		if line == "" {
			if len(dataLines) > 0 {
				return SSEEvent{Event: eventName, Data: strings.Join(dataLines, "\n")}, nil
			}
			eventName = ""
			continue
		}

		// Skip SSE comments
		if strings.HasPrefix(line, ":") {
			continue
		}

		if name, found := strings.CutPrefix(line, "event:"); found {
			eventName = strings.TrimSpace(name)
			continue
		}

		if data, found := strings.CutPrefix(line, "data:"); found {
			data = strings.TrimSpace(data)

			// [DONE] is the OpenAI end-of-stream sentinel, not JSON
			if data == "[DONE]" {
				return SSEEvent{}, io.EOF
			}

			dataLines = append(dataLines, data)
			continue
		}

		// Ignore other SSE fields (id:, retry:)
	}

	if err := sseScanner.scanner.Err(); err != nil {
		return SSEEvent{}, fmt.Errorf("SSE scanner error: %w", err)
	}

	// Data lines without a terminating blank line mean the connection
	// closed mid-event.
	if len(dataLines) > 0 {
		return SSEEvent{}, ErrTruncatedEvent
	}

	return SSEEvent{}, io.EOF
}
