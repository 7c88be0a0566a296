package utils

import (
	"errors"
	"io"
	"strings"
	"testing"
)

// chunkedReader returns at most chunkSize bytes per Read call, simulating
// arbitrary network packet boundaries.
type chunkedReader struct {
	data      []byte
	chunkSize int
	pos       int
}

func (r *chunkedReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	n := r.chunkSize
	if n > len(p) {
		n = len(p)
	}
	if r.pos+n > len(r.data) {
		n = len(r.data) - r.pos
	}
	copy(p, r.data[r.pos:r.pos+n])
	r.pos += n
	return n, nil
}

func collectSSEEvents(t *testing.T, reader io.Reader) ([]SSEEvent, error) {
	t.Helper()
	scanner := NewSSEScanner(reader)
	var events []SSEEvent
	for {
		event, err := scanner.Next()
		if err == io.EOF {
			return events, nil
		}
		if err != nil {
			return events, err
		}
		events = append(events, event)
	}
}

func TestSSEScannerBasicEvents(t *testing.T) {
	input := "data: {\"a\":1}\n\ndata: {\"b\":2}\n\n"

	events, err := collectSSEEvents(t, strings.NewReader(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Data != `{"a":1}` {
		t.Errorf("first event data = %q", events[0].Data)
	}
	if events[1].Data != `{"b":2}` {
		t.Errorf("second event data = %q", events[1].Data)
	}
}

func TestSSEScannerEventNames(t *testing.T) {
	input := "event: response.output_text.delta\ndata: {\"delta\":\"hi\"}\n\n" +
		"event: response.completed\ndata: {}\n\n"

	events, err := collectSSEEvents(t, strings.NewReader(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Event != "response.output_text.delta" {
		t.Errorf("first event name = %q", events[0].Event)
	}
	if events[1].Event != "response.completed" {
		t.Errorf("second event name = %q", events[1].Event)
	}
}

func TestSSEScannerMultiLineData(t *testing.T) {
	input := "data: line one\ndata: line two\n\n"

	events, err := collectSSEEvents(t, strings.NewReader(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Data != "line one\nline two" {
		t.Errorf("joined data = %q", events[0].Data)
	}
}

func TestSSEScannerDoneSentinel(t *testing.T) {
	input := "data: {\"a\":1}\n\ndata: [DONE]\n\ndata: {\"never\":true}\n\n"

	events, err := collectSSEEvents(t, strings.NewReader(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected stream to stop at [DONE], got %d events", len(events))
	}
}

func TestSSEScannerSkipsCommentsAndUnknownFields(t *testing.T) {
	input := ": keepalive\nid: 42\nretry: 1000\ndata: {\"a\":1}\n\n"

	events, err := collectSSEEvents(t, strings.NewReader(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 || events[0].Data != `{"a":1}` {
		t.Fatalf("expected single data event, got %+v", events)
	}
}

func TestSSEScannerCRLF(t *testing.T) {
	input := "data: {\"a\":1}\r\n\r\n"

	events, err := collectSSEEvents(t, strings.NewReader(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 || events[0].Data != `{"a":1}` {
		t.Fatalf("expected CRLF to be handled, got %+v", events)
	}
}

func TestSSEScannerTruncatedEvent(t *testing.T) {
	input := "data: {\"a\":1}\n\ndata: {\"partial\""

	scanner := NewSSEScanner(strings.NewReader(input))

	first, err := scanner.Next()
	if err != nil {
		t.Fatalf("first event errored: %v", err)
	}
	if first.Data != `{"a":1}` {
		t.Errorf("first event data = %q", first.Data)
	}

	_, err = scanner.Next()
	if !errors.Is(err, ErrTruncatedEvent) {
		t.Fatalf("expected ErrTruncatedEvent, got %v", err)
	}
}

func TestSSEScannerChunkingInvariance(t *testing.T) {
	input := "event: message\ndata: {\"text\":\"hello world\"}\n\n" +
		"data: first\ndata: second\n\n" +
		": comment\ndata: {\"n\":3}\n\n"

	want, err := collectSSEEvents(t, strings.NewReader(input))
	if err != nil {
		t.Fatalf("baseline parse failed: %v", err)
	}
	if len(want) != 3 {
		t.Fatalf("baseline expected 3 events, got %d", len(want))
	}

	for _, chunkSize := range []int{1, 2, 3, 7, 13, len(input)} {
		got, err := collectSSEEvents(t, &chunkedReader{data: []byte(input), chunkSize: chunkSize})
		if err != nil {
			t.Fatalf("chunk size %d: unexpected error: %v", chunkSize, err)
		}
		if len(got) != len(want) {
			t.Fatalf("chunk size %d: got %d events, want %d", chunkSize, len(got), len(want))
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("chunk size %d: event %d = %+v, want %+v", chunkSize, i, got[i], want[i])
			}
		}
	}
}

func TestSSEScannerEmptyStream(t *testing.T) {
	scanner := NewSSEScanner(strings.NewReader(""))
	_, err := scanner.Next()
	if err != io.EOF {
		t.Fatalf("expected io.EOF on empty stream, got %v", err)
	}
}
