package ai

import (
	"iter"
	"strings"
)

// StreamEventType identifies the kind of delta carried by a StreamEvent.
type StreamEventType string

const (
	// StreamEventTextDelta indicates an assistant text delta.
	StreamEventTextDelta StreamEventType = "text_delta"
	// StreamEventReasoningDelta indicates a reasoning/thinking text delta.
	StreamEventReasoningDelta StreamEventType = "reasoning_delta"
	// StreamEventFunctionCallStart opens a function call (first sight of its
	// call ID and name).
	StreamEventFunctionCallStart StreamEventType = "function_call_start"
	// StreamEventFunctionCallArgumentDelta carries an incremental argument
	// fragment for an open function call.
	StreamEventFunctionCallArgumentDelta StreamEventType = "function_call_argument_delta"
	// StreamEventFunctionCallDone closes a function call; it carries the
	// thought signature when the provider issued one.
	StreamEventFunctionCallDone StreamEventType = "function_call_done"
	// StreamEventUsage carries token usage metadata (typically near the end).
	StreamEventUsage StreamEventType = "usage"
	// StreamEventCompleted signals that the turn finished normally.
	StreamEventCompleted StreamEventType = "completed"
	// StreamEventFailed signals an error that terminated the turn. It is
	// informational; the operative error travels on the iterator's error slot.
	StreamEventFailed StreamEventType = "failed"
)

// StreamEvent is a single normalized event yielded while streaming a turn.
// Each event carries exactly one kind of payload, identified by Type.
//
// Events for one call ID always arrive as FunctionCallStart, zero or more
// FunctionCallArgumentDelta in fragment order, then FunctionCallDone. Events
// for independent call IDs may interleave. Text deltas are strictly
// append-ordered within a turn.
type StreamEvent struct {
	Type             StreamEventType `json:"type"`
	Text             string          `json:"text,omitempty"`              // Type == StreamEventTextDelta
	Reasoning        string          `json:"reasoning,omitempty"`         // Type == StreamEventReasoningDelta
	CallID           string          `json:"call_id,omitempty"`           // Function call events
	Name             string          `json:"name,omitempty"`              // Type == StreamEventFunctionCallStart
	ArgumentFragment string          `json:"argument_fragment,omitempty"` // Type == StreamEventFunctionCallArgumentDelta
	ThoughtSignature string          `json:"thought_signature,omitempty"` // FunctionCallDone / ReasoningDelta
	Usage            *Usage          `json:"usage,omitempty"`             // Type == StreamEventUsage
	FinishReason     string          `json:"finish_reason,omitempty"`     // Type == StreamEventCompleted
	Error            string          `json:"error,omitempty"`             // Type == StreamEventFailed
}

// Completion is the fully accumulated result of one turn.
type Completion struct {
	Items        []Item `json:"items"`
	Usage        *Usage `json:"usage,omitempty"`
	FinishReason string `json:"finish_reason,omitempty"`
}

// EventStream wraps a streaming iterator over normalized events and provides
// automatic accumulation into a Completion. It supports range-based iteration
// for real-time processing and a convenience Collect() method.
//
// Callers must consume the stream, either by iterating with Iter() (breaking
// early is fine) or by calling Collect(). The producing side may hold open
// resources, typically an HTTP response body, that are released only when the
// iterator completes or is abandoned via a loop break. Constructing an
// EventStream and never iterating it leaks those resources.
type EventStream struct {
	iterator iter.Seq2[StreamEvent, error]
}

// NewEventStream creates an EventStream from a raw streaming iterator. The
// iterator yields StreamEvent values with a nil error for normal deltas, and
// a non-nil error to signal a mid-stream failure; previously yielded events
// remain valid and are never retracted.
func NewEventStream(iterator iter.Seq2[StreamEvent, error]) *EventStream {
	return &EventStream{iterator: iterator}
}

// NewSingleShotStream wraps an already-complete Completion as an event
// stream. It is used when the provider is configured without streaming: the
// whole response is replayed as one event sequence followed by Completed.
func NewSingleShotStream(completion *Completion) *EventStream {
	iteratorFunc := func(yield func(StreamEvent, error) bool) {
		for _, item := range completion.Items {
			switch item.Type {
			case ItemTypeMessage:
				if item.Message.Content != "" {
					if !yield(StreamEvent{Type: StreamEventTextDelta, Text: item.Message.Content}, nil) {
						return
					}
				}

			case ItemTypeReasoning:
				event := StreamEvent{
					Type:             StreamEventReasoningDelta,
					Reasoning:        item.Reasoning.Content,
					ThoughtSignature: item.Reasoning.ThoughtSignature,
				}
				if !yield(event, nil) {
					return
				}

			case ItemTypeFunctionCall:
				call := item.FunctionCall
				if !yield(StreamEvent{Type: StreamEventFunctionCallStart, CallID: call.CallID, Name: call.Name}, nil) {
					return
				}
				if call.Arguments != "" {
					if !yield(StreamEvent{
						Type:             StreamEventFunctionCallArgumentDelta,
						CallID:           call.CallID,
						ArgumentFragment: call.Arguments,
					}, nil) {
						return
					}
				}
				if !yield(StreamEvent{
					Type:             StreamEventFunctionCallDone,
					CallID:           call.CallID,
					ThoughtSignature: call.ThoughtSignature,
				}, nil) {
					return
				}
			}
		}

		if completion.Usage != nil {
			if !yield(StreamEvent{Type: StreamEventUsage, Usage: completion.Usage}, nil) {
				return
			}
		}

		yield(StreamEvent{Type: StreamEventCompleted, FinishReason: completion.FinishReason}, nil)
	}

	return NewEventStream(iteratorFunc)
}

// Iter returns the underlying iterator for use with range-over-func loops.
//
// Example:
//
//	for event, err := range stream.Iter() {
//	    if err != nil { handle error }
//	    fmt.Print(event.Text)
//	}
func (stream *EventStream) Iter() iter.Seq2[StreamEvent, error] {
	return stream.iterator
}

// Collect consumes the entire stream and returns the accumulated Completion.
// Finalized items appear in arrival order: pending text/reasoning is flushed
// before the function call that interrupts it. Any mid-stream error
// terminates collection and returns the partial Completion with the error.
func (stream *EventStream) Collect() (*Completion, error) {
	accumulator := newCompletionAccumulator()

	for event, err := range stream.iterator {
		if err != nil {
			return accumulator.finish(), err
		}
		accumulator.apply(event)
	}

	return accumulator.finish(), nil
}

// completionAccumulator folds normalized events into conversation items.
type completionAccumulator struct {
	completion *Completion

	text      strings.Builder
	reasoning strings.Builder
	// signature seen on reasoning deltas; the last one wins
	reasoningSignature string

	openCalls map[string]*functionCallBuilder
	callOrder []string
}

type functionCallBuilder struct {
	name      string
	arguments strings.Builder
	signature string
	done      bool
}

func newCompletionAccumulator() *completionAccumulator {
	return &completionAccumulator{
		completion: &Completion{},
		openCalls:  make(map[string]*functionCallBuilder),
	}
}

func (acc *completionAccumulator) apply(event StreamEvent) {
	switch event.Type {
	case StreamEventTextDelta:
		acc.text.WriteString(event.Text)

	case StreamEventReasoningDelta:
		acc.reasoning.WriteString(event.Reasoning)
		if event.ThoughtSignature != "" {
			acc.reasoningSignature = event.ThoughtSignature
		}

	case StreamEventFunctionCallStart:
		// A function call interrupts any text accumulated so far; flush it
		// first so item order matches arrival order.
		acc.flushText()
		if _, exists := acc.openCalls[event.CallID]; !exists {
			acc.openCalls[event.CallID] = &functionCallBuilder{name: event.Name}
			acc.callOrder = append(acc.callOrder, event.CallID)
		}

	case StreamEventFunctionCallArgumentDelta:
		if builder, ok := acc.openCalls[event.CallID]; ok {
			builder.arguments.WriteString(event.ArgumentFragment)
		}

	case StreamEventFunctionCallDone:
		if builder, ok := acc.openCalls[event.CallID]; ok && !builder.done {
			builder.signature = event.ThoughtSignature
			builder.done = true
			acc.completion.Items = append(acc.completion.Items, Item{
				Type: ItemTypeFunctionCall,
				FunctionCall: &FunctionCallItem{
					CallID:           event.CallID,
					Name:             builder.name,
					Arguments:        builder.arguments.String(),
					ThoughtSignature: builder.signature,
				},
			})
		}

	case StreamEventUsage:
		if event.Usage != nil {
			acc.completion.Usage = event.Usage
		}

	case StreamEventCompleted:
		acc.completion.FinishReason = event.FinishReason

	case StreamEventFailed:
		// Informational; the operative error arrives through the iterator.
	}
}

func (acc *completionAccumulator) flushText() {
	// A signature with no summary text still produces an item: the opaque
	// state must survive accumulation so replay can carry it back.
	if acc.reasoning.Len() > 0 || acc.reasoningSignature != "" {
		acc.completion.Items = append(acc.completion.Items, Item{
			Type: ItemTypeReasoning,
			Reasoning: &ReasoningItem{
				Content:          acc.reasoning.String(),
				ThoughtSignature: acc.reasoningSignature,
			},
		})
		acc.reasoning.Reset()
		acc.reasoningSignature = ""
	}
	if acc.text.Len() > 0 {
		acc.completion.Items = append(acc.completion.Items, NewMessage(RoleAssistant, acc.text.String()))
		acc.text.Reset()
	}
}

func (acc *completionAccumulator) finish() *Completion {
	acc.flushText()
	return acc.completion
}
