package openai

import (
	"context"
	"encoding/json"
	"io"
	"sort"

	"github.com/ce-data-e/opencodex/internal/utils"
	"github.com/ce-data-e/opencodex/providers/ai"
	"github.com/ce-data-e/opencodex/providers/observability"
)

/*
	CHAT COMPLETIONS STREAMING API - RESPONSE TYPES

	These types model the SSE chunks returned by /chat/completions with
	stream=true. Each chunk carries incremental deltas for content,
	reasoning, and tool calls, plus usage metadata in the final chunk when
	stream_options.include_usage is set.
*/

// chatStreamChunk represents a single SSE chunk from the streaming chat
// completions endpoint.
type chatStreamChunk struct {
	ID      string             `json:"id"`
	Object  string             `json:"object"` // "chat.completion.chunk"
	Model   string             `json:"model"`
	Choices []chatStreamChoice `json:"choices"`
	Usage   *chatUsage         `json:"usage,omitempty"`
}

type chatStreamChoice struct {
	Index        int             `json:"index"`
	Delta        chatStreamDelta `json:"delta"`
	FinishReason *string         `json:"finish_reason"` // nil until the final chunk for this choice
}

// chatStreamDelta carries the incremental content of one chunk. All fields
// are optional; a chunk may carry only content, only tool calls, only a
// role, etc.
type chatStreamDelta struct {
	Role      string                   `json:"role,omitempty"`
	Content   *string                  `json:"content,omitempty"`
	Reasoning *string                  `json:"reasoning,omitempty"`
	ToolCalls []chatStreamToolCallPart `json:"tool_calls,omitempty"`
}

// chatStreamToolCallPart is an incremental tool call delta. The first chunk
// for a tool call carries its ID and function name; later chunks carry
// argument fragments keyed by index only.
type chatStreamToolCallPart struct {
	Index    int    `json:"index"`
	ID       string `json:"id,omitempty"`
	Type     string `json:"type,omitempty"`
	Function struct {
		Name      string `json:"name,omitempty"`
		Arguments string `json:"arguments,omitempty"`
	} `json:"function"`
	ExtraContent *chatExtraContent `json:"extra_content,omitempty"`
}

// openChatCall tracks one in-flight tool call keyed by choice index.
type openChatCall struct {
	callID        string
	name          string
	argumentBytes int
	signature     string
	started       bool
	// fragments that arrived before the call had an ID
	pendingFragments []string
}

// open emits the Start event and replays any fragments buffered while the
// call was still waiting for its ID.
func (call *openChatCall) open() []ai.StreamEvent {
	call.started = true
	events := []ai.StreamEvent{{
		Type:   ai.StreamEventFunctionCallStart,
		CallID: call.callID,
		Name:   call.name,
	}}
	for _, fragment := range call.pendingFragments {
		events = append(events, ai.StreamEvent{
			Type:             ai.StreamEventFunctionCallArgumentDelta,
			CallID:           call.callID,
			ArgumentFragment: fragment,
		})
	}
	call.pendingFragments = nil
	return events
}

// chatStreamDecoder folds streaming chunks into normalized events. It is a
// single-goroutine state machine; open tool calls are tracked by wire index
// because argument fragments after the first chunk omit the call ID.
type chatStreamDecoder struct {
	openCalls     map[int]*openChatCall
	argumentLimit int
	completedSent bool
}

func newChatStreamDecoder(argumentLimit int) *chatStreamDecoder {
	return &chatStreamDecoder{
		openCalls:     make(map[int]*openChatCall),
		argumentLimit: argumentLimit,
	}
}

// apply converts one chunk into zero or more events. A single chunk can
// carry several kinds of data at once.
func (decoder *chatStreamDecoder) apply(chunk *chatStreamChunk) ([]ai.StreamEvent, error) {
	var events []ai.StreamEvent

	// The usage chunk typically has empty choices; handle it first.
	if chunk.Usage != nil {
		events = append(events, ai.StreamEvent{Type: ai.StreamEventUsage, Usage: chunk.Usage.toUsage()})
	}

	for _, choice := range chunk.Choices {
		delta := choice.Delta

		if delta.Content != nil && *delta.Content != "" {
			events = append(events, ai.StreamEvent{Type: ai.StreamEventTextDelta, Text: *delta.Content})
		}

		if delta.Reasoning != nil && *delta.Reasoning != "" {
			events = append(events, ai.StreamEvent{Type: ai.StreamEventReasoningDelta, Reasoning: *delta.Reasoning})
		}

		for _, part := range delta.ToolCalls {
			partEvents, err := decoder.applyToolCallPart(part)
			if err != nil {
				return events, err
			}
			events = append(events, partEvents...)
		}

		if choice.FinishReason != nil && *choice.FinishReason != "" {
			events = append(events, decoder.finish(*choice.FinishReason)...)
		}
	}

	return events, nil
}

func (decoder *chatStreamDecoder) applyToolCallPart(part chatStreamToolCallPart) ([]ai.StreamEvent, error) {
	call, open := decoder.openCalls[part.Index]
	if !open {
		call = &openChatCall{callID: part.ID, name: part.Function.Name}
		decoder.openCalls[part.Index] = call
	}

	// Late-arriving identity fields on an already-open call
	if call.callID == "" && part.ID != "" {
		call.callID = part.ID
	}
	if call.name == "" && part.Function.Name != "" {
		call.name = part.Function.Name
	}
	if part.ExtraContent != nil && part.ExtraContent.Google != nil {
		call.signature = part.ExtraContent.Google.ThoughtSignature
	}

	var events []ai.StreamEvent

	// Start is held back until the call has an ID, so every event for the
	// call correlates; some gateways put the ID on a later fragment.
	if !call.started && call.callID != "" {
		events = append(events, call.open()...)
	}

	if fragment := part.Function.Arguments; fragment != "" {
		call.argumentBytes += len(fragment)
		if call.argumentBytes > decoder.argumentLimit {
			return events, &ai.ResponseTooLargeError{Limit: decoder.argumentLimit}
		}
		if !call.started {
			call.pendingFragments = append(call.pendingFragments, fragment)
		} else {
			events = append(events, ai.StreamEvent{
				Type:             ai.StreamEventFunctionCallArgumentDelta,
				CallID:           call.callID,
				ArgumentFragment: fragment,
			})
		}
	}

	return events, nil
}

// finish closes all open tool calls in wire-index order and emits the
// terminal Completed event.
func (decoder *chatStreamDecoder) finish(finishReason string) []ai.StreamEvent {
	if decoder.completedSent {
		return nil
	}
	decoder.completedSent = true

	indices := make([]int, 0, len(decoder.openCalls))
	for index := range decoder.openCalls {
		indices = append(indices, index)
	}
	sort.Ints(indices)

	var events []ai.StreamEvent
	for _, index := range indices {
		call := decoder.openCalls[index]
		// A call that never received an ID still opens before closing, so
		// the Start/Done pairing holds.
		if !call.started {
			events = append(events, call.open()...)
		}
		events = append(events, ai.StreamEvent{
			Type:             ai.StreamEventFunctionCallDone,
			CallID:           call.callID,
			ThoughtSignature: call.signature,
		})
	}
	decoder.openCalls = make(map[int]*openChatCall)

	return append(events, ai.StreamEvent{Type: ai.StreamEventCompleted, FinishReason: finishReason})
}

// StreamChatCompletions performs one streaming chat completions turn. The
// request is sent with stream=true and usage reporting enabled; the returned
// EventStream yields normalized events as SSE chunks arrive. The response
// body stays open until the iterator completes or is abandoned.
func StreamChatCompletions(ctx context.Context, config ai.ProviderConfig, family ai.ModelFamily, prompt ai.Prompt, opts Options) (*ai.EventStream, error) {
	request, err := buildChatRequest(prompt, family)
	if err != nil {
		return nil, err
	}
	request.Stream = utils.Ptr(true)
	request.StreamOptions = &streamOptions{IncludeUsage: true}

	if span := observability.SpanFromContext(ctx); span != nil {
		span.SetAttributes(
			observability.String(observability.AttrLLMWireAPI, string(ai.WireChatCompletions)),
			observability.String(observability.AttrLLMModel, prompt.Model),
		)
	}

	httpResponse, err := utils.DoPostStream(ctx, opts.HTTPClient, config.ChatCompletionsURL(), opts.APIKey, request, opts.headers()...)
	if err != nil {
		return nil, err
	}

	scanner := utils.NewSSEScanner(httpResponse.Body)
	decoder := newChatStreamDecoder(opts.argumentLimit())

	iteratorFunc := func(yield func(ai.StreamEvent, error) bool) {
		defer utils.CloseWithLog(httpResponse.Body)

		for {
			if ctx.Err() != nil {
				yield(ai.StreamEvent{Type: ai.StreamEventFailed, Error: ctx.Err().Error()}, ctx.Err())
				return
			}

			payload, sseErr := scanner.Next()
			if sseErr == io.EOF {
				// [DONE] or clean close; close any turn the finish chunk
				// did not terminate.
				if !decoder.completedSent {
					for _, event := range decoder.finish("") {
						if !yield(event, nil) {
							return
						}
					}
				}
				return
			}
			if sseErr != nil {
				// Cancellation surfaces as a read error while blocked in
				// Next; report it as the context error, not a protocol one.
				if ctxErr := ctx.Err(); ctxErr != nil {
					yield(ai.StreamEvent{Type: ai.StreamEventFailed, Error: ctxErr.Error()}, ctxErr)
					return
				}
				err := ai.NewProtocolError("reading chat completions stream: %v", sseErr)
				yield(ai.StreamEvent{Type: ai.StreamEventFailed, Error: err.Error()}, err)
				return
			}

			var chunk chatStreamChunk
			if err := json.Unmarshal([]byte(payload.Data), &chunk); err != nil {
				protocolErr := ai.NewProtocolError("malformed chat completions chunk: %v", err)
				yield(ai.StreamEvent{Type: ai.StreamEventFailed, Error: protocolErr.Error()}, protocolErr)
				return
			}

			events, decodeErr := decoder.apply(&chunk)
			for _, event := range events {
				if !yield(event, nil) {
					return
				}
			}
			if decodeErr != nil {
				yield(ai.StreamEvent{Type: ai.StreamEventFailed, Error: decodeErr.Error()}, decodeErr)
				return
			}
		}
	}

	return ai.NewEventStream(iteratorFunc), nil
}
