package openai

import (
	"context"
	"encoding/json"
	"io"

	"github.com/ce-data-e/opencodex/internal/utils"
	"github.com/ce-data-e/opencodex/providers/ai"
	"github.com/ce-data-e/opencodex/providers/observability"
)

/*
	RESPONSES STREAMING API - EVENT TYPES

	Unlike chat completions, the responses endpoint names its SSE events:
	each payload carries a "type" matching the SSE event: line. Argument
	deltas are keyed by item_id, so the decoder keeps an item_id → call_id
	mapping from the output_item.added events.
*/

// responsesStreamEvent is the envelope of one responses SSE payload. Only
// the fields relevant to the event's type are populated.
type responsesStreamEvent struct {
	Type     string               `json:"type"`
	ItemID   string               `json:"item_id,omitempty"`
	Delta    string               `json:"delta,omitempty"`
	Item     *responsesOutputItem `json:"item,omitempty"`
	Response *responsesResponse   `json:"response,omitempty"`
	Error    *responsesError      `json:"error,omitempty"`
}

type responsesError struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// responsesStreamDecoder folds named SSE events into normalized events.
type responsesStreamDecoder struct {
	// callIDByItem maps the wire item id to the call_id announced in
	// output_item.added, because argument deltas carry only the item id.
	callIDByItem  map[string]string
	argumentBytes map[string]int
	argumentLimit int
	completedSent bool
}

func newResponsesStreamDecoder(argumentLimit int) *responsesStreamDecoder {
	return &responsesStreamDecoder{
		callIDByItem:  make(map[string]string),
		argumentBytes: make(map[string]int),
		argumentLimit: argumentLimit,
	}
}

func (decoder *responsesStreamDecoder) apply(event *responsesStreamEvent) ([]ai.StreamEvent, error) {
	switch event.Type {
	case "response.output_item.added":
		if event.Item != nil && event.Item.Type == "function_call" {
			decoder.callIDByItem[event.Item.ID] = event.Item.CallID
			return []ai.StreamEvent{{
				Type:   ai.StreamEventFunctionCallStart,
				CallID: event.Item.CallID,
				Name:   event.Item.Name,
			}}, nil
		}
		return nil, nil

	case "response.output_text.delta":
		if event.Delta == "" {
			return nil, nil
		}
		return []ai.StreamEvent{{Type: ai.StreamEventTextDelta, Text: event.Delta}}, nil

	case "response.reasoning_summary_text.delta":
		if event.Delta == "" {
			return nil, nil
		}
		return []ai.StreamEvent{{Type: ai.StreamEventReasoningDelta, Reasoning: event.Delta}}, nil

	case "response.function_call_arguments.delta":
		callID, known := decoder.callIDByItem[event.ItemID]
		if !known || event.Delta == "" {
			return nil, nil
		}
		decoder.argumentBytes[event.ItemID] += len(event.Delta)
		if decoder.argumentBytes[event.ItemID] > decoder.argumentLimit {
			return nil, &ai.ResponseTooLargeError{Limit: decoder.argumentLimit}
		}
		return []ai.StreamEvent{{
			Type:             ai.StreamEventFunctionCallArgumentDelta,
			CallID:           callID,
			ArgumentFragment: event.Delta,
		}}, nil

	case "response.output_item.done":
		if event.Item == nil {
			return nil, nil
		}
		switch event.Item.Type {
		case "function_call":
			delete(decoder.callIDByItem, event.Item.ID)
			return []ai.StreamEvent{{
				Type:   ai.StreamEventFunctionCallDone,
				CallID: event.Item.CallID,
			}}, nil
		case "reasoning":
			// The encrypted reasoning payload only appears on the done
			// item; attach it so replay can carry it back.
			if event.Item.EncryptedContent != "" {
				return []ai.StreamEvent{{
					Type:             ai.StreamEventReasoningDelta,
					ThoughtSignature: event.Item.EncryptedContent,
				}}, nil
			}
		}
		return nil, nil

	case "response.completed":
		decoder.completedSent = true
		var events []ai.StreamEvent
		if event.Response != nil && event.Response.Usage != nil {
			events = append(events, ai.StreamEvent{Type: ai.StreamEventUsage, Usage: event.Response.Usage.toUsage()})
		}
		return append(events, ai.StreamEvent{Type: ai.StreamEventCompleted, FinishReason: "completed"}), nil

	case "response.failed", "error":
		message := "response failed"
		if event.Error != nil && event.Error.Message != "" {
			message = event.Error.Message
		} else if event.Response != nil && event.Response.Status != "" {
			message = "response status " + event.Response.Status
		}
		return nil, ai.NewProtocolError("upstream reported failure: %s", message)
	}

	// Ignore granular lifecycle events (response.created,
	// response.in_progress, content_part added/done, *.done text events).
	return nil, nil
}

// StreamResponses performs one streaming responses turn. The returned
// EventStream yields normalized events as named SSE events arrive.
func StreamResponses(ctx context.Context, config ai.ProviderConfig, family ai.ModelFamily, prompt ai.Prompt, opts Options) (*ai.EventStream, error) {
	request, err := buildResponsesRequest(prompt, family)
	if err != nil {
		return nil, err
	}
	request.Stream = utils.Ptr(true)

	if span := observability.SpanFromContext(ctx); span != nil {
		span.SetAttributes(
			observability.String(observability.AttrLLMWireAPI, string(ai.WireResponses)),
			observability.String(observability.AttrLLMModel, prompt.Model),
		)
	}

	httpResponse, err := utils.DoPostStream(ctx, opts.HTTPClient, config.ResponsesURL(), opts.APIKey, request, opts.headers()...)
	if err != nil {
		return nil, err
	}

	scanner := utils.NewSSEScanner(httpResponse.Body)
	decoder := newResponsesStreamDecoder(opts.argumentLimit())

	iteratorFunc := func(yield func(ai.StreamEvent, error) bool) {
		defer utils.CloseWithLog(httpResponse.Body)

		for {
			if ctx.Err() != nil {
				yield(ai.StreamEvent{Type: ai.StreamEventFailed, Error: ctx.Err().Error()}, ctx.Err())
				return
			}

			payload, sseErr := scanner.Next()
			if sseErr == io.EOF {
				if !decoder.completedSent {
					err := ai.NewProtocolError("responses stream ended without response.completed")
					yield(ai.StreamEvent{Type: ai.StreamEventFailed, Error: err.Error()}, err)
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
				err := ai.NewProtocolError("reading responses stream: %v", sseErr)
				yield(ai.StreamEvent{Type: ai.StreamEventFailed, Error: err.Error()}, err)
				return
			}

			var event responsesStreamEvent
			if err := json.Unmarshal([]byte(payload.Data), &event); err != nil {
				protocolErr := ai.NewProtocolError("malformed responses event: %v", err)
				yield(ai.StreamEvent{Type: ai.StreamEventFailed, Error: protocolErr.Error()}, protocolErr)
				return
			}

			events, decodeErr := decoder.apply(&event)
			for _, streamEvent := range events {
				if !yield(streamEvent, nil) {
					return
				}
			}
			if decodeErr != nil {
				yield(ai.StreamEvent{Type: ai.StreamEventFailed, Error: decodeErr.Error()}, decodeErr)
				return
			}
			if decoder.completedSent {
				return
			}
		}
	}

	return ai.NewEventStream(iteratorFunc), nil
}
