package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/ce-data-e/opencodex/internal/utils"
	"github.com/ce-data-e/opencodex/providers/ai"
	"github.com/ce-data-e/opencodex/providers/observability"
)

// defaultMaxArgumentBytes bounds per-call accumulated function-call
// argument bytes when no explicit cap is configured.
const defaultMaxArgumentBytes = 1 * 1024 * 1024

func argumentLimit(opts Options) int {
	if opts.MaxArgumentBytes > 0 {
		return opts.MaxArgumentBytes
	}
	return defaultMaxArgumentBytes
}

// streamDecoder folds generateContent response payloads into normalized
// events. Each SSE data payload is a complete response object; one
// normalized event sequence is emitted per part. Gemini assigns no call
// IDs, so the decoder mints sequential ones.
type streamDecoder struct {
	callCounter   int
	argumentLimit int
	usage         *ai.Usage
	completed     bool
}

func newStreamDecoder(argumentLimit int) *streamDecoder {
	return &streamDecoder{argumentLimit: argumentLimit}
}

func (decoder *streamDecoder) apply(response *generateContentResponse) ([]ai.StreamEvent, error) {
	if response.UsageMetadata != nil {
		decoder.usage = &ai.Usage{
			InputTokens:     response.UsageMetadata.PromptTokenCount,
			OutputTokens:    response.UsageMetadata.CandidatesTokenCount,
			TotalTokens:     response.UsageMetadata.TotalTokenCount,
			ReasoningTokens: response.UsageMetadata.ThoughtsTokenCount,
			CachedTokens:    response.UsageMetadata.CachedContentTokenCount,
		}
	}

	if len(response.Candidates) == 0 {
		return nil, nil
	}
	primary := response.Candidates[0]

	var events []ai.StreamEvent
	if primary.Content != nil {
		for _, contentPart := range primary.Content.Parts {
			partEvents, err := decoder.applyPart(contentPart)
			if err != nil {
				return events, err
			}
			events = append(events, partEvents...)
		}
	}

	if primary.FinishReason != "" {
		finishEvents, err := decoder.finish(primary.FinishReason)
		if err != nil {
			return events, err
		}
		events = append(events, finishEvents...)
	}

	return events, nil
}

func (decoder *streamDecoder) applyPart(contentPart part) ([]ai.StreamEvent, error) {
	switch {
	case contentPart.FunctionCall != nil:
		call := contentPart.FunctionCall
		decoder.callCounter++
		callID := fmt.Sprintf("gemini_call_%d", decoder.callCounter)

		arguments := string(call.Args)
		if len(arguments) > decoder.argumentLimit {
			return nil, &ai.ResponseTooLargeError{Limit: decoder.argumentLimit}
		}

		// The signature may ride on the part or inside the functionCall
		// object depending on the serving path.
		signature := contentPart.ThoughtSignature
		if signature == "" {
			signature = call.ThoughtSignature
		}

		events := []ai.StreamEvent{{
			Type:   ai.StreamEventFunctionCallStart,
			CallID: callID,
			Name:   call.Name,
		}}
		if arguments != "" {
			events = append(events, ai.StreamEvent{
				Type:             ai.StreamEventFunctionCallArgumentDelta,
				CallID:           callID,
				ArgumentFragment: arguments,
			})
		}
		return append(events, ai.StreamEvent{
			Type:             ai.StreamEventFunctionCallDone,
			CallID:           callID,
			ThoughtSignature: signature,
		}), nil

	case contentPart.Thought:
		if contentPart.Text == "" && contentPart.ThoughtSignature == "" {
			return nil, nil
		}
		return []ai.StreamEvent{{
			Type:             ai.StreamEventReasoningDelta,
			Reasoning:        contentPart.Text,
			ThoughtSignature: contentPart.ThoughtSignature,
		}}, nil

	case contentPart.Text != "":
		return []ai.StreamEvent{{Type: ai.StreamEventTextDelta, Text: contentPart.Text}}, nil
	}

	return nil, nil
}

// finish classifies the candidate's finish reason. STOP ends the turn
// normally; MAX_TOKENS means the context window is exhausted; SAFETY and
// other terminal reasons surface as upstream failures.
func (decoder *streamDecoder) finish(finishReason string) ([]ai.StreamEvent, error) {
	switch finishReason {
	case "STOP":
		decoder.completed = true
		return decoder.terminalEvents(finishReason), nil
	case "MAX_TOKENS":
		return nil, &ai.UpstreamError{
			Code: ai.CodeContextWindowExceeded,
			Body: "model hit MAX_TOKENS before completing the turn",
		}
	default:
		return nil, &ai.UpstreamError{
			Code: "blocked",
			Body: fmt.Sprintf("generation stopped with finish reason %s", finishReason),
		}
	}
}

// flush closes a stream that ended without an explicit finish reason. A
// clean connection close after complete events is a normal end of turn.
func (decoder *streamDecoder) flush() []ai.StreamEvent {
	if decoder.completed {
		return nil
	}
	decoder.completed = true
	return decoder.terminalEvents("")
}

func (decoder *streamDecoder) terminalEvents(finishReason string) []ai.StreamEvent {
	var events []ai.StreamEvent
	if decoder.usage != nil {
		events = append(events, ai.StreamEvent{Type: ai.StreamEventUsage, Usage: decoder.usage})
	}
	return append(events, ai.StreamEvent{Type: ai.StreamEventCompleted, FinishReason: finishReason})
}

// StreamGenerateContent performs one streaming generateContent turn against
// the SSE variant of the endpoint. There is no end sentinel on this wire: a
// clean connection close ends the turn, while a close mid-event is a
// protocol error.
func StreamGenerateContent(ctx context.Context, config ai.ProviderConfig, family ai.ModelFamily, prompt ai.Prompt, opts Options) (*ai.EventStream, error) {
	request, err := buildGenerateContentRequest(prompt, family)
	if err != nil {
		return nil, err
	}

	if span := observability.SpanFromContext(ctx); span != nil {
		span.SetAttributes(
			observability.String(observability.AttrLLMWireAPI, string(ai.WireGemini)),
			observability.String(observability.AttrLLMModel, prompt.Model),
		)
	}

	endpoint := config.GeminiURLForModel(prompt.Model, true)
	httpResponse, err := utils.DoPostStream(ctx, opts.HTTPClient, endpoint, "", request, opts.headers()...)
	if err != nil {
		return nil, err
	}

	scanner := utils.NewSSEScanner(httpResponse.Body)
	decoder := newStreamDecoder(argumentLimit(opts))

	iteratorFunc := func(yield func(ai.StreamEvent, error) bool) {
		defer utils.CloseWithLog(httpResponse.Body)

		for {
			if ctx.Err() != nil {
				yield(ai.StreamEvent{Type: ai.StreamEventFailed, Error: ctx.Err().Error()}, ctx.Err())
				return
			}

			payload, sseErr := scanner.Next()
			if sseErr == io.EOF {
				for _, event := range decoder.flush() {
					if !yield(event, nil) {
						return
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
				var protocolErr error
				if errors.Is(sseErr, utils.ErrTruncatedEvent) {
					protocolErr = ai.NewProtocolError("connection closed mid-event")
				} else {
					protocolErr = ai.NewProtocolError("reading generateContent stream: %v", sseErr)
				}
				yield(ai.StreamEvent{Type: ai.StreamEventFailed, Error: protocolErr.Error()}, protocolErr)
				return
			}

			var response generateContentResponse
			if err := json.Unmarshal([]byte(payload.Data), &response); err != nil {
				protocolErr := ai.NewProtocolError("malformed generateContent payload: %v", err)
				yield(ai.StreamEvent{Type: ai.StreamEventFailed, Error: protocolErr.Error()}, protocolErr)
				return
			}

			events, decodeErr := decoder.apply(&response)
			for _, event := range events {
				if !yield(event, nil) {
					return
				}
			}
			if decodeErr != nil {
				yield(ai.StreamEvent{Type: ai.StreamEventFailed, Error: decodeErr.Error()}, decodeErr)
				return
			}
			if decoder.completed {
				return
			}
		}
	}

	return ai.NewEventStream(iteratorFunc), nil
}
