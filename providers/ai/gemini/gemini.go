// Package gemini implements Google's native generateContent wire API: a
// pure request builder mapping conversation items onto contents/parts, and
// an incremental SSE decoder for the streamGenerateContent variant.
//
// Authentication uses the x-goog-api-key header rather than a bearer token.
package gemini

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/ce-data-e/opencodex/internal/utils"
	"github.com/ce-data-e/opencodex/providers/ai"
)

// Options carries per-request transport settings resolved by the caller.
type Options struct {
	HTTPClient       *http.Client
	APIKey           string
	RequestID        string
	MaxArgumentBytes int
}

// headers builds the per-request headers. Gemini authenticates with
// x-goog-api-key instead of a bearer token.
func (opts Options) headers() []utils.HeaderOption {
	headers := []utils.HeaderOption{{Key: "x-goog-api-key", Value: opts.APIKey}}
	if opts.RequestID != "" {
		headers = append(headers, utils.HeaderOption{Key: "X-Request-Id", Value: opts.RequestID})
	}
	return headers
}

// buildGenerateContentRequest maps a prompt onto the generateContent wire
// format. It is pure: no I/O, no mutation of the prompt.
//
// Item mapping: Message items become user/model contents (system and tool
// roles fold into user, since Gemini only knows those two); FunctionCall
// items become model-role functionCall parts with the thought signature as
// a sibling field; FunctionCallOutput items become user-role
// functionResponse parts keyed by function name, which is resolved from the
// originating call via call_id. Reasoning items are not replayable here.
func buildGenerateContentRequest(prompt ai.Prompt, family ai.ModelFamily) (*generateContentRequest, error) {
	if family.ThoughtSignatures == ai.SignaturesRequired {
		if lastCall := ai.LastFunctionCall(prompt.Items); lastCall != nil && lastCall.ThoughtSignature == "" {
			return nil, ai.NewProtocolError(
				"model family %q requires a thought signature on the replayed function call %q, but none is present",
				family.ID, lastCall.CallID)
		}
	}

	request := &generateContentRequest{}

	if instructions := family.Instructions(prompt.Instructions); instructions != "" {
		request.SystemInstruction = &systemInstruction{Parts: []part{{Text: instructions}}}
	}

	// functionResponse parts are keyed by name; resolve names from the
	// calls seen earlier in the conversation.
	nameByCallID := make(map[string]string)
	for _, item := range prompt.Items {
		if item.Type == ai.ItemTypeFunctionCall {
			nameByCallID[item.FunctionCall.CallID] = item.FunctionCall.Name
		}
	}

	for _, item := range prompt.Items {
		switch item.Type {
		case ai.ItemTypeMessage:
			role := "user"
			if item.Message.Role == ai.RoleAssistant {
				role = "model"
			}
			request.Contents = append(request.Contents, content{
				Role:  role,
				Parts: []part{{Text: item.Message.Content}},
			})

		case ai.ItemTypeFunctionCall:
			call := item.FunctionCall
			args, err := argumentsToRaw(call.Arguments)
			if err != nil {
				return nil, ai.NewProtocolError("function call %q carries non-JSON arguments: %v", call.CallID, err)
			}
			request.Contents = append(request.Contents, content{
				Role: "model",
				Parts: []part{{
					ThoughtSignature: call.ThoughtSignature,
					FunctionCall: &functionCall{
						Name: call.Name,
						Args: args,
					},
				}},
			})

		case ai.ItemTypeFunctionCallOutput:
			output := item.FunctionCallOutput
			name := nameByCallID[output.CallID]
			if name == "" {
				return nil, ai.NewProtocolError("function call output %q has no matching function call", output.CallID)
			}
			response, err := json.Marshal(map[string]any{"output": output.Output, "success": output.Success})
			if err != nil {
				return nil, err
			}
			request.Contents = append(request.Contents, content{
				Role: "user",
				Parts: []part{{
					FunctionResponse: &functionResponse{
						Name:     name,
						Response: response,
					},
				}},
			})

		case ai.ItemTypeReasoning:
			// Reasoning replays only through its signature on the
			// associated function call.
		}
	}

	tools := family.Tools(prompt.Tools)
	if len(tools) > 0 {
		declarations := make([]functionDeclaration, 0, len(tools))
		for _, toolDesc := range tools {
			declarations = append(declarations, functionDeclaration{
				Name:        toolDesc.Name,
				Description: toolDesc.Description,
				Parameters:  toolDesc.Parameters,
			})
		}
		request.Tools = []tool{{FunctionDeclarations: declarations}}
	}

	return request, nil
}

// argumentsToRaw validates that the accumulated argument string is a JSON
// value and passes it through unchanged. Empty arguments become an empty
// object, which the API requires over null.
func argumentsToRaw(arguments string) (json.RawMessage, error) {
	if arguments == "" {
		return json.RawMessage(`{}`), nil
	}
	if !json.Valid([]byte(arguments)) {
		return nil, ai.NewProtocolError("invalid JSON: %s", utils.TruncateString(arguments, 200))
	}
	return json.RawMessage(arguments), nil
}

// GenerateContent performs one non-streaming generateContent turn and
// returns the accumulated result.
func GenerateContent(ctx context.Context, config ai.ProviderConfig, family ai.ModelFamily, prompt ai.Prompt, opts Options) (*ai.Completion, error) {
	request, err := buildGenerateContentRequest(prompt, family)
	if err != nil {
		return nil, err
	}

	endpoint := config.GeminiURLForModel(prompt.Model, false)
	response, err := utils.DoPostSync[generateContentResponse](ctx, opts.HTTPClient, endpoint, "", request, opts.headers()...)
	if err != nil {
		return nil, err
	}

	decoder := newStreamDecoder(argumentLimit(opts))
	events, decodeErr := decoder.apply(response)
	if decodeErr != nil {
		return nil, decodeErr
	}
	events = append(events, decoder.flush()...)

	accumulated, err := replayEvents(events)
	if err != nil {
		return nil, err
	}
	return accumulated, nil
}

// replayEvents folds already-decoded events into a Completion via the
// shared accumulator.
func replayEvents(events []ai.StreamEvent) (*ai.Completion, error) {
	stream := ai.NewEventStream(func(yield func(ai.StreamEvent, error) bool) {
		for _, event := range events {
			if !yield(event, nil) {
				return
			}
		}
	})
	return stream.Collect()
}
