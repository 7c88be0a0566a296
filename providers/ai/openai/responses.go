package openai

import (
	"context"

	"github.com/ce-data-e/opencodex/internal/jsonschema"
	"github.com/ce-data-e/opencodex/internal/utils"
	"github.com/ce-data-e/opencodex/providers/ai"
)

/*
	RESPONSES API - INPUT
*/

// responsesRequest represents the /responses request format.
type responsesRequest struct {
	Model             string               `json:"model"`
	Instructions      string               `json:"instructions,omitempty"`
	Input             []responsesInputItem `json:"input"`
	Tools             []responsesTool      `json:"tools,omitempty"`
	ParallelToolCalls *bool                `json:"parallel_tool_calls,omitempty"`
	Include           []string             `json:"include,omitempty"`
	Stream            *bool                `json:"stream,omitempty"`
	Store             bool                 `json:"store"`
}

// responsesInputItem is the tagged input-item union of the responses wire
// format. The populated fields depend on Type.
type responsesInputItem struct {
	Type             string             `json:"type"`
	Role             string             `json:"role,omitempty"`              // type=message
	Content          []responsesContent `json:"content,omitempty"`           // type=message
	CallID           string             `json:"call_id,omitempty"`           // type=function_call / function_call_output
	Name             string             `json:"name,omitempty"`              // type=function_call
	Arguments        string             `json:"arguments,omitempty"`         // type=function_call
	Output           string             `json:"output,omitempty"`            // type=function_call_output
	Summary          []responsesSummary `json:"summary,omitempty"`           // type=reasoning
	EncryptedContent string             `json:"encrypted_content,omitempty"` // type=reasoning
}

type responsesContent struct {
	Type string `json:"type"` // "input_text" or "output_text"
	Text string `json:"text"`
}

type responsesSummary struct {
	Type string `json:"type"` // "summary_text"
	Text string `json:"text"`
}

// responsesTool declares a callable tool. Freeform tools use type "custom"
// with a text format; everything else is a plain function with a JSON
// schema.
type responsesTool struct {
	Type        string               `json:"type"` // "function" or "custom"
	Name        string               `json:"name"`
	Description string               `json:"description,omitempty"`
	Parameters  *jsonschema.Schema   `json:"parameters,omitempty"`
	Format      *responsesToolFormat `json:"format,omitempty"`
}

type responsesToolFormat struct {
	Type string `json:"type"` // "text"
}

/*
	RESPONSES API - OUTPUT
*/

type responsesResponse struct {
	ID     string                `json:"id"`
	Status string                `json:"status"` // "completed", "incomplete", "failed"
	Output []responsesOutputItem `json:"output"`
	Usage  *responsesUsage       `json:"usage,omitempty"`
}

type responsesOutputItem struct {
	Type             string             `json:"type"`
	ID               string             `json:"id,omitempty"`
	Role             string             `json:"role,omitempty"`
	Content          []responsesContent `json:"content,omitempty"`
	CallID           string             `json:"call_id,omitempty"`
	Name             string             `json:"name,omitempty"`
	Arguments        string             `json:"arguments,omitempty"`
	Summary          []responsesSummary `json:"summary,omitempty"`
	EncryptedContent string             `json:"encrypted_content,omitempty"`
}

type responsesUsage struct {
	InputTokens         int `json:"input_tokens"`
	OutputTokens        int `json:"output_tokens"`
	TotalTokens         int `json:"total_tokens"`
	OutputTokensDetails *struct {
		ReasoningTokens int `json:"reasoning_tokens"`
	} `json:"output_tokens_details,omitempty"`
	InputTokensDetails *struct {
		CachedTokens int `json:"cached_tokens"`
	} `json:"input_tokens_details,omitempty"`
}

func (u *responsesUsage) toUsage() *ai.Usage {
	usage := &ai.Usage{
		InputTokens:  u.InputTokens,
		OutputTokens: u.OutputTokens,
		TotalTokens:  u.TotalTokens,
	}
	if u.OutputTokensDetails != nil {
		usage.ReasoningTokens = u.OutputTokensDetails.ReasoningTokens
	}
	if u.InputTokensDetails != nil {
		usage.CachedTokens = u.InputTokensDetails.CachedTokens
	}
	return usage
}

/*
	REQUEST BUILDING
*/

// buildResponsesRequest maps a prompt onto the responses wire format. The
// mapping mirrors buildChatRequest in axes, differing only in envelope:
// items become typed input items rather than role messages, and reasoning
// items are replayable via encrypted_content.
func buildResponsesRequest(prompt ai.Prompt, family ai.ModelFamily) (*responsesRequest, error) {
	if err := validateSignatureReplay(prompt, family); err != nil {
		return nil, err
	}

	request := &responsesRequest{
		Model:        prompt.Model,
		Instructions: family.Instructions(prompt.Instructions),
		Include:      []string{"reasoning.encrypted_content"},
	}

	for _, item := range prompt.Items {
		switch item.Type {
		case ai.ItemTypeMessage:
			contentType := "input_text"
			if item.Message.Role == ai.RoleAssistant {
				contentType = "output_text"
			}
			request.Input = append(request.Input, responsesInputItem{
				Type:    "message",
				Role:    string(item.Message.Role),
				Content: []responsesContent{{Type: contentType, Text: item.Message.Content}},
			})

		case ai.ItemTypeFunctionCall:
			call := item.FunctionCall
			request.Input = append(request.Input, responsesInputItem{
				Type:      "function_call",
				CallID:    call.CallID,
				Name:      call.Name,
				Arguments: call.Arguments,
			})

		case ai.ItemTypeFunctionCallOutput:
			output := item.FunctionCallOutput
			request.Input = append(request.Input, responsesInputItem{
				Type:   "function_call_output",
				CallID: output.CallID,
				Output: output.Output,
			})

		case ai.ItemTypeReasoning:
			reasoning := item.Reasoning
			inputItem := responsesInputItem{
				Type:             "reasoning",
				EncryptedContent: reasoning.ThoughtSignature,
			}
			if reasoning.Content != "" {
				inputItem.Summary = []responsesSummary{{Type: "summary_text", Text: reasoning.Content}}
			}
			request.Input = append(request.Input, inputItem)
		}
	}

	tools := family.Tools(prompt.Tools)
	for _, tool := range tools {
		if tool.Freeform {
			request.Tools = append(request.Tools, responsesTool{
				Type:        "custom",
				Name:        tool.Name,
				Description: tool.Description,
				Format:      &responsesToolFormat{Type: "text"},
			})
			continue
		}
		request.Tools = append(request.Tools, responsesTool{
			Type:        "function",
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  tool.Parameters,
		})
	}
	if len(request.Tools) > 0 {
		request.ParallelToolCalls = utils.Ptr(family.SupportsParallelToolCalls)
	}

	return request, nil
}

/*
	SYNCHRONOUS COMPLETION
*/

// CompleteResponses performs one non-streaming responses turn and returns
// the accumulated result.
func CompleteResponses(ctx context.Context, config ai.ProviderConfig, family ai.ModelFamily, prompt ai.Prompt, opts Options) (*ai.Completion, error) {
	request, err := buildResponsesRequest(prompt, family)
	if err != nil {
		return nil, err
	}

	response, err := utils.DoPostSync[responsesResponse](ctx, opts.HTTPClient, config.ResponsesURL(), opts.APIKey, request, opts.headers()...)
	if err != nil {
		return nil, err
	}

	completion := &ai.Completion{FinishReason: response.Status}
	for _, outputItem := range response.Output {
		if item, ok := outputItemToItem(outputItem); ok {
			completion.Items = append(completion.Items, item)
		}
	}
	if response.Usage != nil {
		completion.Usage = response.Usage.toUsage()
	}

	return completion, nil
}

// outputItemToItem converts one responses output item to a conversation
// item. Unknown item types are skipped, not failed; providers add types
// over time.
func outputItemToItem(outputItem responsesOutputItem) (ai.Item, bool) {
	switch outputItem.Type {
	case "message":
		var text string
		for _, content := range outputItem.Content {
			if content.Type == "output_text" {
				text += content.Text
			}
		}
		if text == "" {
			return ai.Item{}, false
		}
		return ai.NewMessage(ai.RoleAssistant, text), true

	case "function_call":
		return ai.Item{Type: ai.ItemTypeFunctionCall, FunctionCall: &ai.FunctionCallItem{
			CallID:    outputItem.CallID,
			Name:      outputItem.Name,
			Arguments: outputItem.Arguments,
		}}, true

	case "reasoning":
		var summary string
		for _, part := range outputItem.Summary {
			summary += part.Text
		}
		if summary == "" && outputItem.EncryptedContent == "" {
			return ai.Item{}, false
		}
		return ai.Item{Type: ai.ItemTypeReasoning, Reasoning: &ai.ReasoningItem{
			Content:          summary,
			ThoughtSignature: outputItem.EncryptedContent,
		}}, true
	}

	return ai.Item{}, false
}
