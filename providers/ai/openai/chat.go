package openai

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/ce-data-e/opencodex/core/parse"
	"github.com/ce-data-e/opencodex/internal/jsonschema"
	"github.com/ce-data-e/opencodex/internal/utils"
	"github.com/ce-data-e/opencodex/providers/ai"
)

/*
	CHAT COMPLETIONS API - INPUT
*/

// chatCompletionRequest represents the /chat/completions request format
type chatCompletionRequest struct {
	Model             string         `json:"model"`
	Messages          []chatMessage  `json:"messages"`
	Stream            *bool          `json:"stream,omitempty"`
	StreamOptions     *streamOptions `json:"stream_options,omitempty"`
	Tools             []chatTool     `json:"tools,omitempty"`
	ToolChoice        any            `json:"tool_choice,omitempty"` // "auto", "none", "required", or object
	ParallelToolCalls *bool          `json:"parallel_tool_calls,omitempty"`
}

type chatMessage struct {
	Role       string         `json:"role"` // system, user, assistant, tool
	Content    string         `json:"content,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"` // For role=tool
	ToolCalls  []chatToolCall `json:"tool_calls,omitempty"`   // For role=assistant
}

type chatTool struct {
	Type     string       `json:"type"` // "function"
	Function chatFunction `json:"function"`
}

type chatFunction struct {
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Parameters  *jsonschema.Schema `json:"parameters,omitempty"`
}

type chatToolCall struct {
	ID           string               `json:"id"`
	Type         string               `json:"type"` // "function"
	Function     chatToolCallFunction `json:"function"`
	ExtraContent *chatExtraContent    `json:"extra_content,omitempty"`
}

type chatToolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // JSON string
}

// chatExtraContent is the vendor extension envelope on a tool call. Gateways
// routing Google thinking models through the chat schema carry the thought
// signature here.
type chatExtraContent struct {
	Google *chatGoogleExtra `json:"google,omitempty"`
}

type chatGoogleExtra struct {
	ThoughtSignature string `json:"thought_signature,omitempty"`
}

// streamOptions configures streaming behavior in the request.
type streamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

/*
	CHAT COMPLETIONS API - OUTPUT
*/

type chatCompletionResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"` // "chat.completion"
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   *chatUsage   `json:"usage,omitempty"`
}

type chatChoice struct {
	Index        int                 `json:"index"`
	Message      chatResponseMessage `json:"message"`
	FinishReason string              `json:"finish_reason"` // "stop", "length", "tool_calls", "content_filter"
}

type chatResponseMessage struct {
	Role      string         `json:"role"` // "assistant"
	Content   string         `json:"content,omitempty"`
	Reasoning string         `json:"reasoning,omitempty"`
	ToolCalls []chatToolCall `json:"tool_calls,omitempty"`
	Refusal   string         `json:"refusal,omitempty"`
}

type chatUsage struct {
	PromptTokens            int                      `json:"prompt_tokens"`
	CompletionTokens        int                      `json:"completion_tokens"`
	TotalTokens             int                      `json:"total_tokens"`
	CompletionTokensDetails *chatTokensDetails       `json:"completion_tokens_details,omitempty"`
	PromptTokensDetails     *chatPromptTokensDetails `json:"prompt_tokens_details,omitempty"`
}

type chatTokensDetails struct {
	ReasoningTokens int `json:"reasoning_tokens,omitempty"`
}

type chatPromptTokensDetails struct {
	CachedTokens int `json:"cached_tokens,omitempty"`
}

func (u *chatUsage) toUsage() *ai.Usage {
	usage := &ai.Usage{
		InputTokens:  u.PromptTokens,
		OutputTokens: u.CompletionTokens,
		TotalTokens:  u.TotalTokens,
	}
	if u.CompletionTokensDetails != nil {
		usage.ReasoningTokens = u.CompletionTokensDetails.ReasoningTokens
	}
	if u.PromptTokensDetails != nil {
		usage.CachedTokens = u.PromptTokensDetails.CachedTokens
	}
	return usage
}

/*
	REQUEST BUILDING
*/

// buildChatRequest maps a prompt onto the chat completions wire format. It
// is pure: no I/O, no mutation of the prompt.
//
// Item mapping: Message items become role/content pairs; FunctionCall items
// become assistant messages carrying tool_calls (with the thought signature
// in extra_content when present); FunctionCallOutput items become tool-role
// messages keyed by tool_call_id. Reasoning items are not replayable on this
// wire format and are skipped.
func buildChatRequest(prompt ai.Prompt, family ai.ModelFamily) (*chatCompletionRequest, error) {
	if err := validateSignatureReplay(prompt, family); err != nil {
		return nil, err
	}

	request := &chatCompletionRequest{Model: prompt.Model}

	if instructions := family.Instructions(prompt.Instructions); instructions != "" {
		request.Messages = append(request.Messages, chatMessage{
			Role:    "system",
			Content: instructions,
		})
	}

	for _, item := range prompt.Items {
		switch item.Type {
		case ai.ItemTypeMessage:
			request.Messages = append(request.Messages, chatMessage{
				Role:    string(item.Message.Role),
				Content: item.Message.Content,
			})

		case ai.ItemTypeFunctionCall:
			call := item.FunctionCall
			toolCall := chatToolCall{
				ID:   call.CallID,
				Type: "function",
				Function: chatToolCallFunction{
					Name:      call.Name,
					Arguments: call.Arguments,
				},
			}
			if call.ThoughtSignature != "" {
				toolCall.ExtraContent = &chatExtraContent{
					Google: &chatGoogleExtra{ThoughtSignature: call.ThoughtSignature},
				}
			}
			request.Messages = append(request.Messages, chatMessage{
				Role:      "assistant",
				ToolCalls: []chatToolCall{toolCall},
			})

		case ai.ItemTypeFunctionCallOutput:
			output := item.FunctionCallOutput
			request.Messages = append(request.Messages, chatMessage{
				Role:       "tool",
				ToolCallID: output.CallID,
				Content:    output.Output,
			})

		case ai.ItemTypeReasoning:
			// Not replayable through the chat schema.
		}
	}

	tools := family.Tools(prompt.Tools)
	for _, tool := range tools {
		request.Tools = append(request.Tools, chatTool{
			Type: "function",
			Function: chatFunction{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			},
		})
	}
	if len(request.Tools) > 0 {
		request.ParallelToolCalls = utils.Ptr(family.SupportsParallelToolCalls)
	}

	return request, nil
}

// validateSignatureReplay enforces the family's thought-signature policy:
// when signatures are required, the most recent replayed function call must
// carry one.
func validateSignatureReplay(prompt ai.Prompt, family ai.ModelFamily) error {
	if family.ThoughtSignatures != ai.SignaturesRequired {
		return nil
	}
	if lastCall := ai.LastFunctionCall(prompt.Items); lastCall != nil && lastCall.ThoughtSignature == "" {
		return ai.NewProtocolError(
			"model family %q requires a thought signature on the replayed function call %q, but none is present",
			family.ID, lastCall.CallID)
	}
	return nil
}

/*
	SYNCHRONOUS COMPLETION
*/

// CompleteChatCompletions performs one non-streaming chat completions turn
// and returns the accumulated result.
func CompleteChatCompletions(ctx context.Context, config ai.ProviderConfig, family ai.ModelFamily, prompt ai.Prompt, opts Options) (*ai.Completion, error) {
	request, err := buildChatRequest(prompt, family)
	if err != nil {
		return nil, err
	}

	response, err := utils.DoPostSync[chatCompletionResponse](ctx, opts.HTTPClient, config.ChatCompletionsURL(), opts.APIKey, request, opts.headers()...)
	if err != nil {
		return nil, err
	}

	if len(response.Choices) == 0 {
		return nil, ai.NewProtocolError("chat completion response carries no choices")
	}

	choice := response.Choices[0]
	completion := &ai.Completion{FinishReason: choice.FinishReason}

	if choice.Message.Reasoning != "" {
		completion.Items = append(completion.Items, ai.NewReasoning(choice.Message.Reasoning))
	}
	if choice.Message.Content != "" {
		if call := salvageToolCallFromContent(choice.Message.Content, prompt.Tools); call != nil && len(choice.Message.ToolCalls) == 0 {
			completion.Items = append(completion.Items, ai.Item{Type: ai.ItemTypeFunctionCall, FunctionCall: call})
		} else {
			completion.Items = append(completion.Items, ai.NewMessage(ai.RoleAssistant, choice.Message.Content))
		}
	}
	for _, toolCall := range choice.Message.ToolCalls {
		item := ai.FunctionCallItem{
			CallID:    toolCall.ID,
			Name:      toolCall.Function.Name,
			Arguments: toolCall.Function.Arguments,
		}
		if toolCall.ExtraContent != nil && toolCall.ExtraContent.Google != nil {
			item.ThoughtSignature = toolCall.ExtraContent.Google.ThoughtSignature
		}
		completion.Items = append(completion.Items, ai.Item{Type: ai.ItemTypeFunctionCall, FunctionCall: &item})
	}

	if response.Usage != nil {
		completion.Usage = response.Usage.toUsage()
	}

	return completion, nil
}

// contentToolCall is the shape some gateways emit when a model writes its
// tool invocation into content instead of tool_calls.
type contentToolCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// salvageToolCallFromContent recovers a tool call that the model emitted as
// JSON text in the content field. The salvage only triggers when the parsed
// name matches a declared tool, so ordinary JSON answers pass through
// untouched.
func salvageToolCallFromContent(content string, tools []ai.ToolDescription) *ai.FunctionCallItem {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "{") && !strings.HasPrefix(trimmed, "```") {
		return nil
	}

	parsed, err := parse.ParseStringAs[contentToolCall](content)
	if err != nil || parsed.Name == "" {
		return nil
	}

	declared := false
	for _, tool := range tools {
		if tool.Name == parsed.Name {
			declared = true
			break
		}
	}
	if !declared {
		return nil
	}

	arguments, err := json.Marshal(parsed.Arguments)
	if err != nil {
		return nil
	}

	return &ai.FunctionCallItem{
		CallID:    "salvaged_" + parsed.Name,
		Name:      parsed.Name,
		Arguments: string(arguments),
	}
}
