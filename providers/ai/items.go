package ai

// MessageRole represents the role of a message; compatible with string
type MessageRole string

const (
	RoleSystem    MessageRole = "system"    // System instructions/configuration
	RoleUser      MessageRole = "user"      // End-user message
	RoleAssistant MessageRole = "assistant" // Model response
	RoleTool      MessageRole = "tool"      // Tool/function output
)

// ItemType identifies the kind of payload carried by an Item.
type ItemType string

const (
	// ItemTypeMessage is a plain conversational message.
	ItemTypeMessage ItemType = "message"
	// ItemTypeFunctionCall is a model-emitted tool invocation request.
	ItemTypeFunctionCall ItemType = "function_call"
	// ItemTypeFunctionCallOutput is the result of executing a function call.
	ItemTypeFunctionCallOutput ItemType = "function_call_output"
	// ItemTypeReasoning is reasoning/thinking content emitted by the model.
	ItemTypeReasoning ItemType = "reasoning"
)

// Item is a single unit of conversation history. Each Item carries exactly
// one payload, identified by the Type field; the matching pointer field is
// non-nil and the rest are nil. Items are created by the orchestrator (user
// messages, tool results) or by a stream decoder (assistant output) and are
// never mutated after being finalized, only appended.
type Item struct {
	Type               ItemType                `json:"type"`
	Message            *MessageItem            `json:"message,omitempty"`
	FunctionCall       *FunctionCallItem       `json:"function_call,omitempty"`
	FunctionCallOutput *FunctionCallOutputItem `json:"function_call_output,omitempty"`
	Reasoning          *ReasoningItem          `json:"reasoning,omitempty"`
}

// MessageItem is a plain role/content message.
type MessageItem struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
}

// FunctionCallItem is a tool invocation requested by the model. CallID is
// unique within a turn. ThoughtSignature is an opaque provider-issued token;
// when present it must be echoed verbatim on the next request that replays
// this call, and is never inspected or decoded by this package.
type FunctionCallItem struct {
	CallID           string `json:"call_id"`
	Name             string `json:"name"`
	Arguments        string `json:"arguments"` // JSON string
	ThoughtSignature string `json:"thought_signature,omitempty"`
}

// FunctionCallOutputItem is the orchestrator-supplied result of a function
// call, keyed back to the originating call by CallID.
type FunctionCallOutputItem struct {
	CallID  string `json:"call_id"`
	Output  string `json:"output"`
	Success bool   `json:"success"`
}

// ReasoningItem is reasoning/thinking content produced by the model.
// ThoughtSignature, when present, follows the same opaque round-trip
// contract as on FunctionCallItem.
type ReasoningItem struct {
	Content          string `json:"content"`
	ThoughtSignature string `json:"thought_signature,omitempty"`
}

// NewMessage creates a message item.
func NewMessage(role MessageRole, content string) Item {
	return Item{Type: ItemTypeMessage, Message: &MessageItem{Role: role, Content: content}}
}

// NewFunctionCall creates a function call item.
func NewFunctionCall(callID, name, arguments string) Item {
	return Item{Type: ItemTypeFunctionCall, FunctionCall: &FunctionCallItem{
		CallID:    callID,
		Name:      name,
		Arguments: arguments,
	}}
}

// NewFunctionCallOutput creates a function call output item.
func NewFunctionCallOutput(callID, output string, success bool) Item {
	return Item{Type: ItemTypeFunctionCallOutput, FunctionCallOutput: &FunctionCallOutputItem{
		CallID:  callID,
		Output:  output,
		Success: success,
	}}
}

// NewReasoning creates a reasoning item.
func NewReasoning(content string) Item {
	return Item{Type: ItemTypeReasoning, Reasoning: &ReasoningItem{Content: content}}
}

// LastFunctionCall returns the most recent function call item in the slice,
// or nil when there is none. Builders use it to validate signature replay.
func LastFunctionCall(items []Item) *FunctionCallItem {
	for i := len(items) - 1; i >= 0; i-- {
		if items[i].Type == ItemTypeFunctionCall {
			return items[i].FunctionCall
		}
	}
	return nil
}
