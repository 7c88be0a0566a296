package ai

import "github.com/ce-data-e/opencodex/internal/jsonschema"

// Prompt is the immutable snapshot of one turn's input: the target model,
// system instructions, the conversation so far, and the tools offered to the
// model. Builders must not mutate a Prompt.
type Prompt struct {
	Model        string            `json:"model"`
	Instructions string            `json:"instructions,omitempty"`
	Items        []Item            `json:"items"`
	Tools        []ToolDescription `json:"tools,omitempty"`
}

// ToolDescription declares one callable tool. Parameters is a JSON schema for
// the tool's argument object. Freeform marks grammar-style tools whose input
// is a raw string rather than a JSON object; wire APIs without a freeform
// tool concept fall back to the Parameters schema.
type ToolDescription struct {
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Parameters  *jsonschema.Schema `json:"parameters,omitempty"`
	Freeform    bool               `json:"freeform,omitempty"`
}

// Usage reports token consumption for one turn.
type Usage struct {
	InputTokens     int `json:"input_tokens,omitempty"`
	OutputTokens    int `json:"output_tokens,omitempty"`
	TotalTokens     int `json:"total_tokens,omitempty"`
	ReasoningTokens int `json:"reasoning_tokens,omitempty"`
	CachedTokens    int `json:"cached_tokens,omitempty"`
}
