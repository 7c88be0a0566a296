package gemini

import "encoding/json"

/*
	GEMINI API - REQUEST TYPES
*/

// generateContentRequest represents the request to the generateContent
// endpoint (streaming and non-streaming share the shape).
type generateContentRequest struct {
	Contents          []content          `json:"contents"`
	SystemInstruction *systemInstruction `json:"systemInstruction,omitempty"`
	Tools             []tool             `json:"tools,omitempty"`
}

// systemInstruction carries the system prompt as parts.
type systemInstruction struct {
	Parts []part `json:"parts"`
}

// content is one turn of the conversation: a role plus its parts.
type content struct {
	Role  string `json:"role,omitempty"` // "user" or "model"
	Parts []part `json:"parts"`
}

// part is a content part. ThoughtSignature is the opaque replay token; on
// requests it rides as a sibling of functionCall, and responses may also
// surface it embedded inside the functionCall object depending on the
// serving path, so both spots are modeled.
type part struct {
	Text             string            `json:"text,omitempty"`
	Thought          bool              `json:"thought,omitempty"` // reasoning summary part
	ThoughtSignature string            `json:"thoughtSignature,omitempty"`
	FunctionCall     *functionCall     `json:"functionCall,omitempty"`
	FunctionResponse *functionResponse `json:"functionResponse,omitempty"`
}

// functionCall is a model-emitted tool invocation.
type functionCall struct {
	Name             string          `json:"name"`
	Args             json.RawMessage `json:"args,omitempty"`
	ThoughtSignature string          `json:"thoughtSignature,omitempty"`
}

// functionResponse replays a tool result. Gemini keys results by function
// name, not call ID.
type functionResponse struct {
	Name     string          `json:"name"`
	Response json.RawMessage `json:"response"`
}

// tool wraps function declarations.
type tool struct {
	FunctionDeclarations []functionDeclaration `json:"functionDeclarations,omitempty"`
}

// functionDeclaration declares one callable function.
type functionDeclaration struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Parameters  any    `json:"parameters,omitempty"`
}

/*
	GEMINI API - RESPONSE TYPES
*/

// generateContentResponse is the response envelope. In streaming mode each
// SSE data payload is one complete instance of this shape, not a fragment.
type generateContentResponse struct {
	Candidates    []candidate    `json:"candidates,omitempty"`
	UsageMetadata *usageMetadata `json:"usageMetadata,omitempty"`
	ModelVersion  string         `json:"modelVersion,omitempty"`
}

// candidate is one response candidate; only the first is consumed.
type candidate struct {
	Content      *content `json:"content,omitempty"`
	FinishReason string   `json:"finishReason,omitempty"` // "STOP", "MAX_TOKENS", "SAFETY", ...
	Index        int      `json:"index,omitempty"`
}

// usageMetadata reports token usage.
type usageMetadata struct {
	PromptTokenCount        int `json:"promptTokenCount,omitempty"`
	CandidatesTokenCount    int `json:"candidatesTokenCount,omitempty"`
	TotalTokenCount         int `json:"totalTokenCount,omitempty"`
	ThoughtsTokenCount      int `json:"thoughtsTokenCount,omitempty"`
	CachedContentTokenCount int `json:"cachedContentTokenCount,omitempty"`
}
