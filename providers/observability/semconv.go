package observability

// Semantic conventions for observability attributes.
// These constants define standard attribute names to ensure consistency
// across components.

// --- LLM Attributes ---

const (
	// AttrLLMProvider is the configured provider name (e.g. "openai", "gemini")
	AttrLLMProvider = "llm.provider"

	// AttrLLMModel is the model identifier (e.g. "gpt-5", "gemini-2.5-pro")
	AttrLLMModel = "llm.model"

	// AttrLLMEndpoint is the API endpoint URL
	AttrLLMEndpoint = "llm.endpoint"

	// AttrLLMWireAPI is the wire protocol in use ("chat", "responses", "gemini")
	AttrLLMWireAPI = "llm.wire_api"

	// AttrLLMRequestID is the client-generated request identifier
	AttrLLMRequestID = "llm.request.id"

	// AttrLLMFinishReason is the reason the generation finished
	AttrLLMFinishReason = "llm.finish_reason"
)

// --- Token Usage Attributes ---

const (
	// AttrLLMTokensInput is the number of input tokens
	AttrLLMTokensInput = "llm.tokens.input" // #nosec G101 -- Not a credential, token refers to LLM tokens

	// AttrLLMTokensOutput is the number of output tokens
	AttrLLMTokensOutput = "llm.tokens.output" // #nosec G101 -- Not a credential, token refers to LLM tokens

	// AttrLLMTokensTotal is the total number of tokens
	AttrLLMTokensTotal = "llm.tokens.total" // #nosec G101 -- Not a credential, token refers to LLM tokens
)

// --- HTTP Attributes ---

const (
	// AttrHTTPMethod is the HTTP method
	AttrHTTPMethod = "http.method"

	// AttrHTTPStatusCode is the HTTP response status code
	AttrHTTPStatusCode = "http.status_code"

	// AttrHTTPURL is the full request URL
	AttrHTTPURL = "http.url"

	// AttrHTTPRequestBodySize is the request body size in bytes
	AttrHTTPRequestBodySize = "http.request.body.size"

	// AttrHTTPResponseBodySize is the response body size in bytes
	AttrHTTPResponseBodySize = "http.response.body.size"

	// AttrHTTPRequestDuration is the time until the response headers arrived
	AttrHTTPRequestDuration = "http.request.duration"
)

// --- General Attributes ---

const (
	// AttrError is the error message
	AttrError = "error"

	// AttrErrorType is the error type/class
	AttrErrorType = "error.type"
)

// --- Span Names ---

const (
	// SpanLLMStream is the span name for streaming LLM requests
	SpanLLMStream = "llm.stream"

	// SpanLLMComplete is the span name for synchronous LLM requests
	SpanLLMComplete = "llm.complete"
)

// --- Event Names ---

const (
	// EventHTTPRequestError marks a connection-level request failure
	EventHTTPRequestError = "http.request.error"

	// EventHTTPResponseReceived marks a full response body read
	EventHTTPResponseReceived = "http.response.received"

	// EventHTTPStreamRequestPrepared marks a streaming request about to be sent
	EventHTTPStreamRequestPrepared = "http.stream.request_prepared"

	// EventHTTPStreamResponseStarted marks streaming response headers received
	EventHTTPStreamResponseStarted = "http.stream.response_started"

	// EventStreamCompleted marks the end of a decoded stream
	EventStreamCompleted = "llm.stream.completed"
)
