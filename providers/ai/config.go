package ai

import (
	"net/url"
	"os"
	"strings"
)

// WireAPI names the request/response schema a provider endpoint expects.
type WireAPI string

const (
	// WireChatCompletions is the OpenAI-compatible /chat/completions schema.
	WireChatCompletions WireAPI = "chat"
	// WireResponses is the OpenAI /responses input-item schema.
	WireResponses WireAPI = "responses"
	// WireGemini is Google's native generateContent schema.
	WireGemini WireAPI = "gemini"
)

// ParseWireAPI validates a wire API string from configuration.
func ParseWireAPI(value string) (WireAPI, error) {
	switch WireAPI(value) {
	case WireChatCompletions, WireResponses, WireGemini:
		return WireAPI(value), nil
	}
	return "", NewConfigError("unknown wire_api %q (want chat, responses or gemini)", value)
}

// ProviderConfig holds the connection facts for one provider endpoint. It is
// loaded once per session and treated as immutable.
type ProviderConfig struct {
	Name             string            `json:"name"`
	BaseURL          string            `json:"base_url"`
	CredentialEnvKey string            `json:"credential_env_key"`
	WireAPI          WireAPI           `json:"wire_api"`
	Streaming        bool              `json:"streaming"`
	QueryParams      map[string]string `json:"query_params,omitempty"`
}

// Credential reads the bearer credential from the environment variable named
// by CredentialEnvKey. Its absence is an AuthError, raised before any network
// call.
func (config ProviderConfig) Credential() (string, error) {
	credential := os.Getenv(config.CredentialEnvKey)
	if credential == "" {
		return "", &AuthError{EnvKey: config.CredentialEnvKey}
	}
	return credential, nil
}

// ChatCompletionsURL returns the endpoint for the chat completions wire API.
func (config ProviderConfig) ChatCompletionsURL() string {
	return config.appendQuery(strings.TrimSuffix(config.BaseURL, "/") + "/chat/completions")
}

// ResponsesURL returns the endpoint for the responses wire API.
func (config ProviderConfig) ResponsesURL() string {
	return config.appendQuery(strings.TrimSuffix(config.BaseURL, "/") + "/responses")
}

// GeminiURLForModel returns the generateContent endpoint for the given
// model. Gemini puts the model in the URL path; the streaming variant adds
// alt=sse so events arrive as SSE rather than a JSON array.
func (config ProviderConfig) GeminiURLForModel(model string, streaming bool) string {
	endpoint := strings.TrimSuffix(config.BaseURL, "/") + "/models/" + model
	if streaming {
		return config.appendQuery(endpoint + ":streamGenerateContent?alt=sse")
	}
	return config.appendQuery(endpoint + ":generateContent")
}

// appendQuery attaches the configured extra query parameters, preserving any
// parameters already present in the endpoint.
func (config ProviderConfig) appendQuery(endpoint string) string {
	if len(config.QueryParams) == 0 {
		return endpoint
	}
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return endpoint
	}
	query := parsed.Query()
	for key, value := range config.QueryParams {
		query.Set(key, value)
	}
	parsed.RawQuery = query.Encode()
	return parsed.String()
}
