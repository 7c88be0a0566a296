// Package client hosts the dispatcher: the single entry point that routes a
// prompt to the builder/decoder pair matching the provider's wire API and
// exposes one normalized event stream per turn.
package client

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/ce-data-e/opencodex/providers/ai"
	"github.com/ce-data-e/opencodex/providers/ai/gemini"
	"github.com/ce-data-e/opencodex/providers/ai/openai"
	"github.com/ce-data-e/opencodex/providers/observability"
)

// Dispatcher routes turns to providers. It holds the immutable provider and
// family registries and is safe for concurrent use; each turn is one
// outstanding streaming request. The dispatcher classifies failures into
// typed errors and never retries; retry policy belongs to the caller.
type Dispatcher struct {
	providers     map[string]ai.ProviderConfig
	families      *ai.FamilyRegistry
	httpClient    *http.Client
	argumentLimit int
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithHTTPClient sets the HTTP client used for all provider requests.
func WithHTTPClient(client *http.Client) Option {
	return func(d *Dispatcher) { d.httpClient = client }
}

// WithArgumentLimit caps accumulated tool-call argument bytes per call.
func WithArgumentLimit(limit int) Option {
	return func(d *Dispatcher) { d.argumentLimit = limit }
}

// WithFamilies replaces the default model family registry.
func WithFamilies(families *ai.FamilyRegistry) Option {
	return func(d *Dispatcher) { d.families = families }
}

// NewDispatcher creates a dispatcher over the given provider configurations,
// keyed by provider name.
func NewDispatcher(providers map[string]ai.ProviderConfig, opts ...Option) *Dispatcher {
	dispatcher := &Dispatcher{
		providers: providers,
		families:  ai.DefaultFamilies(),
	}
	for _, opt := range opts {
		opt(dispatcher)
	}
	return dispatcher
}

// Stream runs one turn against the named provider and returns the
// normalized event stream. Configuration and credential problems are
// reported before any network activity. When the provider is configured
// without streaming, the turn runs synchronously and is replayed as a
// single-shot stream.
func (dispatcher *Dispatcher) Stream(ctx context.Context, providerName string, prompt ai.Prompt) (*ai.EventStream, error) {
	config, known := dispatcher.providers[providerName]
	if !known {
		return nil, ai.NewConfigError("unknown provider %q", providerName)
	}

	credential, err := config.Credential()
	if err != nil {
		return nil, err
	}

	family := dispatcher.families.Resolve(prompt.Model)
	turnID := uuid.NewString()

	if span := observability.SpanFromContext(ctx); span != nil {
		span.SetAttributes(
			observability.String(observability.AttrLLMProvider, config.Name),
			observability.String(observability.AttrLLMRequestID, turnID),
		)
	}
	if observer := observability.ObserverFromContext(ctx); observer != nil {
		observer.Debug(ctx, "dispatching turn",
			observability.String(observability.AttrLLMProvider, config.Name),
			observability.String(observability.AttrLLMModel, prompt.Model),
			observability.String(observability.AttrLLMWireAPI, string(config.WireAPI)),
			observability.String(observability.AttrLLMRequestID, turnID),
			observability.Bool("llm.streaming", config.Streaming),
		)
	}

	switch config.WireAPI {
	case ai.WireChatCompletions:
		opts := openai.Options{HTTPClient: dispatcher.httpClient, APIKey: credential, RequestID: turnID, MaxArgumentBytes: dispatcher.argumentLimit}
		if !config.Streaming {
			completion, err := openai.CompleteChatCompletions(ctx, config, family, prompt, opts)
			if err != nil {
				return nil, err
			}
			return ai.NewSingleShotStream(completion), nil
		}
		return openai.StreamChatCompletions(ctx, config, family, prompt, opts)

	case ai.WireResponses:
		opts := openai.Options{HTTPClient: dispatcher.httpClient, APIKey: credential, RequestID: turnID, MaxArgumentBytes: dispatcher.argumentLimit}
		if !config.Streaming {
			completion, err := openai.CompleteResponses(ctx, config, family, prompt, opts)
			if err != nil {
				return nil, err
			}
			return ai.NewSingleShotStream(completion), nil
		}
		return openai.StreamResponses(ctx, config, family, prompt, opts)

	case ai.WireGemini:
		opts := gemini.Options{HTTPClient: dispatcher.httpClient, APIKey: credential, RequestID: turnID, MaxArgumentBytes: dispatcher.argumentLimit}
		if !config.Streaming {
			completion, err := gemini.GenerateContent(ctx, config, family, prompt, opts)
			if err != nil {
				return nil, err
			}
			return ai.NewSingleShotStream(completion), nil
		}
		return gemini.StreamGenerateContent(ctx, config, family, prompt, opts)
	}

	return nil, ai.NewConfigError("provider %q has unsupported wire_api %q", providerName, config.WireAPI)
}

// Complete runs one turn and blocks until the full completion is
// accumulated, regardless of the provider's streaming setting.
func (dispatcher *Dispatcher) Complete(ctx context.Context, providerName string, prompt ai.Prompt) (*ai.Completion, error) {
	stream, err := dispatcher.Stream(ctx, providerName, prompt)
	if err != nil {
		return nil, err
	}
	return stream.Collect()
}
