// Package observability defines the tracing and structured logging
// interfaces used throughout the client.
//
// An [Observer] is the injectable dependency: it starts spans and emits log
// records. Callers propagate the active [Observer] and [Span] through a
// [context.Context] using [ContextWithObserver] and [ContextWithSpan]; they
// are retrieved with [ObserverFromContext] and [SpanFromContext].
//
// The semconv.go file holds the standard attribute-key and event-name
// constants used when recording observations.
package observability
