// Package openai implements the two OpenAI-compatible wire APIs: the
// /chat/completions schema and the /responses input-item schema. Both sides
// are covered for each: a pure request builder mapping conversation items to
// the wire format, and an incremental SSE decoder turning the provider's
// stream into normalized events.
//
// The same package serves OpenAI itself and compatible gateways; thought
// signatures from gateway-routed thinking models travel in the
// extra_content vendor extension on tool calls.
package openai
