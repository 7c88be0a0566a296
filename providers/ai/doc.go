// Package ai defines the provider-neutral data model shared by every wire
// API implementation: conversation items, the normalized stream event
// vocabulary, provider configuration, the model family registry, and the
// typed error taxonomy.
//
// Wire-specific request/response schemas live in the subpackages (openai,
// gemini); they convert to and from the types declared here and never leak
// their own shapes upward.
package ai
