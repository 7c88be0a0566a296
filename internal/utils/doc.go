// Package utils provides shared HTTP and SSE plumbing for the provider
// clients: synchronous JSON POSTs, streaming POSTs with open bodies, and an
// incremental server-sent events scanner.
package utils
