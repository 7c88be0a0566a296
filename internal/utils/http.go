package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/ce-data-e/opencodex/providers/ai"
	"github.com/ce-data-e/opencodex/providers/observability"
)

// maxResponseBodySize is the maximum response body size read into memory
// (10 MB). Enforced via io.LimitReader to prevent unbounded allocation from
// rogue responses.
const maxResponseBodySize int64 = 10 * 1024 * 1024

// HeaderOption sets one extra request header, overriding defaults of the
// same name (including Authorization, for providers with their own auth
// header scheme).
type HeaderOption struct {
	Key   string
	Value string
}

// CloseWithLog closes the closer and logs any error. Used where a close
// failure must not override the primary error path.
func CloseWithLog(closer io.Closer) {
	if err := closer.Close(); err != nil {
		slog.Warn("failed to close response body", "error", err.Error())
	}
}

// DoPostSync performs a synchronous HTTP POST with a JSON body and decodes
// the JSON response into OutputStruct.
//
// Error classification:
//   - request marshal/build failures return a plain error
//   - connection-level failures return *ai.TransportError
//   - non-2xx statuses return *ai.UpstreamError with the (capped) body
//   - undecodable 2xx bodies return *ai.ProtocolError
func DoPostSync[OutputStruct any](ctx context.Context, client *http.Client, url string, apiKey string, body any, headers ...HeaderOption) (*OutputStruct, error) {
	span := observability.SpanFromContext(ctx)

	httpClient := client
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("error marshaling body: %w", err)
	}

	req, err := buildJSONRequest(ctx, url, jsonBody, apiKey, headers)
	if err != nil {
		return nil, err
	}

	requestStart := time.Now()
	response, err := httpClient.Do(req)
	requestDuration := time.Since(requestStart)

	if err != nil {
		if span != nil {
			span.AddEvent(observability.EventHTTPRequestError,
				observability.Error(err),
				observability.Duration(observability.AttrHTTPRequestDuration, requestDuration),
			)
		}
		return nil, &ai.TransportError{Err: err}
	}
	defer CloseWithLog(response.Body)

	responseBody, err := io.ReadAll(io.LimitReader(response.Body, maxResponseBodySize))
	if err != nil {
		return nil, &ai.TransportError{Err: fmt.Errorf("reading response body: %w", err)}
	}

	if span != nil {
		span.AddEvent(observability.EventHTTPResponseReceived,
			observability.Int(observability.AttrHTTPStatusCode, response.StatusCode),
			observability.Int(observability.AttrHTTPResponseBodySize, len(responseBody)),
			observability.Duration(observability.AttrHTTPRequestDuration, requestDuration),
		)
	}

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return nil, &ai.UpstreamError{StatusCode: response.StatusCode, Body: string(responseBody)}
	}

	var resStruct OutputStruct
	if err = json.Unmarshal(responseBody, &resStruct); err != nil {
		return nil, ai.NewProtocolError("unmarshaling response body (status %d): %v; preview: %s",
			response.StatusCode, err, TruncateString(string(responseBody), 500))
	}

	return &resStruct, nil
}

// DoPostStream performs an HTTP POST and returns the raw response with the
// body left open for SSE reading. The caller must close the body when done.
// On error paths the body is drained and closed before returning.
//
// Error classification matches DoPostSync: *ai.TransportError for
// connection-level failures, *ai.UpstreamError for non-2xx statuses.
func DoPostStream(ctx context.Context, client *http.Client, url string, apiKey string, body any, headers ...HeaderOption) (*http.Response, error) {
	span := observability.SpanFromContext(ctx)

	httpClient := client
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("error marshaling body: %w", err)
	}

	if span != nil {
		span.AddEvent(observability.EventHTTPStreamRequestPrepared,
			observability.String(observability.AttrHTTPMethod, "POST"),
			observability.String(observability.AttrHTTPURL, url),
			observability.Int(observability.AttrHTTPRequestBodySize, len(jsonBody)),
		)
	}

	req, err := buildJSONRequest(ctx, url, jsonBody, apiKey, headers)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	requestStart := time.Now()
	response, err := httpClient.Do(req)
	requestDuration := time.Since(requestStart)

	if err != nil {
		if span != nil {
			span.AddEvent(observability.EventHTTPRequestError,
				observability.Error(err),
				observability.Duration(observability.AttrHTTPRequestDuration, requestDuration),
			)
		}
		return nil, &ai.TransportError{Err: err}
	}

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		defer CloseWithLog(response.Body)
		errorBody, readErr := io.ReadAll(io.LimitReader(response.Body, maxResponseBodySize))
		if readErr != nil {
			return nil, &ai.UpstreamError{
				StatusCode: response.StatusCode,
				Body:       fmt.Sprintf("(failed to read body: %v)", readErr),
			}
		}
		return nil, &ai.UpstreamError{StatusCode: response.StatusCode, Body: string(errorBody)}
	}

	if span != nil {
		span.AddEvent(observability.EventHTTPStreamResponseStarted,
			observability.Int(observability.AttrHTTPStatusCode, response.StatusCode),
			observability.Duration(observability.AttrHTTPRequestDuration, requestDuration),
		)
	}

	return response, nil
}

// buildJSONRequest assembles a POST request with JSON content type, optional
// bearer auth, and custom header overrides.
func buildJSONRequest(ctx context.Context, url string, jsonBody []byte, apiKey string, headers []HeaderOption) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	for _, header := range headers {
		req.Header.Set(header.Key, header.Value)
	}

	return req, nil
}
