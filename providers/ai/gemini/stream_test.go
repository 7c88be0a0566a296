package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ce-data-e/opencodex/providers/ai"
)

func writeSSE(writer http.ResponseWriter, data string) {
	fmt.Fprintf(writer, "data: %s\n\n", data)
	if flusher, ok := writer.(http.Flusher); ok {
		flusher.Flush()
	}
}

func geminiConfig(serverURL string) ai.ProviderConfig {
	return ai.ProviderConfig{Name: "gemini", BaseURL: serverURL, WireAPI: ai.WireGemini, Streaming: true}
}

func streamGemini(t *testing.T, handler http.HandlerFunc, opts Options) (*ai.Completion, error) {
	t.Helper()
	server := httptest.NewServer(handler)
	defer server.Close()

	if opts.APIKey == "" {
		opts.APIKey = "test-key"
	}

	// Signed call in history so the required-signature policy is satisfied.
	call := ai.NewFunctionCall("call_0", "shell", `{"command":"ls"}`)
	call.FunctionCall.ThoughtSignature = "sig-0"
	prompt := ai.Prompt{
		Model: "gemini-2.5-pro",
		Items: []ai.Item{
			ai.NewMessage(ai.RoleUser, "hi"),
			call,
			ai.NewFunctionCallOutput("call_0", "ok", true),
		},
	}

	stream, err := StreamGenerateContent(context.Background(), geminiConfig(server.URL), geminiFamily(), prompt, opts)
	if err != nil {
		return nil, err
	}
	return stream.Collect()
}

func TestStreamGenerateContentTextParts(t *testing.T) {
	completion, err := streamGemini(t, func(writer http.ResponseWriter, request *http.Request) {
		if !strings.HasSuffix(request.URL.Path, ":streamGenerateContent") {
			t.Errorf("unexpected path %s", request.URL.Path)
		}
		if request.URL.Query().Get("alt") != "sse" {
			t.Errorf("missing alt=sse, query = %s", request.URL.RawQuery)
		}
		if request.Header.Get("x-goog-api-key") != "test-key" {
			t.Errorf("missing api key header")
		}
		writer.Header().Set("Content-Type", "text/event-stream")
		writeSSE(writer, `{"candidates":[{"content":{"role":"model","parts":[{"text":"Hel"}]}}]}`)
		writeSSE(writer, `{"candidates":[{"content":{"role":"model","parts":[{"text":"lo"}]},"finishReason":"STOP"}],"usageMetadata":{"promptTokenCount":5,"candidatesTokenCount":2,"totalTokenCount":7}}`)
	}, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(completion.Items) != 1 || completion.Items[0].Message.Content != "Hello" {
		t.Errorf("items = %+v", completion.Items)
	}
	if completion.Usage == nil || completion.Usage.TotalTokens != 7 {
		t.Errorf("usage = %+v", completion.Usage)
	}
	if completion.FinishReason != "STOP" {
		t.Errorf("finish reason = %q", completion.FinishReason)
	}
}

func TestStreamGenerateContentFunctionCallWithSignature(t *testing.T) {
	completion, err := streamGemini(t, func(writer http.ResponseWriter, request *http.Request) {
		writer.Header().Set("Content-Type", "text/event-stream")
		writeSSE(writer, `{"candidates":[{"content":{"role":"model","parts":[{"thoughtSignature":"sig-123","functionCall":{"name":"shell","args":{"command":"pwd"}}}]},"finishReason":"STOP"}]}`)
	}, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(completion.Items) != 1 {
		t.Fatalf("items = %+v", completion.Items)
	}
	call := completion.Items[0].FunctionCall
	if call.Name != "shell" || call.CallID != "gemini_call_1" {
		t.Errorf("call = %+v", call)
	}
	if call.Arguments != `{"command":"pwd"}` {
		t.Errorf("arguments = %q", call.Arguments)
	}
	if call.ThoughtSignature != "sig-123" {
		t.Errorf("signature = %q", call.ThoughtSignature)
	}
}

func TestStreamGenerateContentEmbeddedSignature(t *testing.T) {
	// Some serving paths put the signature inside the functionCall object.
	completion, err := streamGemini(t, func(writer http.ResponseWriter, request *http.Request) {
		writer.Header().Set("Content-Type", "text/event-stream")
		writeSSE(writer, `{"candidates":[{"content":{"role":"model","parts":[{"functionCall":{"name":"shell","args":{},"thoughtSignature":"sig-inner"}}]},"finishReason":"STOP"}]}`)
	}, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if completion.Items[0].FunctionCall.ThoughtSignature != "sig-inner" {
		t.Errorf("signature = %q", completion.Items[0].FunctionCall.ThoughtSignature)
	}
}

func TestStreamGenerateContentThoughtParts(t *testing.T) {
	completion, err := streamGemini(t, func(writer http.ResponseWriter, request *http.Request) {
		writer.Header().Set("Content-Type", "text/event-stream")
		writeSSE(writer, `{"candidates":[{"content":{"role":"model","parts":[{"text":"planning...","thought":true}]}}]}`)
		writeSSE(writer, `{"candidates":[{"content":{"role":"model","parts":[{"text":"done"}]},"finishReason":"STOP"}]}`)
	}, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(completion.Items) != 2 {
		t.Fatalf("items = %+v", completion.Items)
	}
	if completion.Items[0].Type != ai.ItemTypeReasoning || completion.Items[0].Reasoning.Content != "planning..." {
		t.Errorf("reasoning item = %+v", completion.Items[0])
	}
	if completion.Items[1].Message.Content != "done" {
		t.Errorf("text item = %+v", completion.Items[1])
	}
}

func TestStreamGenerateContentCleanCloseCompletes(t *testing.T) {
	// No end sentinel on this wire; a clean close after complete events is
	// a normal end of turn.
	completion, err := streamGemini(t, func(writer http.ResponseWriter, request *http.Request) {
		writer.Header().Set("Content-Type", "text/event-stream")
		writeSSE(writer, `{"candidates":[{"content":{"role":"model","parts":[{"text":"hi"}]}}]}`)
	}, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(completion.Items) != 1 || completion.Items[0].Message.Content != "hi" {
		t.Errorf("items = %+v", completion.Items)
	}
}

func TestStreamGenerateContentTruncatedEvent(t *testing.T) {
	_, err := streamGemini(t, func(writer http.ResponseWriter, request *http.Request) {
		writer.Header().Set("Content-Type", "text/event-stream")
		writeSSE(writer, `{"candidates":[{"content":{"role":"model","parts":[{"text":"hi"}]}}]}`)
		// Data line without the blank-line terminator, then close.
		fmt.Fprint(writer, `data: {"candidates":[{"content":`)
	}, Options{})

	var protocolErr *ai.ProtocolError
	if !errors.As(err, &protocolErr) {
		t.Fatalf("expected ProtocolError for mid-event close, got %v", err)
	}
}

func TestStreamGenerateContentMaxTokens(t *testing.T) {
	_, err := streamGemini(t, func(writer http.ResponseWriter, request *http.Request) {
		writer.Header().Set("Content-Type", "text/event-stream")
		writeSSE(writer, `{"candidates":[{"content":{"role":"model","parts":[{"text":"partial"}]},"finishReason":"MAX_TOKENS"}]}`)
	}, Options{})

	var upstreamErr *ai.UpstreamError
	if !errors.As(err, &upstreamErr) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if upstreamErr.Code != ai.CodeContextWindowExceeded {
		t.Errorf("code = %q", upstreamErr.Code)
	}
}

func TestStreamGenerateContentSafetyBlock(t *testing.T) {
	_, err := streamGemini(t, func(writer http.ResponseWriter, request *http.Request) {
		writer.Header().Set("Content-Type", "text/event-stream")
		writeSSE(writer, `{"candidates":[{"finishReason":"SAFETY"}]}`)
	}, Options{})

	var upstreamErr *ai.UpstreamError
	if !errors.As(err, &upstreamErr) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
}

func TestStreamGenerateContentArgumentSizeGuard(t *testing.T) {
	bigArgs := strings.Repeat("x", 200)
	_, err := streamGemini(t, func(writer http.ResponseWriter, request *http.Request) {
		writer.Header().Set("Content-Type", "text/event-stream")
		writeSSE(writer, `{"candidates":[{"content":{"role":"model","parts":[{"functionCall":{"name":"shell","args":{"command":"`+bigArgs+`"}}}]},"finishReason":"STOP"}]}`)
	}, Options{MaxArgumentBytes: 64})

	var tooLarge *ai.ResponseTooLargeError
	if !errors.As(err, &tooLarge) {
		t.Fatalf("expected ResponseTooLargeError, got %v", err)
	}
}

func TestGenerateContentSync(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if !strings.HasSuffix(request.URL.Path, ":generateContent") {
			t.Errorf("unexpected path %s", request.URL.Path)
		}
		fmt.Fprint(writer, `{"candidates":[{"content":{"role":"model","parts":[{"text":"hello"}]},"finishReason":"STOP"}],"usageMetadata":{"totalTokenCount":3}}`)
	}))
	defer server.Close()

	prompt := ai.Prompt{Model: "gemini-2.5-pro", Items: []ai.Item{ai.NewMessage(ai.RoleUser, "hi")}}
	completion, err := GenerateContent(context.Background(), geminiConfig(server.URL), geminiFamily(), prompt, Options{APIKey: "test-key"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(completion.Items) != 1 || completion.Items[0].Message.Content != "hello" {
		t.Errorf("items = %+v", completion.Items)
	}
	if completion.Usage == nil || completion.Usage.TotalTokens != 3 {
		t.Errorf("usage = %+v", completion.Usage)
	}
}
