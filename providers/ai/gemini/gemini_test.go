package gemini

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/ce-data-e/opencodex/providers/ai"
)

func geminiFamily() ai.ModelFamily {
	return ai.DefaultFamilies().Resolve("gemini-2.5-pro")
}

func TestBuildGenerateContentRequestContents(t *testing.T) {
	call := ai.NewFunctionCall("call_1", "shell", `{"command":"ls"}`)
	call.FunctionCall.ThoughtSignature = "sig-123"
	prompt := ai.Prompt{
		Model:        "gemini-2.5-pro",
		Instructions: "Be terse.",
		Items: []ai.Item{
			ai.NewMessage(ai.RoleUser, "run ls"),
			call,
			ai.NewFunctionCallOutput("call_1", "file.txt", true),
			ai.NewMessage(ai.RoleAssistant, "Found one file."),
		},
	}

	request, err := buildGenerateContentRequest(prompt, geminiFamily())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The gemini family appends its apply_patch usage note to the base
	// instructions.
	if request.SystemInstruction == nil || !strings.HasPrefix(request.SystemInstruction.Parts[0].Text, "Be terse.") {
		t.Errorf("system instruction = %+v", request.SystemInstruction)
	}
	if !strings.Contains(request.SystemInstruction.Parts[0].Text, "apply_patch") {
		t.Errorf("expected apply_patch note appended, got %q", request.SystemInstruction.Parts[0].Text)
	}
	if len(request.Contents) != 4 {
		t.Fatalf("expected 4 contents, got %d", len(request.Contents))
	}

	if request.Contents[0].Role != "user" || request.Contents[0].Parts[0].Text != "run ls" {
		t.Errorf("user content = %+v", request.Contents[0])
	}

	callContent := request.Contents[1]
	if callContent.Role != "model" || callContent.Parts[0].FunctionCall == nil {
		t.Fatalf("call content = %+v", callContent)
	}
	if callContent.Parts[0].FunctionCall.Name != "shell" {
		t.Errorf("call name = %q", callContent.Parts[0].FunctionCall.Name)
	}
	// The signature replays verbatim as a sibling of functionCall.
	if callContent.Parts[0].ThoughtSignature != "sig-123" {
		t.Errorf("thought signature = %q", callContent.Parts[0].ThoughtSignature)
	}

	responseContent := request.Contents[2]
	if responseContent.Role != "user" || responseContent.Parts[0].FunctionResponse == nil {
		t.Fatalf("response content = %+v", responseContent)
	}
	// functionResponse is keyed by name, resolved from the originating call.
	if responseContent.Parts[0].FunctionResponse.Name != "shell" {
		t.Errorf("response name = %q", responseContent.Parts[0].FunctionResponse.Name)
	}
	var payload map[string]any
	if err := json.Unmarshal(responseContent.Parts[0].FunctionResponse.Response, &payload); err != nil {
		t.Fatalf("response payload: %v", err)
	}
	if payload["output"] != "file.txt" || payload["success"] != true {
		t.Errorf("response payload = %v", payload)
	}

	if request.Contents[3].Role != "model" {
		t.Errorf("assistant content = %+v", request.Contents[3])
	}
}

func TestBuildGenerateContentRequestRequiredSignatureMissing(t *testing.T) {
	prompt := ai.Prompt{
		Model: "gemini-2.5-pro",
		Items: []ai.Item{
			ai.NewMessage(ai.RoleUser, "hi"),
			ai.NewFunctionCall("call_1", "shell", `{"command":"ls"}`), // no signature
		},
	}

	_, err := buildGenerateContentRequest(prompt, geminiFamily())
	if err == nil {
		t.Fatal("expected error for missing required signature")
	}
	if _, ok := err.(*ai.ProtocolError); !ok {
		t.Errorf("expected ProtocolError, got %T", err)
	}
}

func TestBuildGenerateContentRequestOrphanOutput(t *testing.T) {
	prompt := ai.Prompt{
		Model: "gemini-2.5-pro",
		Items: []ai.Item{
			ai.NewFunctionCallOutput("call_unknown", "data", true),
		},
	}

	_, err := buildGenerateContentRequest(prompt, geminiFamily())
	if err == nil {
		t.Fatal("expected error for output with no matching call")
	}
}

func TestBuildGenerateContentRequestTools(t *testing.T) {
	prompt := ai.Prompt{
		Model: "gemini-2.5-pro",
		Items: []ai.Item{ai.NewMessage(ai.RoleUser, "hi")},
		Tools: []ai.ToolDescription{{Name: "web_search"}},
	}

	request, err := buildGenerateContentRequest(prompt, geminiFamily())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(request.Tools) != 1 {
		t.Fatalf("tools = %+v", request.Tools)
	}
	declarations := request.Tools[0].FunctionDeclarations
	if len(declarations) != 3 {
		t.Fatalf("expected 3 declarations (caller + shell + patch), got %d", len(declarations))
	}
	if declarations[0].Name != "web_search" || declarations[1].Name != "shell" || declarations[2].Name != "apply_patch" {
		t.Errorf("declarations = %+v", declarations)
	}
}

func TestArgumentsToRaw(t *testing.T) {
	raw, err := argumentsToRaw("")
	if err != nil || string(raw) != "{}" {
		t.Errorf("empty arguments: raw=%s err=%v", raw, err)
	}

	raw, err = argumentsToRaw(`{"a":1}`)
	if err != nil || string(raw) != `{"a":1}` {
		t.Errorf("valid arguments: raw=%s err=%v", raw, err)
	}

	if _, err = argumentsToRaw("{broken"); err == nil {
		t.Error("expected error for invalid JSON arguments")
	}
}
