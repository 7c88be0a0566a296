package ai

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveKnownFamilies(t *testing.T) {
	registry := DefaultFamilies()

	tests := []struct {
		model      string
		wantID     string
		wantShell  ShellToolType
		wantPolicy SignaturePolicy
	}{
		{"gpt-5", "gpt-5", ShellToolExec, SignaturesOff},
		{"gpt-5-mini", "gpt-5", ShellToolExec, SignaturesOff},
		{"codex-mini-latest", "codex", ShellToolExec, SignaturesOff},
		{"o3", "o3", ShellToolExec, SignaturesOff},
		{"o4-mini-high", "o4-mini", ShellToolExec, SignaturesOff},
		{"gemini-2.5-pro", "gemini", ShellToolCommand, SignaturesRequired},
		{"somebody-elses-model", "default", ShellToolCommand, SignaturesOff},
	}

	for _, test := range tests {
		t.Run(test.model, func(t *testing.T) {
			family := registry.Resolve(test.model)
			assert.Equal(t, test.wantID, family.ID)
			assert.Equal(t, test.wantShell, family.ShellType)
			assert.Equal(t, test.wantPolicy, family.ThoughtSignatures)
		})
	}
}

func TestRegisterOrderWins(t *testing.T) {
	registry := DefaultFamilies()
	custom := &FamilyRegistry{}
	custom.Register("gemini-2.5-flash", ModelFamily{ID: "flash-special", ShellType: ShellToolExec})
	registry.PrependFrom(custom)

	assert.Equal(t, "flash-special", registry.Resolve("gemini-2.5-flash").ID)
	assert.Equal(t, "gemini", registry.Resolve("gemini-2.5-pro").ID)
}

func TestFamilyToolsShellShape(t *testing.T) {
	execFamily := ModelFamily{ID: "gpt-5", ShellType: ShellToolExec, ApplyPatchToolType: ApplyPatchFreeform}
	commandFamily := ModelFamily{ID: "gemini", ShellType: ShellToolCommand, ApplyPatchToolType: ApplyPatchStructured}

	execTools := execFamily.Tools(nil)
	require.Len(t, execTools, 2)
	assert.Equal(t, "exec", execTools[0].Name)
	assert.Equal(t, "array", execTools[0].Parameters.Properties["command"].Type)
	assert.Equal(t, "apply_patch", execTools[1].Name)
	assert.True(t, execTools[1].Freeform)

	commandTools := commandFamily.Tools(nil)
	require.Len(t, commandTools, 2)
	assert.Equal(t, "shell", commandTools[0].Name)
	assert.Equal(t, "string", commandTools[0].Parameters.Properties["command"].Type)
	assert.False(t, commandTools[1].Freeform)
}

func TestFamilyToolsKeepsCallerToolsFirst(t *testing.T) {
	family := ModelFamily{ID: "default", ShellType: ShellToolCommand, ApplyPatchToolType: ApplyPatchStructured}

	tools := family.Tools([]ToolDescription{{Name: "web_search"}})
	require.Len(t, tools, 3)
	assert.Equal(t, "web_search", tools[0].Name)
}

func TestFamilyToolsIdenticalAcrossWireAPIs(t *testing.T) {
	// Tool configuration depends only on the family, never on the wire
	// format that will carry it.
	family := DefaultFamilies().Resolve("gemini-2.5-pro")

	first := family.Tools(nil)
	second := family.Tools(nil)
	require.Equal(t, first, second)
}

func TestFamilyInstructions(t *testing.T) {
	plain := ModelFamily{ID: "default"}
	assert.Equal(t, "Be terse.", plain.Instructions("Be terse."))

	flagged := ModelFamily{ID: "gemini", NeedsSpecialApplyPatchInstructions: true}
	withNote := flagged.Instructions("Be terse.")
	assert.True(t, strings.HasPrefix(withNote, "Be terse.\n\n"))
	assert.Contains(t, withNote, "apply_patch")

	assert.Contains(t, flagged.Instructions(""), "apply_patch")
}

func TestLastFunctionCall(t *testing.T) {
	items := []Item{
		NewMessage(RoleUser, "hi"),
		NewFunctionCall("call_1", "shell", "{}"),
		NewFunctionCallOutput("call_1", "ok", true),
		NewFunctionCall("call_2", "apply_patch", "{}"),
		NewMessage(RoleAssistant, "done"),
	}

	last := LastFunctionCall(items)
	require.NotNil(t, last)
	assert.Equal(t, "call_2", last.CallID)

	assert.Nil(t, LastFunctionCall([]Item{NewMessage(RoleUser, "hi")}))
}
