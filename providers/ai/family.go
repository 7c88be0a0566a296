package ai

import (
	"strings"

	"github.com/ce-data-e/opencodex/internal/jsonschema"
)

// ShellToolType selects the wire shape of the shell tool a family expects.
type ShellToolType string

const (
	// ShellToolCommand exposes the shell as a single command-string tool.
	ShellToolCommand ShellToolType = "shell_command"
	// ShellToolExec exposes the shell as an argv-vector exec tool.
	ShellToolExec ShellToolType = "exec"
)

// ApplyPatchToolType selects the wire shape of the patch-apply tool.
type ApplyPatchToolType string

const (
	// ApplyPatchFreeform declares the patch tool as a freeform/grammar tool
	// on wire APIs that support one.
	ApplyPatchFreeform ApplyPatchToolType = "freeform"
	// ApplyPatchStructured declares the patch tool as a plain JSON function.
	ApplyPatchStructured ApplyPatchToolType = "structured"
)

// SignaturePolicy controls how thought signatures on replayed function calls
// are handled for a family.
type SignaturePolicy string

const (
	// SignaturesOff: the family never uses thought signatures.
	SignaturesOff SignaturePolicy = "off"
	// SignaturesOptional: signatures are echoed when present but their
	// absence is tolerated.
	SignaturesOptional SignaturePolicy = "optional"
	// SignaturesRequired: the most recent replayed function call must carry
	// a signature; builders reject the prompt otherwise.
	SignaturesRequired SignaturePolicy = "required"
)

// ModelFamily groups models that must receive identical system instructions
// and tool schemas, independent of which wire API carries the request. A
// model may be routed through any wire API while keeping the configuration
// its family declares here.
type ModelFamily struct {
	ID                        string             `json:"id"`
	ShellType                 ShellToolType      `json:"shell_type"`
	ApplyPatchToolType        ApplyPatchToolType `json:"apply_patch_tool_type"`
	SupportsParallelToolCalls bool               `json:"supports_parallel_tool_calls"`
	ThoughtSignatures         SignaturePolicy    `json:"thought_signatures"`
	// NeedsSpecialApplyPatchInstructions marks families whose models were
	// not trained on the apply_patch tool and need its usage spelled out in
	// the system instructions.
	NeedsSpecialApplyPatchInstructions bool `json:"needs_special_apply_patch_instructions,omitempty"`
}

// familyPattern binds a model-name pattern to a family. A trailing '*'
// matches any suffix; otherwise the match is exact.
type familyPattern struct {
	pattern string
	family  ModelFamily
}

// FamilyRegistry resolves a model name to its ModelFamily by first-match over
// an ordered pattern list. The registry is immutable after construction and
// safe for concurrent use.
type FamilyRegistry struct {
	patterns []familyPattern
	fallback ModelFamily
}

// DefaultFamilies returns a registry covering the known model lines. Models
// that match nothing fall back to a conservative family: command-string
// shell, structured patches, no parallel tool calls, no signatures.
func DefaultFamilies() *FamilyRegistry {
	registry := &FamilyRegistry{
		fallback: ModelFamily{
			ID:                 "default",
			ShellType:          ShellToolCommand,
			ApplyPatchToolType: ApplyPatchStructured,
			ThoughtSignatures:  SignaturesOff,
		},
	}

	registry.Register("gpt-5*", ModelFamily{
		ID:                        "gpt-5",
		ShellType:                 ShellToolExec,
		ApplyPatchToolType:        ApplyPatchFreeform,
		SupportsParallelToolCalls: true,
		ThoughtSignatures:         SignaturesOff,
	})
	registry.Register("codex-*", ModelFamily{
		ID:                        "codex",
		ShellType:                 ShellToolExec,
		ApplyPatchToolType:        ApplyPatchFreeform,
		SupportsParallelToolCalls: true,
		ThoughtSignatures:         SignaturesOff,
	})
	registry.Register("o3*", ModelFamily{
		ID:                 "o3",
		ShellType:          ShellToolExec,
		ApplyPatchToolType: ApplyPatchStructured,
		ThoughtSignatures:  SignaturesOff,
	})
	registry.Register("o4-mini*", ModelFamily{
		ID:                 "o4-mini",
		ShellType:          ShellToolExec,
		ApplyPatchToolType: ApplyPatchStructured,
		ThoughtSignatures:  SignaturesOff,
	})
	registry.Register("gemini-*", ModelFamily{
		ID:                                 "gemini",
		ShellType:                          ShellToolCommand,
		ApplyPatchToolType:                 ApplyPatchStructured,
		SupportsParallelToolCalls:          true,
		ThoughtSignatures:                  SignaturesRequired,
		NeedsSpecialApplyPatchInstructions: true,
	})

	return registry
}

// Register appends a pattern/family pair. Patterns are evaluated in
// registration order; register more specific patterns first.
func (registry *FamilyRegistry) Register(pattern string, family ModelFamily) {
	registry.patterns = append(registry.patterns, familyPattern{pattern: pattern, family: family})
}

// PrependFrom inserts another registry's patterns ahead of this registry's
// own, so they win pattern matching. The other registry's fallback is
// ignored.
func (registry *FamilyRegistry) PrependFrom(other *FamilyRegistry) {
	registry.patterns = append(append([]familyPattern{}, other.patterns...), registry.patterns...)
}

// Resolve returns the family for the given model name, or the fallback
// family when no pattern matches.
func (registry *FamilyRegistry) Resolve(model string) ModelFamily {
	for _, entry := range registry.patterns {
		if matchModelPattern(entry.pattern, model) {
			return entry.family
		}
	}
	return registry.fallback
}

// matchModelPattern matches a model name against a pattern where a trailing
// '*' matches any suffix.
func matchModelPattern(pattern, model string) bool {
	if prefix, found := strings.CutSuffix(pattern, "*"); found {
		return strings.HasPrefix(model, prefix)
	}
	return pattern == model
}

// applyPatchInstructions is appended to the system instructions for
// families that need apply_patch usage spelled out.
const applyPatchInstructions = `When editing files, call the apply_patch tool with a unified patch. ` +
	`Emit one hunk per contiguous change and include enough context lines for the hunk to apply cleanly.`

// Instructions returns the system instructions for a turn. Families flagged
// with NeedsSpecialApplyPatchInstructions get the apply_patch usage note
// appended to the caller's base instructions.
func (family ModelFamily) Instructions(base string) string {
	if !family.NeedsSpecialApplyPatchInstructions {
		return base
	}
	if base == "" {
		return applyPatchInstructions
	}
	return base + "\n\n" + applyPatchInstructions
}

/*
	FAMILY TOOL SCHEMAS
*/

// shellCommandArgs is the argument shape of the command-string shell tool.
type shellCommandArgs struct {
	Command   string `json:"command" jsonschema:"description=Shell command to execute,required"`
	Workdir   string `json:"workdir" jsonschema:"description=Working directory for the command"`
	TimeoutMs int    `json:"timeout_ms" jsonschema:"description=Timeout for the command in milliseconds"`
}

// execArgs is the argument shape of the argv-vector shell tool.
type execArgs struct {
	Command   []string `json:"command" jsonschema:"description=Command and arguments to execute,required"`
	Workdir   string   `json:"workdir" jsonschema:"description=Working directory for the command"`
	TimeoutMs int      `json:"timeout_ms" jsonschema:"description=Timeout for the command in milliseconds"`
}

// applyPatchArgs is the argument shape of the structured patch tool.
type applyPatchArgs struct {
	Input string `json:"input" jsonschema:"description=Full patch to apply,required"`
}

// Tools returns the prompt tool list for this family: the caller-provided
// tools followed by the family's shell tool and patch tool. The result is
// identical for a family regardless of which wire API formats it.
func (family ModelFamily) Tools(base []ToolDescription) []ToolDescription {
	tools := make([]ToolDescription, 0, len(base)+2)
	tools = append(tools, base...)

	switch family.ShellType {
	case ShellToolExec:
		schema, _ := jsonschema.Generate[execArgs]()
		tools = append(tools, ToolDescription{
			Name:        "exec",
			Description: "Runs a command vector and returns its output.",
			Parameters:  schema,
		})
	default:
		schema, _ := jsonschema.Generate[shellCommandArgs]()
		tools = append(tools, ToolDescription{
			Name:        "shell",
			Description: "Runs a shell command and returns its output.",
			Parameters:  schema,
		})
	}

	patchSchema, _ := jsonschema.Generate[applyPatchArgs]()
	patch := ToolDescription{
		Name:        "apply_patch",
		Description: "Applies a patch to files in the workspace.",
		Parameters:  patchSchema,
	}
	if family.ApplyPatchToolType == ApplyPatchFreeform {
		patch.Freeform = true
	}
	tools = append(tools, patch)

	return tools
}
