// Package config loads provider and model-family configuration from a TOML
// file, applies environment overrides, and converts the result into the
// immutable registries the dispatcher consumes.
package config

import (
	"os"
	"sort"

	"github.com/BurntSushi/toml"

	"github.com/ce-data-e/opencodex/providers/ai"
)

// FileConfig mirrors the TOML layout:
//
//	[providers.openai]
//	base_url = "https://api.openai.com/v1"
//	env_key = "OPENAI_API_KEY"
//	wire_api = "responses"
//	streaming = true
//
//	[families.gemini]
//	patterns = ["gemini-*"]
//	shell_type = "shell_command"
//	apply_patch_tool = "structured"
//	parallel_tool_calls = true
//	thought_signatures = "required"
type FileConfig struct {
	Providers map[string]ProviderEntry `toml:"providers"`
	Families  map[string]FamilyEntry   `toml:"families"`
}

// ProviderEntry is one [providers.<key>] table.
type ProviderEntry struct {
	BaseURL     string            `toml:"base_url"`
	EnvKey      string            `toml:"env_key"`
	WireAPI     string            `toml:"wire_api"`
	Streaming   *bool             `toml:"streaming"`
	QueryParams map[string]string `toml:"query_params"`
}

// FamilyEntry is one [families.<id>] table. Families declared here are
// registered ahead of the built-in defaults, so they win pattern matching.
type FamilyEntry struct {
	Patterns          []string `toml:"patterns"`
	ShellType         string   `toml:"shell_type"`
	ApplyPatchTool    string   `toml:"apply_patch_tool"`
	ParallelToolCalls bool     `toml:"parallel_tool_calls"`
	ThoughtSignatures string   `toml:"thought_signatures"`
}

// Load reads a TOML config file and validates it. A missing file is not an
// error: the built-in defaults apply.
func Load(path string) (*FileConfig, error) {
	fileConfig := &FileConfig{}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fileConfig, nil
		}
		return nil, ai.NewConfigError("reading config file %s: %v", path, err)
	}

	if err := toml.Unmarshal(data, fileConfig); err != nil {
		return nil, ai.NewConfigError("parsing config file %s: %v", path, err)
	}

	if err := fileConfig.validate(); err != nil {
		return nil, err
	}
	return fileConfig, nil
}

func (fileConfig *FileConfig) validate() error {
	for name, entry := range fileConfig.Providers {
		if entry.BaseURL == "" {
			return ai.NewConfigError("provider %q is missing base_url", name)
		}
		if entry.EnvKey == "" {
			return ai.NewConfigError("provider %q is missing env_key", name)
		}
		if _, err := ai.ParseWireAPI(entry.WireAPI); err != nil {
			return ai.NewConfigError("provider %q: %v", name, err)
		}
	}
	for id, entry := range fileConfig.Families {
		if len(entry.Patterns) == 0 {
			return ai.NewConfigError("family %q declares no patterns", id)
		}
		switch entry.ShellType {
		case "", string(ai.ShellToolCommand), string(ai.ShellToolExec):
		default:
			return ai.NewConfigError("family %q has unknown shell_type %q", id, entry.ShellType)
		}
		switch entry.ApplyPatchTool {
		case "", string(ai.ApplyPatchFreeform), string(ai.ApplyPatchStructured):
		default:
			return ai.NewConfigError("family %q has unknown apply_patch_tool %q", id, entry.ApplyPatchTool)
		}
		switch entry.ThoughtSignatures {
		case "", string(ai.SignaturesOff), string(ai.SignaturesOptional), string(ai.SignaturesRequired):
		default:
			return ai.NewConfigError("family %q has unknown thought_signatures %q", id, entry.ThoughtSignatures)
		}
	}
	return nil
}

// ProviderRegistry converts the file config into dispatcher provider
// configurations, merged over the built-in defaults. Environment overrides
// of the form OPENCODEX_<PROVIDER>_BASE_URL are applied last.
func (fileConfig *FileConfig) ProviderRegistry() map[string]ai.ProviderConfig {
	providers := defaultProviders()

	for name, entry := range fileConfig.Providers {
		streaming := true
		if entry.Streaming != nil {
			streaming = *entry.Streaming
		}
		wireAPI, _ := ai.ParseWireAPI(entry.WireAPI)
		providers[name] = ai.ProviderConfig{
			Name:             name,
			BaseURL:          entry.BaseURL,
			CredentialEnvKey: entry.EnvKey,
			WireAPI:          wireAPI,
			Streaming:        streaming,
			QueryParams:      entry.QueryParams,
		}
	}

	applyEnvOverrides(providers)
	return providers
}

// FamilyRegistry converts the file config into a model family registry.
// File-declared families are registered first and therefore shadow the
// built-in patterns they overlap.
func (fileConfig *FileConfig) FamilyRegistry() *ai.FamilyRegistry {
	registry := ai.DefaultFamilies()
	if len(fileConfig.Families) == 0 {
		return registry
	}

	// Map iteration order is random; register in sorted-ID order so
	// first-match resolution across overlapping patterns is deterministic.
	ids := make([]string, 0, len(fileConfig.Families))
	for id := range fileConfig.Families {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	custom := &ai.FamilyRegistry{}
	for _, id := range ids {
		entry := fileConfig.Families[id]
		family := ai.ModelFamily{
			ID:                        id,
			ShellType:                 ai.ShellToolCommand,
			ApplyPatchToolType:        ai.ApplyPatchStructured,
			SupportsParallelToolCalls: entry.ParallelToolCalls,
			ThoughtSignatures:         ai.SignaturesOff,
		}
		if entry.ShellType != "" {
			family.ShellType = ai.ShellToolType(entry.ShellType)
		}
		if entry.ApplyPatchTool != "" {
			family.ApplyPatchToolType = ai.ApplyPatchToolType(entry.ApplyPatchTool)
		}
		if entry.ThoughtSignatures != "" {
			family.ThoughtSignatures = ai.SignaturePolicy(entry.ThoughtSignatures)
		}
		for _, pattern := range entry.Patterns {
			custom.Register(pattern, family)
		}
	}

	// Built-in patterns come after the custom ones.
	registry.PrependFrom(custom)
	return registry
}

// defaultProviders returns the built-in provider endpoints.
func defaultProviders() map[string]ai.ProviderConfig {
	return map[string]ai.ProviderConfig{
		"openai": {
			Name:             "openai",
			BaseURL:          "https://api.openai.com/v1",
			CredentialEnvKey: "OPENAI_API_KEY",
			WireAPI:          ai.WireResponses,
			Streaming:        true,
		},
		"gemini": {
			Name:             "gemini",
			BaseURL:          "https://generativelanguage.googleapis.com/v1beta",
			CredentialEnvKey: "GEMINI_API_KEY",
			WireAPI:          ai.WireGemini,
			Streaming:        true,
		},
	}
}

// applyEnvOverrides lets the environment replace a provider's base URL,
// e.g. OPENCODEX_OPENAI_BASE_URL for local gateways.
func applyEnvOverrides(providers map[string]ai.ProviderConfig) {
	for name, provider := range providers {
		envName := "OPENCODEX_" + envKeySegment(name) + "_BASE_URL"
		if baseURL := os.Getenv(envName); baseURL != "" {
			provider.BaseURL = baseURL
			providers[name] = provider
		}
	}
}

func envKeySegment(name string) string {
	segment := make([]byte, 0, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z':
			segment = append(segment, c-'a'+'A')
		case (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9'):
			segment = append(segment, c)
		default:
			segment = append(segment, '_')
		}
	}
	return string(segment)
}
