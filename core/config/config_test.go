package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ce-data-e/opencodex/providers/ai"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	fileConfig, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)

	providers := fileConfig.ProviderRegistry()
	require.Contains(t, providers, "openai")
	require.Contains(t, providers, "gemini")
	assert.Equal(t, ai.WireResponses, providers["openai"].WireAPI)
	assert.Equal(t, "GEMINI_API_KEY", providers["gemini"].CredentialEnvKey)
	assert.True(t, providers["openai"].Streaming)
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
[providers.local]
base_url = "http://localhost:8080/v1"
env_key = "LOCAL_API_KEY"
wire_api = "chat"
streaming = false

[providers.local.query_params]
api-version = "2024-10-01"

[families.local-llama]
patterns = ["llama-*"]
shell_type = "shell_command"
apply_patch_tool = "freeform"
parallel_tool_calls = true
thought_signatures = "optional"
`)

	fileConfig, err := Load(path)
	require.NoError(t, err)

	providers := fileConfig.ProviderRegistry()
	local, ok := providers["local"]
	require.True(t, ok)
	assert.Equal(t, "http://localhost:8080/v1", local.BaseURL)
	assert.Equal(t, "LOCAL_API_KEY", local.CredentialEnvKey)
	assert.Equal(t, ai.WireChatCompletions, local.WireAPI)
	assert.False(t, local.Streaming)
	assert.Equal(t, map[string]string{"api-version": "2024-10-01"}, local.QueryParams)

	// Defaults survive alongside file entries.
	assert.Contains(t, providers, "openai")

	families := fileConfig.FamilyRegistry()
	family := families.Resolve("llama-3.3-70b")
	assert.Equal(t, "local-llama", family.ID)
	assert.Equal(t, ai.ShellToolCommand, family.ShellType)
	assert.Equal(t, ai.ApplyPatchFreeform, family.ApplyPatchToolType)
	assert.True(t, family.SupportsParallelToolCalls)
	assert.Equal(t, ai.SignaturesOptional, family.ThoughtSignatures)
}

func TestLoadStreamingDefaultsTrue(t *testing.T) {
	path := writeConfig(t, `
[providers.local]
base_url = "http://localhost:8080/v1"
env_key = "LOCAL_API_KEY"
wire_api = "chat"
`)

	fileConfig, err := Load(path)
	require.NoError(t, err)

	assert.True(t, fileConfig.ProviderRegistry()["local"].Streaming)
}

func TestLoadValidationErrors(t *testing.T) {
	tests := []struct {
		name     string
		contents string
	}{
		{
			name: "missing base_url",
			contents: `
[providers.local]
env_key = "LOCAL_API_KEY"
wire_api = "chat"
`,
		},
		{
			name: "missing env_key",
			contents: `
[providers.local]
base_url = "http://localhost:8080/v1"
wire_api = "chat"
`,
		},
		{
			name: "unknown wire_api",
			contents: `
[providers.local]
base_url = "http://localhost:8080/v1"
env_key = "LOCAL_API_KEY"
wire_api = "grpc"
`,
		},
		{
			name: "family without patterns",
			contents: `
[families.empty]
shell_type = "exec"
`,
		},
		{
			name: "unknown shell_type",
			contents: `
[families.bad]
patterns = ["bad-*"]
shell_type = "powershell"
`,
		},
		{
			name: "unknown thought_signatures",
			contents: `
[families.bad]
patterns = ["bad-*"]
thought_signatures = "sometimes"
`,
		},
		{
			name:     "malformed toml",
			contents: `[providers.local`,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, test.contents))
			require.Error(t, err)
			var configErr *ai.ConfigError
			assert.ErrorAs(t, err, &configErr)
		})
	}
}

func TestFamilyShadowing(t *testing.T) {
	path := writeConfig(t, `
[families.my-gemini]
patterns = ["gemini-*"]
shell_type = "exec"
thought_signatures = "off"
`)

	fileConfig, err := Load(path)
	require.NoError(t, err)

	families := fileConfig.FamilyRegistry()
	family := families.Resolve("gemini-2.5-pro")
	assert.Equal(t, "my-gemini", family.ID, "file-declared family should shadow the built-in pattern")
	assert.Equal(t, ai.SignaturesOff, family.ThoughtSignatures)

	// Unrelated built-ins are untouched.
	assert.NotEqual(t, "my-gemini", families.Resolve("gpt-5").ID)
}

func TestOverlappingFamiliesResolveDeterministically(t *testing.T) {
	path := writeConfig(t, `
[families.narrow]
patterns = ["gemini-2*"]
shell_type = "exec"

[families.wide]
patterns = ["gemini-*"]
shell_type = "shell_command"
`)

	fileConfig, err := Load(path)
	require.NoError(t, err)

	// Families register in sorted-ID order, so "narrow" precedes "wide"
	// on every run regardless of map iteration order.
	for i := 0; i < 20; i++ {
		families := fileConfig.FamilyRegistry()
		assert.Equal(t, "narrow", families.Resolve("gemini-2.5-pro").ID)
		assert.Equal(t, "wide", families.Resolve("gemini-1.5-flash").ID)
	}
}

func TestEnvBaseURLOverride(t *testing.T) {
	t.Setenv("OPENCODEX_OPENAI_BASE_URL", "http://gateway.internal/v1")

	fileConfig, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)

	providers := fileConfig.ProviderRegistry()
	assert.Equal(t, "http://gateway.internal/v1", providers["openai"].BaseURL)
	assert.Equal(t, "https://generativelanguage.googleapis.com/v1beta", providers["gemini"].BaseURL)
}
